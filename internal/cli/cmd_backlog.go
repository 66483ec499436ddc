package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/backlogd/backlogd/internal/backlog"
	"github.com/backlogd/backlogd/internal/db"
)

// newBacklogCmd creates the backlog command group.
func newBacklogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backlog",
		Short: "Manage backlogs",
	}
	cmd.AddCommand(newBacklogCreateCmd())
	cmd.AddCommand(newBacklogGetCmd())
	cmd.AddCommand(newBacklogListCmd())
	cmd.AddCommand(newBacklogFinishCmd())
	return cmd
}

func newBacklogGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <backlog-id>",
		Short: "Show a backlog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := openServices()
			if err != nil {
				return err
			}
			defer cleanup()

			b, err := svc.coordinator.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(b)
			}
			fmt.Printf("%s  %s  project=%s primary=%v\n", b.ID, b.Name, b.ProjectID, b.IsPrimary)
			return nil
		},
	}
}

func newBacklogCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a backlog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := openServices()
			if err != nil {
				return err
			}
			defer cleanup()

			projectID, _ := cmd.Flags().GetString("project")
			teamID, _ := cmd.Flags().GetString("team")
			primary, _ := cmd.Flags().GetBool("primary")

			b := &db.Backlog{
				ProjectID: projectID,
				TeamID:    teamID,
				Name:      args[0],
				IsPrimary: primary,
			}
			if err := svc.store.CreateBacklog(cmd.Context(), b); err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(map[string]string{"id": b.ID})
			}
			fmt.Printf("Created backlog %s (%s)\n", b.ID, b.Name)
			return nil
		},
	}
	cmd.Flags().String("project", "", "owning project ID")
	cmd.Flags().String("team", "", "owning team ID")
	cmd.Flags().Bool("primary", false, "flag as the project's primary backlog")
	return cmd
}

func newBacklogListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a project's backlogs",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := openServices()
			if err != nil {
				return err
			}
			defer cleanup()

			projectID, _ := cmd.Flags().GetString("project")
			backlogs, err := svc.store.ListBacklogsByProject(cmd.Context(), projectID)
			if err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(backlogs)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tPRIMARY")
			for _, b := range backlogs {
				fmt.Fprintf(w, "%s\t%s\t%v\n", b.ID, b.Name, b.IsPrimary)
			}
			return w.Flush()
		},
	}
	cmd.Flags().String("project", "", "project ID to list")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func newBacklogFinishCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "finish <backlog-id>",
		Short: "Finish a backlog and move its unfinished tasks",
		Long: `Finish retires a backlog: every task not yet Done moves to the chosen
destination, then the backlog is soft-deleted. The whole operation runs in
one transaction; on any failure nothing changes.

Example:
  backlogd backlog finish B1 --action move-to-primary
  backlogd backlog finish B1 --action move-to-new --name "Sprint 2"
  backlogd backlog finish B1 --action move-to-existing --target B2`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := openServices()
			if err != nil {
				return err
			}
			defer cleanup()

			actionStr, _ := cmd.Flags().GetString("action")
			name, _ := cmd.Flags().GetString("name")
			target, _ := cmd.Flags().GetString("target")

			action, err := backlog.ParseAction(actionStr)
			if err != nil {
				return err
			}

			res, err := svc.coordinator.Finish(cmd.Context(), args[0], action,
				backlog.FinishOptions{Name: name, TargetBacklogID: target})
			if err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(res)
			}
			fmt.Printf("Moved %d tasks to %s (%s)\n", res.MovedCount, res.TargetName, res.TargetBacklogID)
			return nil
		},
	}
	cmd.Flags().String("action", "", "move-to-primary, move-to-new, or move-to-existing")
	cmd.Flags().String("name", "", "name for the new backlog (move-to-new)")
	cmd.Flags().String("target", "", "destination backlog ID (move-to-existing)")
	_ = cmd.MarkFlagRequired("action")
	return cmd
}
