package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/backlogd/backlogd/internal/status"
)

// newStatusCmd creates the status command group.
func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Manage a backlog's workflow statuses",
	}
	cmd.AddCommand(newStatusCreateCmd())
	cmd.AddCommand(newStatusListCmd())
	cmd.AddCommand(newStatusMoveCmd())
	cmd.AddCommand(newStatusSetDefaultCmd())
	cmd.AddCommand(newStatusDeleteCmd())
	return cmd
}

func newStatusCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <backlog-id> <name>",
		Short: "Create a status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := openServices()
			if err != nil {
				return err
			}
			defer cleanup()

			color, _ := cmd.Flags().GetString("color")
			isDefault, _ := cmd.Flags().GetBool("default")
			isClosed, _ := cmd.Flags().GetBool("closed")

			st, err := svc.engine.Create(cmd.Context(), args[0], args[1], color, isDefault, isClosed)
			if err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(st)
			}
			fmt.Printf("Created status %d (%s) at position %d\n", st.ID, st.Name, st.Position)
			return nil
		},
	}
	cmd.Flags().String("color", "", "display color")
	cmd.Flags().Bool("default", false, "make this the backlog's default status")
	cmd.Flags().Bool("closed", false, "make this the backlog's closed status")
	return cmd
}

func newStatusListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <backlog-id>",
		Short: "List a backlog's statuses in canonical order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := openServices()
			if err != nil {
				return err
			}
			defer cleanup()

			statuses, err := svc.engine.List(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(statuses)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tPOS\tNAME\tDEFAULT\tCLOSED")
			for _, st := range statuses {
				fmt.Fprintf(w, "%d\t%d\t%s\t%v\t%v\n", st.ID, st.Position, st.Name, st.IsDefault, st.IsClosed)
			}
			return w.Flush()
		},
	}
}

func newStatusMoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "move <status-id> <up|down>",
		Short: "Swap a status with its neighbor",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := openServices()
			if err != nil {
				return err
			}
			defer cleanup()

			id, err := parseStatusID(args[0])
			if err != nil {
				return err
			}
			direction, err := status.ParseDirection(args[1])
			if err != nil {
				return err
			}

			if err := svc.engine.MoveOrder(cmd.Context(), id, direction); err != nil {
				return err
			}
			fmt.Printf("Moved status %d %s\n", id, direction)
			return nil
		},
	}
}

func newStatusSetDefaultCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-default <status-id>",
		Short: "Make a status the backlog's default",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := openServices()
			if err != nil {
				return err
			}
			defer cleanup()

			id, err := parseStatusID(args[0])
			if err != nil {
				return err
			}
			if err := svc.engine.AssignDefault(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Printf("Status %d is now the default\n", id)
			return nil
		},
	}
}

func newStatusDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <status-id>",
		Short: "Delete a status, moving its tasks to the default",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := openServices()
			if err != nil {
				return err
			}
			defer cleanup()

			id, err := parseStatusID(args[0])
			if err != nil {
				return err
			}
			if err := svc.engine.Destroy(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Printf("Deleted status %d\n", id)
			return nil
		},
	}
}

func parseStatusID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid status ID %q: %w", s, err)
	}
	return id, nil
}
