// Package status maintains the ordered workflow statuses of a backlog.
//
// Each backlog owns an independent status set with two sentinel roles: the
// default status (position 1, where orphaned tasks fall back to) and the
// closed status (terminal, always last). After any insert the full set is
// recanonicalized: default first, middle statuses by ascending creation
// identifier, closed last, positions contiguous from 1. Deletion does not
// compact positions; gaps are an accepted artifact.
package status

import (
	"context"
	"fmt"
	"sort"

	"github.com/backlogd/backlogd/internal/db"
	"github.com/backlogd/backlogd/internal/errors"
	"github.com/backlogd/backlogd/internal/lock"
)

// Direction is a reorder direction.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// ParseDirection parses a reorder direction string.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case DirectionUp, DirectionDown:
		return Direction(s), nil
	default:
		return "", errors.ErrValidation(
			fmt.Sprintf("invalid direction %q", s),
			"Direction must be 'up' or 'down'")
	}
}

// Engine maintains the canonical order and sentinel flags of the statuses
// belonging to one backlog. Every mutation holds the backlog's lock and runs
// in a single transaction.
type Engine struct {
	store *db.Store
	locks *lock.Keyed
}

// NewEngine creates a status engine backed by the given store.
func NewEngine(store *db.Store, locks *lock.Keyed) *Engine {
	return &Engine{store: store, locks: locks}
}

// List returns a backlog's statuses in canonical order.
func (e *Engine) List(ctx context.Context, backlogID string) ([]*db.Status, error) {
	return e.store.ListStatuses(ctx, backlogID)
}

// Create inserts a new status and recanonicalizes the backlog's ordering.
//
// A status cannot be both default and closed, and a backlog holds at most
// one closed status. If the new status is flagged default while another
// default exists, the previous default is demoted.
func (e *Engine) Create(ctx context.Context, backlogID, name, color string, isDefault, isClosed bool) (*db.Status, error) {
	if name == "" {
		return nil, errors.ErrValidation("status name is required", "Name must not be empty")
	}
	if isDefault && isClosed {
		return nil, errors.ErrValidation(
			"status cannot be both default and closed",
			"The closed status is terminal and can never be the default")
	}

	release := e.locks.Acquire(backlogID)
	defer release()

	var created *db.Status
	err := e.store.RunInTx(ctx, func(tx *db.TxOps) error {
		backlog, err := db.GetBacklogTx(tx, backlogID)
		if err != nil {
			return err
		}
		if backlog == nil {
			return errors.ErrValidation(
				fmt.Sprintf("backlog %s does not exist", backlogID),
				"Statuses must belong to an existing backlog")
		}

		if isClosed {
			existing, err := db.FindClosedStatusTx(tx, backlogID)
			if err != nil {
				return err
			}
			if existing != nil {
				return errors.ErrInvariant(
					"backlog already has a closed status",
					fmt.Sprintf("Status %q is the closed status; a backlog holds at most one", existing.Name))
			}
		}

		if isDefault {
			existing, err := db.FindDefaultStatusTx(tx, backlogID)
			if err != nil {
				return err
			}
			if existing != nil {
				if err := db.UpdateStatusDefaultTx(tx, existing.ID, false, existing.Position); err != nil {
					return err
				}
			}
		}

		st := &db.Status{
			BacklogID: backlogID,
			Name:      name,
			Color:     color,
			IsDefault: isDefault,
			IsClosed:  isClosed,
		}
		if err := db.CreateStatusTx(tx, e.store.Dialect(), st); err != nil {
			return err
		}

		if err := recanonicalizeTx(tx, backlogID); err != nil {
			return err
		}

		created, err = db.GetStatusTx(tx, st.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// MoveOrder swaps a status with its neighbor one position up or down.
//
// The default and closed statuses are fixed in the canonical scheme: they
// cannot be moved, and no status can be swapped into their slots.
func (e *Engine) MoveOrder(ctx context.Context, statusID int64, direction Direction) error {
	if _, err := ParseDirection(string(direction)); err != nil {
		return err
	}

	st, err := e.store.GetStatus(ctx, statusID)
	if err != nil {
		return err
	}
	if st == nil {
		return errors.ErrStatusNotFound(statusID)
	}

	release := e.locks.Acquire(st.BacklogID)
	defer release()

	return e.store.RunInTx(ctx, func(tx *db.TxOps) error {
		st, err := db.GetStatusTx(tx, statusID)
		if err != nil {
			return err
		}
		if st == nil {
			return errors.ErrStatusNotFound(statusID)
		}
		if st.IsDefault {
			return errors.ErrInvariant(
				"cannot move the default status",
				"The default status is fixed at position 1")
		}
		if st.IsClosed {
			return errors.ErrInvariant(
				"cannot move the closed status",
				"The closed status is fixed at the last position")
		}

		target := st.Position - 1
		if direction == DirectionDown {
			target = st.Position + 1
		}
		if target < 1 {
			return errors.ErrOrderConflict(
				"reorder target out of range",
				fmt.Sprintf("Position %d is below the first slot", target))
		}

		sibling, err := db.FindStatusAtPositionTx(tx, st.BacklogID, target)
		if err != nil {
			return err
		}
		if sibling == nil {
			return errors.ErrNoStatusAtPosition(st.BacklogID, target)
		}
		if sibling.IsDefault || sibling.IsClosed {
			return errors.ErrInvariant(
				"cannot swap into a sentinel slot",
				"The default and closed statuses keep their positions")
		}

		if err := db.UpdateStatusPositionTx(tx, st.ID, sibling.Position); err != nil {
			return err
		}
		return db.UpdateStatusPositionTx(tx, sibling.ID, st.Position)
	})
}

// AssignDefault makes a status the backlog's default. The previous default,
// if any, inherits the target's former position; the target takes position 1.
func (e *Engine) AssignDefault(ctx context.Context, statusID int64) error {
	st, err := e.store.GetStatus(ctx, statusID)
	if err != nil {
		return err
	}
	if st == nil {
		return errors.ErrStatusNotFound(statusID)
	}

	release := e.locks.Acquire(st.BacklogID)
	defer release()

	return e.store.RunInTx(ctx, func(tx *db.TxOps) error {
		st, err := db.GetStatusTx(tx, statusID)
		if err != nil {
			return err
		}
		if st == nil {
			return errors.ErrStatusNotFound(statusID)
		}
		if st.IsClosed {
			return errors.ErrInvariant(
				"closed status cannot become default",
				"The closed status is terminal and can never be the default")
		}
		if st.IsDefault {
			return nil
		}

		previous, err := db.FindDefaultStatusTx(tx, st.BacklogID)
		if err != nil {
			return err
		}
		if previous != nil {
			if err := db.UpdateStatusDefaultTx(tx, previous.ID, false, st.Position); err != nil {
				return err
			}
		}
		return db.UpdateStatusDefaultTx(tx, st.ID, true, 1)
	})
}

// Destroy deletes a status, first reassigning its tasks to the backlog's
// default status. Deletion is refused when no default exists to fall back
// to, and the default itself cannot be destroyed. Remaining positions are
// not compacted.
func (e *Engine) Destroy(ctx context.Context, statusID int64) error {
	st, err := e.store.GetStatus(ctx, statusID)
	if err != nil {
		return err
	}
	if st == nil {
		return errors.ErrStatusNotFound(statusID)
	}

	release := e.locks.Acquire(st.BacklogID)
	defer release()

	return e.store.RunInTx(ctx, func(tx *db.TxOps) error {
		st, err := db.GetStatusTx(tx, statusID)
		if err != nil {
			return err
		}
		if st == nil {
			return errors.ErrStatusNotFound(statusID)
		}

		fallback, err := db.FindDefaultStatusTx(tx, st.BacklogID)
		if err != nil {
			return err
		}
		if fallback == nil || fallback.ID == st.ID {
			return errors.ErrInvariant(
				"no default status",
				"Deleting this status would orphan its tasks; the backlog needs a default to fall back to")
		}

		if _, err := db.ReassignTasksByStatusTx(tx, st.ID, fallback.ID); err != nil {
			return err
		}
		return db.DeleteStatusTx(tx, st.ID)
	})
}

// Recanonicalize recomputes the canonical positions of a backlog's statuses
// in its own transaction.
func (e *Engine) Recanonicalize(ctx context.Context, backlogID string) error {
	release := e.locks.Acquire(backlogID)
	defer release()

	return e.store.RunInTx(ctx, func(tx *db.TxOps) error {
		return recanonicalizeTx(tx, backlogID)
	})
}

// recanonicalizeTx rewrites positions so the default status sits at 1, the
// middle statuses follow by ascending creation identifier, and the closed
// status comes last. Only rows whose position changed are written.
func recanonicalizeTx(tx *db.TxOps, backlogID string) error {
	statuses, err := db.ListStatusesTx(tx, backlogID)
	if err != nil {
		return err
	}

	var def, closed *db.Status
	for _, st := range statuses {
		if st.IsDefault && def == nil {
			def = st
		}
		if st.IsClosed && closed == nil {
			closed = st
		}
	}

	var middle []*db.Status
	for _, st := range statuses {
		if st == def || st == closed {
			continue
		}
		middle = append(middle, st)
	}
	// ListStatuses orders by position; the middle group is ranked by
	// creation identifier instead
	sort.Slice(middle, func(i, j int) bool { return middle[i].ID < middle[j].ID })

	pos := 1
	want := make(map[int64]int, len(statuses))
	if def != nil {
		want[def.ID] = pos
		pos++
	}
	for _, st := range middle {
		want[st.ID] = pos
		pos++
	}
	if closed != nil && closed != def {
		want[closed.ID] = pos
	}

	for _, st := range statuses {
		if target, ok := want[st.ID]; ok && target != st.Position {
			if err := db.UpdateStatusPositionTx(tx, st.ID, target); err != nil {
				return err
			}
		}
	}
	return nil
}
