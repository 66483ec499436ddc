// Package backlog orchestrates backlog lifecycle workflows.
//
// The finish workflow migrates a backlog's unfinished tasks to another
// backlog and retires the source. All writes happen in one transaction: the
// caller observes either the fully migrated state or no change at all. Cache
// invalidation runs after commit and is best-effort.
package backlog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/backlogd/backlogd/internal/cache"
	"github.com/backlogd/backlogd/internal/db"
	"github.com/backlogd/backlogd/internal/errors"
	"github.com/backlogd/backlogd/internal/lock"
)

// Action selects where a finished backlog's unfinished tasks go.
type Action string

const (
	ActionMoveToPrimary  Action = "move-to-primary"
	ActionMoveToNew      Action = "move-to-new"
	ActionMoveToExisting Action = "move-to-existing"
)

// ParseAction parses a move action string.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionMoveToPrimary, ActionMoveToNew, ActionMoveToExisting:
		return Action(s), nil
	default:
		return "", errors.ErrValidation(
			fmt.Sprintf("invalid move action %q", s),
			"Action must be move-to-primary, move-to-new, or move-to-existing")
	}
}

// FinishOptions carries the per-action parameters of a finish call.
type FinishOptions struct {
	// Name names the backlog created by move-to-new.
	Name string

	// TargetBacklogID identifies the destination for move-to-existing.
	TargetBacklogID string
}

// FinishResult reports the outcome of a finish call.
type FinishResult struct {
	MovedCount      int    `json:"moved_count"`
	TargetBacklogID string `json:"target_backlog_id"`
	TargetName      string `json:"target_name"`
}

// cacheModel is the record type used in cache keys for backlogs.
const cacheModel = "backlog"

// DefaultCacheTTL is the TTL for read-through cached backlog fetches.
const DefaultCacheTTL = 5 * time.Minute

// Coordinator runs backlog lifecycle workflows over the store, serialized
// per backlog through the keyed lock set.
type Coordinator struct {
	store *db.Store
	cache cache.Invalidator
	locks *lock.Keyed

	// CacheTTL bounds read-through cache entries. Zero means DefaultCacheTTL.
	CacheTTL time.Duration

	// test seam, invoked between task reassignment and source deletion
	beforeDelete func() error
}

// NewCoordinator creates a lifecycle coordinator.
func NewCoordinator(store *db.Store, invalidator cache.Invalidator, locks *lock.Keyed) *Coordinator {
	return &Coordinator{store: store, cache: invalidator, locks: locks}
}

// Get returns a backlog through the read-through cache.
func (c *Coordinator) Get(ctx context.Context, id string) (*db.Backlog, error) {
	key := cache.ModelKey(cacheModel, id)
	if getter, ok := c.cache.(interface{ Get(string) (any, bool) }); ok {
		if v, hit := getter.Get(key); hit {
			if b, ok := v.(*db.Backlog); ok {
				return b, nil
			}
		}
	}

	b, err := c.store.GetBacklog(ctx, id)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, errors.ErrBacklogNotFound(id)
	}

	ttl := c.CacheTTL
	if ttl == 0 {
		ttl = DefaultCacheTTL
	}
	if err := c.cache.Put(key, b, ttl); err != nil {
		slog.Warn("cache put failed", "key", key, "error", err)
	}
	return b, nil
}

// Finish migrates a backlog's unfinished tasks per the chosen action and
// soft-deletes the backlog, all in one transaction. Unfinished means the
// task's legacy status differs from the terminal Done marker.
//
// move-to-primary resolves the project's primary backlog; move-to-new
// creates a fresh non-primary backlog inheriting project and team;
// move-to-existing validates the supplied target before migrating. Tasks
// keep their status reference across the move.
func (c *Coordinator) Finish(ctx context.Context, backlogID string, action Action, opts FinishOptions) (*FinishResult, error) {
	if _, err := ParseAction(string(action)); err != nil {
		return nil, err
	}
	if action == ActionMoveToNew && opts.Name == "" {
		return nil, errors.ErrValidation(
			"new backlog name is required",
			"move-to-new creates a backlog and needs a non-empty name")
	}
	if action == ActionMoveToExisting {
		if opts.TargetBacklogID == "" {
			return nil, errors.ErrValidation(
				"target backlog is required",
				"move-to-existing needs the destination backlog's ID")
		}
		if opts.TargetBacklogID == backlogID {
			return nil, errors.ErrValidation(
				"target backlog must differ from the one being finished",
				"A backlog cannot receive its own unfinished tasks")
		}
	}

	var release func()
	if action == ActionMoveToExisting {
		release = c.locks.AcquireMany(backlogID, opts.TargetBacklogID)
	} else {
		release = c.locks.Acquire(backlogID)
	}
	defer release()

	var (
		src    *db.Backlog
		target *db.Backlog
		moved  int64
	)
	err := c.store.RunInTx(ctx, func(tx *db.TxOps) error {
		var err error
		src, err = db.GetBacklogTx(tx, backlogID)
		if err != nil {
			return err
		}
		if src == nil {
			return errors.ErrBacklogNotFound(backlogID)
		}

		unfinished, err := db.ListUnfinishedTasksTx(tx, backlogID)
		if err != nil {
			return err
		}

		target, err = c.resolveTarget(tx, src, action, opts)
		if err != nil {
			return err
		}

		ids := make([]int64, len(unfinished))
		for i, task := range unfinished {
			ids[i] = task.ID
		}
		moved, err = db.ReassignTasksToBacklogTx(tx, ids, target.ID)
		if err != nil {
			return err
		}

		if c.beforeDelete != nil {
			if err := c.beforeDelete(); err != nil {
				return err
			}
		}

		return db.SoftDeleteBacklogTx(tx, src.ID)
	})
	if err != nil {
		var ce *errors.CoreError
		if errors.AsCore(err, &ce) {
			return nil, ce
		}
		return nil, errors.ErrTransactionFailed(err)
	}

	// The target row must be readable once the transaction has committed.
	fresh, err := c.store.GetBacklog(ctx, target.ID)
	if err != nil {
		return nil, errors.ErrInternal("re-fetch target backlog after commit", err)
	}
	if fresh == nil {
		return nil, errors.ErrInternal(
			fmt.Sprintf("target backlog %s missing after commit", target.ID), nil)
	}

	c.invalidate(src, fresh)

	return &FinishResult{
		MovedCount:      int(moved),
		TargetBacklogID: fresh.ID,
		TargetName:      fresh.Name,
	}, nil
}

// resolveTarget determines or creates the destination backlog inside the
// finish transaction.
func (c *Coordinator) resolveTarget(tx *db.TxOps, src *db.Backlog, action Action, opts FinishOptions) (*db.Backlog, error) {
	switch action {
	case ActionMoveToPrimary:
		if src.ProjectID == "" {
			return nil, errors.ErrInvariant(
				"backlog has no project",
				"move-to-primary needs a project to locate the primary backlog in")
		}
		primary, err := db.FindPrimaryBacklogTx(tx, src.ProjectID, src.ID)
		if err != nil {
			return nil, err
		}
		if primary == nil {
			return nil, errors.ErrInvariant(
				"no primary backlog",
				fmt.Sprintf("Project %s has no backlog flagged primary", src.ProjectID))
		}
		return primary, nil

	case ActionMoveToNew:
		now := time.Now().UTC()
		fresh := &db.Backlog{
			ProjectID: src.ProjectID,
			TeamID:    src.TeamID,
			Name:      opts.Name,
			StartsAt:  &now,
		}
		if err := db.CreateBacklogTx(tx, fresh); err != nil {
			return nil, err
		}
		return fresh, nil

	case ActionMoveToExisting:
		target, err := db.GetBacklogTx(tx, opts.TargetBacklogID)
		if err != nil {
			return nil, err
		}
		if target == nil {
			return nil, errors.ErrBacklogNotFound(opts.TargetBacklogID)
		}
		return target, nil

	default:
		return nil, errors.ErrValidation(fmt.Sprintf("invalid move action %q", action), "")
	}
}

// invalidate drops the cache entries touched by a finished backlog: the
// model list, both item entries, and both project backlog lists. Failures
// are logged and ignored.
func (c *Coordinator) invalidate(src, target *db.Backlog) {
	keysFor := func(b *db.Backlog) []string {
		keys := []string{
			cache.ModelAllKey(cacheModel),
			cache.ModelKey(cacheModel, b.ID),
		}
		if b.ProjectID != "" {
			keys = append(keys, cache.ProjectBacklogsKey(b.ProjectID))
		}
		return keys
	}

	var g errgroup.Group
	for _, keys := range [][]string{keysFor(src), keysFor(target)} {
		g.Go(func() error {
			return c.cache.ForgetMany(keys...)
		})
	}
	if err := g.Wait(); err != nil {
		slog.Warn("cache invalidation failed",
			"source", src.ID, "target", target.ID, "error", err)
	}
}
