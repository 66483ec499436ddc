package status

import (
	"context"
	"errors"
	"testing"

	"github.com/backlogd/backlogd/internal/db"
	bderr "github.com/backlogd/backlogd/internal/errors"
	"github.com/backlogd/backlogd/internal/lock"
)

func newTestEngine(t *testing.T) (*Engine, *db.Store, string) {
	t.Helper()
	store := db.NewTestStore(t)
	engine := NewEngine(store, lock.NewKeyed())

	b := &db.Backlog{ProjectID: "proj-1", Name: "Sprint 1"}
	if err := store.CreateBacklog(context.Background(), b); err != nil {
		t.Fatalf("create backlog: %v", err)
	}
	return engine, store, b.ID
}

func wantCode(t *testing.T, err error, code bderr.Code) {
	t.Helper()
	var ce *bderr.CoreError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CoreError %s, got %v", code, err)
	}
	if ce.Code != code {
		t.Fatalf("error code = %s, want %s (err: %v)", ce.Code, code, err)
	}
}

func positions(t *testing.T, store *db.Store, backlogID string) map[string]int {
	t.Helper()
	statuses, err := store.ListStatuses(context.Background(), backlogID)
	if err != nil {
		t.Fatalf("list statuses: %v", err)
	}
	out := make(map[string]int, len(statuses))
	for _, st := range statuses {
		out[st.Name] = st.Position
	}
	return out
}

func TestCreateCanonicalOrdering(t *testing.T) {
	t.Parallel()
	engine, store, backlogID := newTestEngine(t)
	ctx := context.Background()

	// Insert in an order unrelated to the canonical one
	if _, err := engine.Create(ctx, backlogID, "Closed", "", false, true); err != nil {
		t.Fatalf("create Closed: %v", err)
	}
	if _, err := engine.Create(ctx, backlogID, "Mid", "#aabbcc", false, false); err != nil {
		t.Fatalf("create Mid: %v", err)
	}
	if _, err := engine.Create(ctx, backlogID, "Default", "", true, false); err != nil {
		t.Fatalf("create Default: %v", err)
	}

	got := positions(t, store, backlogID)
	want := map[string]int{"Default": 1, "Mid": 2, "Closed": 3}
	for name, pos := range want {
		if got[name] != pos {
			t.Errorf("%s position = %d, want %d", name, got[name], pos)
		}
	}
}

func TestCreateAssignsContiguousPositions(t *testing.T) {
	t.Parallel()
	engine, store, backlogID := newTestEngine(t)
	ctx := context.Background()

	names := []string{"To Do", "Doing", "Review", "Blocked"}
	if _, err := engine.Create(ctx, backlogID, names[0], "", true, false); err != nil {
		t.Fatalf("create: %v", err)
	}
	for _, name := range names[1:] {
		if _, err := engine.Create(ctx, backlogID, name, "", false, false); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}
	if _, err := engine.Create(ctx, backlogID, "Done", "", false, true); err != nil {
		t.Fatalf("create Done: %v", err)
	}

	statuses, err := store.ListStatuses(ctx, backlogID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	seen := make(map[int]bool)
	for i, st := range statuses {
		if st.Position != i+1 {
			t.Errorf("position %d at index %d, want %d", st.Position, i, i+1)
		}
		if seen[st.Position] {
			t.Errorf("duplicate position %d", st.Position)
		}
		seen[st.Position] = true
	}
	if statuses[0].Name != "To Do" || !statuses[0].IsDefault {
		t.Errorf("first status should be the default, got %+v", statuses[0])
	}
	if last := statuses[len(statuses)-1]; last.Name != "Done" || !last.IsClosed {
		t.Errorf("last status should be the closed one, got %+v", last)
	}
}

func TestCreateValidation(t *testing.T) {
	t.Parallel()
	engine, _, backlogID := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.Create(ctx, backlogID, "", "", false, false)
	wantCode(t, err, bderr.CodeValidationFailed)

	_, err = engine.Create(ctx, "missing-backlog", "To Do", "", false, false)
	wantCode(t, err, bderr.CodeValidationFailed)

	_, err = engine.Create(ctx, backlogID, "Weird", "", true, true)
	wantCode(t, err, bderr.CodeValidationFailed)
}

func TestCreateSecondClosedRejected(t *testing.T) {
	t.Parallel()
	engine, _, backlogID := newTestEngine(t)
	ctx := context.Background()

	if _, err := engine.Create(ctx, backlogID, "Done", "", false, true); err != nil {
		t.Fatalf("create Done: %v", err)
	}
	_, err := engine.Create(ctx, backlogID, "Also Done", "", false, true)
	wantCode(t, err, bderr.CodeInvariantViolation)
}

func TestCreateDefaultDemotesPrevious(t *testing.T) {
	t.Parallel()
	engine, store, backlogID := newTestEngine(t)
	ctx := context.Background()

	if _, err := engine.Create(ctx, backlogID, "Old Default", "", true, false); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := engine.Create(ctx, backlogID, "New Default", "", true, false); err != nil {
		t.Fatalf("create: %v", err)
	}

	statuses, err := store.ListStatuses(ctx, backlogID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	defaults := 0
	for _, st := range statuses {
		if st.IsDefault {
			defaults++
			if st.Name != "New Default" {
				t.Errorf("default is %s, want New Default", st.Name)
			}
			if st.Position != 1 {
				t.Errorf("default position = %d, want 1", st.Position)
			}
		}
	}
	if defaults != 1 {
		t.Errorf("found %d defaults, want exactly 1", defaults)
	}
}

func TestMoveOrderSwapsSiblings(t *testing.T) {
	t.Parallel()
	engine, store, backlogID := newTestEngine(t)
	ctx := context.Background()

	if _, err := engine.Create(ctx, backlogID, "To Do", "", true, false); err != nil {
		t.Fatalf("create: %v", err)
	}
	doing, err := engine.Create(ctx, backlogID, "Doing", "", false, false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	review, err := engine.Create(ctx, backlogID, "Review", "", false, false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	sumBefore := doing.Position + review.Position

	if err := engine.MoveOrder(ctx, review.ID, DirectionUp); err != nil {
		t.Fatalf("MoveOrder: %v", err)
	}

	got := positions(t, store, backlogID)
	if got["Review"] != 2 || got["Doing"] != 3 {
		t.Errorf("after swap: Review=%d Doing=%d, want 2 and 3", got["Review"], got["Doing"])
	}
	if got["Review"]+got["Doing"] != sumBefore {
		t.Errorf("position sum changed: %d, want %d", got["Review"]+got["Doing"], sumBefore)
	}
}

func TestMoveOrderRejectsSentinels(t *testing.T) {
	t.Parallel()
	engine, _, backlogID := newTestEngine(t)
	ctx := context.Background()

	def, err := engine.Create(ctx, backlogID, "To Do", "", true, false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	doing, err := engine.Create(ctx, backlogID, "Doing", "", false, false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	closed, err := engine.Create(ctx, backlogID, "Done", "", false, true)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// The sentinels themselves are immovable
	wantCode(t, engine.MoveOrder(ctx, def.ID, DirectionDown), bderr.CodeInvariantViolation)
	wantCode(t, engine.MoveOrder(ctx, closed.ID, DirectionUp), bderr.CodeInvariantViolation)

	// And nothing can swap into their slots
	wantCode(t, engine.MoveOrder(ctx, doing.ID, DirectionUp), bderr.CodeInvariantViolation)
	wantCode(t, engine.MoveOrder(ctx, doing.ID, DirectionDown), bderr.CodeInvariantViolation)
}

func TestMoveOrderConflictAndNotFound(t *testing.T) {
	t.Parallel()
	engine, store, backlogID := newTestEngine(t)
	ctx := context.Background()

	mid, err := engine.Create(ctx, backlogID, "Mid", "", false, false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Only status: position 1, moving up goes below the first slot
	wantCode(t, engine.MoveOrder(ctx, mid.ID, DirectionUp), bderr.CodeOrderConflict)

	// Moving down targets an unoccupied position
	wantCode(t, engine.MoveOrder(ctx, mid.ID, DirectionDown), bderr.CodeStatusNotFound)

	// Unknown status
	wantCode(t, engine.MoveOrder(ctx, 9999, DirectionUp), bderr.CodeStatusNotFound)

	// Arbitrary direction is rejected defensively
	wantCode(t, engine.MoveOrder(ctx, mid.ID, Direction("sideways")), bderr.CodeValidationFailed)

	// Nothing moved
	if got := positions(t, store, backlogID); got["Mid"] != 1 {
		t.Errorf("Mid position = %d, want 1", got["Mid"])
	}
}

func TestAssignDefaultSwapsPositions(t *testing.T) {
	t.Parallel()
	engine, store, backlogID := newTestEngine(t)
	ctx := context.Background()

	if _, err := engine.Create(ctx, backlogID, "To Do", "", true, false); err != nil {
		t.Fatalf("create: %v", err)
	}
	doing, err := engine.Create(ctx, backlogID, "Doing", "", false, false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	formerPosition := doing.Position

	if err := engine.AssignDefault(ctx, doing.ID); err != nil {
		t.Fatalf("AssignDefault: %v", err)
	}

	statuses, err := store.ListStatuses(ctx, backlogID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	defaults := 0
	for _, st := range statuses {
		switch st.Name {
		case "Doing":
			if !st.IsDefault || st.Position != 1 {
				t.Errorf("Doing = %+v, want default at position 1", st)
			}
		case "To Do":
			if st.IsDefault {
				t.Error("To Do should no longer be default")
			}
			if st.Position != formerPosition {
				t.Errorf("To Do position = %d, want %d (the target's former slot)", st.Position, formerPosition)
			}
		}
		if st.IsDefault {
			defaults++
		}
	}
	if defaults != 1 {
		t.Errorf("found %d defaults, want exactly 1", defaults)
	}
}

func TestAssignDefaultRejectsClosed(t *testing.T) {
	t.Parallel()
	engine, _, backlogID := newTestEngine(t)
	ctx := context.Background()

	closed, err := engine.Create(ctx, backlogID, "Done", "", false, true)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	wantCode(t, engine.AssignDefault(ctx, closed.ID), bderr.CodeInvariantViolation)
}

func TestAssignDefaultIdempotent(t *testing.T) {
	t.Parallel()
	engine, store, backlogID := newTestEngine(t)
	ctx := context.Background()

	def, err := engine.Create(ctx, backlogID, "To Do", "", true, false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := engine.AssignDefault(ctx, def.ID); err != nil {
		t.Fatalf("AssignDefault on current default: %v", err)
	}
	if got := positions(t, store, backlogID); got["To Do"] != 1 {
		t.Errorf("To Do position = %d, want 1", got["To Do"])
	}
}

func TestDestroyCascadesTasksToDefault(t *testing.T) {
	t.Parallel()
	engine, store, backlogID := newTestEngine(t)
	ctx := context.Background()

	def, err := engine.Create(ctx, backlogID, "To Do", "", true, false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	doing, err := engine.Create(ctx, backlogID, "Doing", "", false, false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	review, err := engine.Create(ctx, backlogID, "Review", "", false, false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	task := &db.Task{BacklogID: backlogID, Title: "t1", StatusID: &doing.ID}
	if err := store.CreateTask(ctx, task); err != nil {
		t.Fatalf("create task: %v", err)
	}

	if err := engine.Destroy(ctx, doing.ID); err != nil {
		t.Fatalf("Destroy: %v", err)
	}

	// Task moved to the default
	got, err := store.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got.StatusID == nil || *got.StatusID != def.ID {
		t.Errorf("task status = %v, want %d", got.StatusID, def.ID)
	}

	// Status is gone and positions are NOT compacted: Review keeps its slot
	statuses, err := store.ListStatuses(ctx, backlogID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	pos := positions(t, store, backlogID)
	if pos["Review"] != review.Position {
		t.Errorf("Review position = %d, want %d (gap preserved)", pos["Review"], review.Position)
	}
}

func TestDestroyWithoutDefaultFails(t *testing.T) {
	t.Parallel()
	engine, _, backlogID := newTestEngine(t)
	ctx := context.Background()

	mid, err := engine.Create(ctx, backlogID, "Mid", "", false, false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	wantCode(t, engine.Destroy(ctx, mid.ID), bderr.CodeInvariantViolation)
}

func TestDestroyDefaultRefused(t *testing.T) {
	t.Parallel()
	engine, _, backlogID := newTestEngine(t)
	ctx := context.Background()

	def, err := engine.Create(ctx, backlogID, "To Do", "", true, false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	wantCode(t, engine.Destroy(ctx, def.ID), bderr.CodeInvariantViolation)
}

func TestRecanonicalizeStandalone(t *testing.T) {
	t.Parallel()
	engine, store, backlogID := newTestEngine(t)
	ctx := context.Background()

	// Seed rows with scrambled positions directly through the store
	def := &db.Status{BacklogID: backlogID, Name: "Default", Position: 7, IsDefault: true}
	mid := &db.Status{BacklogID: backlogID, Name: "Mid", Position: 3}
	closed := &db.Status{BacklogID: backlogID, Name: "Closed", Position: 1, IsClosed: true}
	for _, st := range []*db.Status{def, mid, closed} {
		if err := store.CreateStatus(ctx, st); err != nil {
			t.Fatalf("create status: %v", err)
		}
	}

	if err := engine.Recanonicalize(ctx, backlogID); err != nil {
		t.Fatalf("Recanonicalize: %v", err)
	}

	got := positions(t, store, backlogID)
	want := map[string]int{"Default": 1, "Mid": 2, "Closed": 3}
	for name, pos := range want {
		if got[name] != pos {
			t.Errorf("%s position = %d, want %d", name, got[name], pos)
		}
	}
}
