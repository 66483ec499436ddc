package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/backlogd/backlogd/internal/db/driver"
)

// DoneMarker is the terminal value of the legacy free-text status field.
// The finish workflow treats tasks whose legacy_status differs from this
// marker as unfinished.
const DoneMarker = "Done"

// Task represents a work item in a backlog.
//
// StatusID references the backlog's workflow status. LegacyStatus is the
// older free-text field still consulted by the finish workflow's unfinished
// filter; the two can disagree.
type Task struct {
	ID           int64
	BacklogID    string
	StatusID     *int64
	Assignee     string
	Title        string
	LegacyStatus string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

const taskColumns = `id, backlog_id, status_id, assignee, title, legacy_status, created_at, updated_at`

// CreateTask inserts a new task and fills in its generated ID.
func (s *Store) CreateTask(ctx context.Context, t *Task) error {
	return createTask(s.ops(ctx), s.Dialect(), t)
}

// CreateTaskTx inserts a new task within a transaction.
func CreateTaskTx(tx *TxOps, dialect driver.Dialect, t *Task) error {
	return createTask(tx, dialect, t)
}

func createTask(q executor, dialect driver.Dialect, t *Task) error {
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	created := t.CreatedAt.Format(time.RFC3339)
	updated := t.UpdatedAt.Format(time.RFC3339)

	if dialect == driver.DialectPostgres {
		row := q.QueryRow(`
			INSERT INTO tasks (backlog_id, status_id, assignee, title, legacy_status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			RETURNING id`,
			t.BacklogID, t.StatusID, t.Assignee, t.Title, t.LegacyStatus, created, updated)
		if err := row.Scan(&t.ID); err != nil {
			return fmt.Errorf("insert task: %w", err)
		}
		return nil
	}

	res, err := q.Exec(`
		INSERT INTO tasks (backlog_id, status_id, assignee, title, legacy_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.BacklogID, t.StatusID, t.Assignee, t.Title, t.LegacyStatus, created, updated)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	t.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// GetTask returns the task with the given ID, or nil if absent.
func (s *Store) GetTask(ctx context.Context, id int64) (*Task, error) {
	row := s.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTaskFrom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

// ListTasks returns all tasks in a backlog.
func (s *Store) ListTasks(ctx context.Context, backlogID string) ([]*Task, error) {
	rows, err := s.QueryContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE backlog_id = ?
		ORDER BY id`, backlogID)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	return collectTasks(rows)
}

// ListUnfinishedTasksTx returns a backlog's tasks whose legacy status is not
// the terminal Done marker.
func ListUnfinishedTasksTx(tx *TxOps, backlogID string) ([]*Task, error) {
	rows, err := tx.Query(`
		SELECT `+taskColumns+`
		FROM tasks
		WHERE backlog_id = ? AND legacy_status != ?
		ORDER BY id`, backlogID, DoneMarker)
	if err != nil {
		return nil, fmt.Errorf("query unfinished tasks: %w", err)
	}
	return collectTasks(rows)
}

// ReassignTasksToBacklogTx moves the given tasks to another backlog.
// Status references are not touched.
func ReassignTasksToBacklogTx(tx *TxOps, taskIDs []int64, targetBacklogID string) (int64, error) {
	if len(taskIDs) == 0 {
		return 0, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(taskIDs)), ", ")
	args := make([]any, 0, len(taskIDs)+2)
	args = append(args, targetBacklogID, time.Now().UTC().Format(time.RFC3339))
	for _, id := range taskIDs {
		args = append(args, id)
	}

	res, err := tx.Exec(`
		UPDATE tasks SET backlog_id = ?, updated_at = ?
		WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("reassign tasks to backlog: %w", err)
	}
	return res.RowsAffected()
}

// ReassignTasksByStatusTx moves every task referencing one status to another.
func ReassignTasksByStatusTx(tx *TxOps, fromStatusID, toStatusID int64) (int64, error) {
	res, err := tx.Exec(`
		UPDATE tasks SET status_id = ?, updated_at = ?
		WHERE status_id = ?`,
		toStatusID, time.Now().UTC().Format(time.RFC3339), fromStatusID)
	if err != nil {
		return 0, fmt.Errorf("reassign tasks by status: %w", err)
	}
	return res.RowsAffected()
}

func collectTasks(rows *sql.Rows) ([]*Task, error) {
	defer func() { _ = rows.Close() }()

	var tasks []*Task
	for rows.Next() {
		t, err := scanTaskFrom(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func scanTaskFrom(r rowScanner) (*Task, error) {
	var t Task
	var statusID sql.NullInt64
	var createdAt, updatedAt string

	err := r.Scan(&t.ID, &t.BacklogID, &statusID, &t.Assignee, &t.Title,
		&t.LegacyStatus, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if statusID.Valid {
		t.StatusID = &statusID.Int64
	}
	t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	t.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &t, nil
}
