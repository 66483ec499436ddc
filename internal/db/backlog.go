package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Backlog represents a named container of tasks scoped to a project/team.
type Backlog struct {
	ID          string
	ProjectID   string // empty when the backlog is not assigned to a project
	TeamID      string
	Name        string
	Description string
	IsPrimary   bool
	StartsAt    *time.Time
	EndsAt      *time.Time
	DeletedAt   *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Deleted reports whether the backlog has been soft-deleted.
func (b *Backlog) Deleted() bool {
	return b.DeletedAt != nil
}

const backlogColumns = `id, project_id, team_id, name, description, is_primary,
	starts_at, ends_at, deleted_at, created_at, updated_at`

// CreateBacklog inserts a new backlog. A UUID is assigned if ID is empty.
func (s *Store) CreateBacklog(ctx context.Context, b *Backlog) error {
	return createBacklog(s.ops(ctx), b)
}

// CreateBacklogTx inserts a new backlog within a transaction.
func CreateBacklogTx(tx *TxOps, b *Backlog) error {
	return createBacklog(tx, b)
}

func createBacklog(q executor, b *Backlog) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now

	_, err := q.Exec(`
		INSERT INTO backlogs (id, project_id, team_id, name, description, is_primary,
			starts_at, ends_at, deleted_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.ProjectID, b.TeamID, b.Name, b.Description, boolToInt(b.IsPrimary),
		formatNullableTime(b.StartsAt), formatNullableTime(b.EndsAt),
		formatNullableTime(b.DeletedAt),
		b.CreatedAt.Format(time.RFC3339), b.UpdatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert backlog: %w", err)
	}
	return nil
}

// GetBacklog returns the backlog with the given ID, or nil if it does not
// exist or has been soft-deleted.
func (s *Store) GetBacklog(ctx context.Context, id string) (*Backlog, error) {
	return getBacklog(s.ops(ctx), id)
}

// GetBacklogTx returns a backlog within a transaction.
func GetBacklogTx(tx *TxOps, id string) (*Backlog, error) {
	return getBacklog(tx, id)
}

func getBacklog(q executor, id string) (*Backlog, error) {
	row := q.QueryRow(`
		SELECT `+backlogColumns+`
		FROM backlogs
		WHERE id = ? AND deleted_at IS NULL`, id)
	return scanBacklog(row)
}

// ListBacklogsByProject returns all live backlogs belonging to a project.
func (s *Store) ListBacklogsByProject(ctx context.Context, projectID string) ([]*Backlog, error) {
	rows, err := s.QueryContext(ctx, `
		SELECT `+backlogColumns+`
		FROM backlogs
		WHERE project_id = ? AND deleted_at IS NULL
		ORDER BY created_at`, projectID)
	if err != nil {
		return nil, fmt.Errorf("query backlogs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var backlogs []*Backlog
	for rows.Next() {
		b, err := scanBacklogRow(rows)
		if err != nil {
			return nil, err
		}
		backlogs = append(backlogs, b)
	}
	return backlogs, rows.Err()
}

// FindPrimaryBacklog returns the project's primary backlog, or nil if the
// project has none. A backlog can be excluded from the search (typically the
// one being finished).
func (s *Store) FindPrimaryBacklog(ctx context.Context, projectID, excludeID string) (*Backlog, error) {
	return findPrimaryBacklog(s.ops(ctx), projectID, excludeID)
}

// FindPrimaryBacklogTx finds a project's primary backlog within a transaction.
func FindPrimaryBacklogTx(tx *TxOps, projectID, excludeID string) (*Backlog, error) {
	return findPrimaryBacklog(tx, projectID, excludeID)
}

func findPrimaryBacklog(q executor, projectID, excludeID string) (*Backlog, error) {
	row := q.QueryRow(`
		SELECT `+backlogColumns+`
		FROM backlogs
		WHERE project_id = ? AND is_primary = 1 AND deleted_at IS NULL AND id != ?
		LIMIT 1`, projectID, excludeID)
	return scanBacklog(row)
}

// SoftDeleteBacklog marks a backlog as deleted without removing the row.
func (s *Store) SoftDeleteBacklog(ctx context.Context, id string) error {
	return softDeleteBacklog(s.ops(ctx), id)
}

// SoftDeleteBacklogTx soft-deletes a backlog within a transaction.
func SoftDeleteBacklogTx(tx *TxOps, id string) error {
	return softDeleteBacklog(tx, id)
}

func softDeleteBacklog(q executor, id string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := q.Exec(`
		UPDATE backlogs SET deleted_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`, now, now, id)
	if err != nil {
		return fmt.Errorf("soft delete backlog: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("soft delete backlog: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("soft delete backlog: %s not found", id)
	}
	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanBacklog(row *sql.Row) (*Backlog, error) {
	b, err := scanBacklogFrom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return b, err
}

func scanBacklogRow(rows *sql.Rows) (*Backlog, error) {
	return scanBacklogFrom(rows)
}

func scanBacklogFrom(r rowScanner) (*Backlog, error) {
	var b Backlog
	var isPrimary int
	var startsAt, endsAt, deletedAt sql.NullString
	var createdAt, updatedAt string

	err := r.Scan(&b.ID, &b.ProjectID, &b.TeamID, &b.Name, &b.Description, &isPrimary,
		&startsAt, &endsAt, &deletedAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	b.IsPrimary = isPrimary != 0
	b.StartsAt = parseNullableTime(startsAt)
	b.EndsAt = parseNullableTime(endsAt)
	b.DeletedAt = parseNullableTime(deletedAt)
	b.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	b.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &b, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func parseNullableTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}
