package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/backlogd/backlogd/internal/db/driver"
)

// Status represents a named stage in a backlog's workflow.
// Position is the canonical order within the backlog; the default status sits
// at position 1 and the closed status (if any) last.
type Status struct {
	ID        int64
	BacklogID string
	Name      string
	Position  int
	IsDefault bool
	IsClosed  bool
	Color     string
	CreatedAt time.Time
}

const statusColumns = `id, backlog_id, name, position, is_default, is_closed, color, created_at`

// CreateStatus inserts a new status and fills in its generated ID.
func (s *Store) CreateStatus(ctx context.Context, st *Status) error {
	return createStatus(s.ops(ctx), s.Dialect(), st)
}

// CreateStatusTx inserts a new status within a transaction.
func CreateStatusTx(tx *TxOps, dialect driver.Dialect, st *Status) error {
	return createStatus(tx, dialect, st)
}

func createStatus(q executor, dialect driver.Dialect, st *Status) error {
	if st.CreatedAt.IsZero() {
		st.CreatedAt = time.Now().UTC()
	}
	created := st.CreatedAt.Format(time.RFC3339)

	if dialect == driver.DialectPostgres {
		row := q.QueryRow(`
			INSERT INTO statuses (backlog_id, name, position, is_default, is_closed, color, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			RETURNING id`,
			st.BacklogID, st.Name, st.Position, boolToInt(st.IsDefault),
			boolToInt(st.IsClosed), st.Color, created)
		if err := row.Scan(&st.ID); err != nil {
			return fmt.Errorf("insert status: %w", err)
		}
		return nil
	}

	res, err := q.Exec(`
		INSERT INTO statuses (backlog_id, name, position, is_default, is_closed, color, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		st.BacklogID, st.Name, st.Position, boolToInt(st.IsDefault),
		boolToInt(st.IsClosed), st.Color, created)
	if err != nil {
		return fmt.Errorf("insert status: %w", err)
	}
	st.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert status: %w", err)
	}
	return nil
}

// GetStatus returns the status with the given ID, or nil if absent.
func (s *Store) GetStatus(ctx context.Context, id int64) (*Status, error) {
	return getStatus(s.ops(ctx), id)
}

// GetStatusTx returns a status within a transaction.
func GetStatusTx(tx *TxOps, id int64) (*Status, error) {
	return getStatus(tx, id)
}

func getStatus(q executor, id int64) (*Status, error) {
	row := q.QueryRow(`SELECT `+statusColumns+` FROM statuses WHERE id = ?`, id)
	return scanStatus(row)
}

// ListStatuses returns a backlog's statuses ordered by position, breaking
// ties on the creation identifier.
func (s *Store) ListStatuses(ctx context.Context, backlogID string) ([]*Status, error) {
	return listStatuses(s.ops(ctx), backlogID)
}

// ListStatusesTx lists a backlog's statuses within a transaction.
func ListStatusesTx(tx *TxOps, backlogID string) ([]*Status, error) {
	return listStatuses(tx, backlogID)
}

func listStatuses(q executor, backlogID string) ([]*Status, error) {
	rows, err := q.Query(`
		SELECT `+statusColumns+`
		FROM statuses
		WHERE backlog_id = ?
		ORDER BY position, id`, backlogID)
	if err != nil {
		return nil, fmt.Errorf("query statuses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var statuses []*Status
	for rows.Next() {
		st, err := scanStatusFrom(rows)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, st)
	}
	return statuses, rows.Err()
}

// FindStatusAtPositionTx returns the status occupying a position in a
// backlog, or nil if no status sits there.
func FindStatusAtPositionTx(tx *TxOps, backlogID string, position int) (*Status, error) {
	row := tx.QueryRow(`
		SELECT `+statusColumns+`
		FROM statuses
		WHERE backlog_id = ? AND position = ?
		LIMIT 1`, backlogID, position)
	return scanStatus(row)
}

// FindDefaultStatusTx returns a backlog's default status, or nil if none.
func FindDefaultStatusTx(tx *TxOps, backlogID string) (*Status, error) {
	row := tx.QueryRow(`
		SELECT `+statusColumns+`
		FROM statuses
		WHERE backlog_id = ? AND is_default = 1
		LIMIT 1`, backlogID)
	return scanStatus(row)
}

// FindClosedStatusTx returns a backlog's closed status, or nil if none.
func FindClosedStatusTx(tx *TxOps, backlogID string) (*Status, error) {
	row := tx.QueryRow(`
		SELECT `+statusColumns+`
		FROM statuses
		WHERE backlog_id = ? AND is_closed = 1
		LIMIT 1`, backlogID)
	return scanStatus(row)
}

// UpdateStatusPositionTx sets a status's position.
func UpdateStatusPositionTx(tx *TxOps, id int64, position int) error {
	_, err := tx.Exec(`UPDATE statuses SET position = ? WHERE id = ?`, position, id)
	if err != nil {
		return fmt.Errorf("update status position: %w", err)
	}
	return nil
}

// UpdateStatusDefaultTx sets a status's default flag and position together.
func UpdateStatusDefaultTx(tx *TxOps, id int64, isDefault bool, position int) error {
	_, err := tx.Exec(`UPDATE statuses SET is_default = ?, position = ? WHERE id = ?`,
		boolToInt(isDefault), position, id)
	if err != nil {
		return fmt.Errorf("update status default: %w", err)
	}
	return nil
}

// DeleteStatusTx removes a status row.
func DeleteStatusTx(tx *TxOps, id int64) error {
	_, err := tx.Exec(`DELETE FROM statuses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete status: %w", err)
	}
	return nil
}

func scanStatus(row *sql.Row) (*Status, error) {
	st, err := scanStatusFrom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return st, err
}

func scanStatusFrom(r rowScanner) (*Status, error) {
	var st Status
	var isDefault, isClosed int
	var createdAt string

	err := r.Scan(&st.ID, &st.BacklogID, &st.Name, &st.Position,
		&isDefault, &isClosed, &st.Color, &createdAt)
	if err != nil {
		return nil, err
	}

	st.IsDefault = isDefault != 0
	st.IsClosed = isClosed != 0
	st.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &st, nil
}
