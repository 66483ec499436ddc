package driver

import "testing"

func TestParseDialect(t *testing.T) {
	tests := []struct {
		in      string
		want    Dialect
		wantErr bool
	}{
		{"sqlite", DialectSQLite, false},
		{"sqlite3", DialectSQLite, false},
		{"postgres", DialectPostgres, false},
		{"postgresql", DialectPostgres, false},
		{"pg", DialectPostgres, false},
		{"mysql", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseDialect(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseDialect(%q) expected error, got %v", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseDialect(%q) failed: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDialect(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestPostgresRebind(t *testing.T) {
	d := NewPostgres()

	tests := []struct {
		in   string
		want string
	}{
		{"SELECT 1", "SELECT 1"},
		{"SELECT * FROM tasks WHERE id = ?", "SELECT * FROM tasks WHERE id = $1"},
		{"UPDATE statuses SET position = ? WHERE id = ?", "UPDATE statuses SET position = $1 WHERE id = $2"},
		{"SELECT * FROM tasks WHERE legacy_status != 'Done?' AND backlog_id = ?",
			"SELECT * FROM tasks WHERE legacy_status != 'Done?' AND backlog_id = $1"},
	}

	for _, tt := range tests {
		if got := d.Rebind(tt.in); got != tt.want {
			t.Errorf("Rebind(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSQLiteRebindIsIdentity(t *testing.T) {
	d := NewSQLite()
	q := "SELECT * FROM statuses WHERE backlog_id = ? ORDER BY position"
	if got := d.Rebind(q); got != q {
		t.Errorf("Rebind changed query: %q", got)
	}
}

func TestExtractVersion(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		want   int
	}{
		{"project_001.sql", "project_", 1},
		{"project_012.sql", "project_", 12},
		{"project_100.sql", "project_", 100},
	}

	for _, tt := range tests {
		if got := extractVersion(tt.name, tt.prefix); got != tt.want {
			t.Errorf("extractVersion(%q) = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestTranslateSchema(t *testing.T) {
	in := "CREATE TABLE t (id INTEGER PRIMARY KEY AUTOINCREMENT, created_at TEXT DEFAULT (datetime('now')))"
	got := translateSchema(in)
	want := "CREATE TABLE t (id BIGSERIAL PRIMARY KEY, created_at TEXT DEFAULT (NOW()))"
	if got != want {
		t.Errorf("translateSchema = %q, want %q", got, want)
	}
}
