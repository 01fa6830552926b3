package migrate

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSplitStatements(t *testing.T) {
	stmts := splitStatements(`create table a (id int); insert into a values (1, 'x;y');`)
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(stmts), stmts)
	}
}

func TestCollectSQLOrdersAndFilters(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"0002_sessions.up.sql", "0001_users.up.sql", "0001_users.down.sql", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("select 1;"), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	files, err := collectSQL(dir, ".up.sql")
	if err != nil {
		t.Fatalf("collectSQL: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 up migrations, got %d", len(files))
	}
	if files[0].base != "0001_users.up.sql" || files[1].base != "0002_sessions.up.sql" {
		t.Fatalf("unexpected order: %v", files)
	}
}

func TestCollectSQLMissingDir(t *testing.T) {
	files, err := collectSQL(filepath.Join(t.TempDir(), "absent"), ".up.sql")
	if err != nil {
		t.Fatalf("collectSQL: %v", err)
	}
	if files != nil {
		t.Fatalf("expected nil for missing dir, got %v", files)
	}
}
