package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"wadlib/internal/config"
	"wadlib/internal/database/migrations"
	"wadlib/internal/testutil"
)

// newTestConfig returns a config rooted in a temp dir that serves archives
// from a local mirror directory.
func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	base := t.TempDir()
	cfg := config.NewConfig(base)

	mirror := filepath.Join(base, "mirror")
	if err := os.MkdirAll(mirror, 0755); err != nil {
		t.Fatal(err)
	}
	wad := testutil.BuildWAD("PWAD", testutil.Lump{Name: "MAPINFO", Data: []byte(`map MAP01 "Entryway"`)})
	if err := os.WriteFile(filepath.Join(mirror, "scythe.wad"), wad, 0644); err != nil {
		t.Fatal(err)
	}
	cfg.Source = config.SourceConfig{Type: "filesystem", Name: "mirror", FSRoot: mirror}

	catalogDoc := `{"wads": [{"slug": "scythe", "title": "Scythe", "filename": "scythe.wad"}]}`
	if err := os.WriteFile(cfg.Catalog.Path, []byte(catalogDoc), 0644); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestWadlibApp_RequiresMigratedDatabase(t *testing.T) {
	cfg := newTestConfig(t)

	if _, err := NewWadlibApp(context.Background(), cfg, "list", ""); !errors.Is(err, migrations.ErrNeedsMigration) {
		t.Fatalf("NewWadlibApp() error = %v, want ErrNeedsMigration", err)
	}

	if _, err := InitDatabase(cfg); err != nil {
		t.Fatalf("InitDatabase() error = %v", err)
	}
	a, err := NewWadlibApp(context.Background(), cfg, "list", "")
	if err != nil {
		t.Fatalf("NewWadlibApp() after InitDatabase() error = %v", err)
	}
	a.Close()
}

func TestWadlibApp_InstallIsRecorded(t *testing.T) {
	cfg := newTestConfig(t)
	if _, err := InitDatabase(cfg); err != nil {
		t.Fatalf("InitDatabase() error = %v", err)
	}

	a, err := NewWadlibApp(context.Background(), cfg, "install", "scythe")
	if err != nil {
		t.Fatalf("NewWadlibApp() error = %v", err)
	}
	if _, err := a.Install(context.Background(), "scythe", nil); err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	names, err := a.LevelNames("scythe")
	if err != nil {
		t.Fatalf("LevelNames() error = %v", err)
	}
	if names["MAP01"] != "Entryway" {
		t.Errorf("LevelNames() = %v", names)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	b, err := NewWadlibApp(context.Background(), cfg, "history", "")
	if err != nil {
		t.Fatalf("NewWadlibApp() error = %v", err)
	}
	defer b.Close()

	ops, err := b.History(10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(ops) != 1 {
		t.Fatalf("History() returned %d operations, want 1", len(ops))
	}
	if ops[0].Operation != "install" || ops[0].Parameters != "scythe" || ops[0].Status != "success" || ops[0].FinishedAt == nil {
		t.Errorf("operation = %+v", ops[0])
	}

	transfers, err := b.Transfers("scythe")
	if err != nil {
		t.Fatalf("Transfers() error = %v", err)
	}
	if len(transfers) != 1 || transfers[0].OperationID != ops[0].ID || transfers[0].Source != "mirror" {
		t.Errorf("Transfers() = %+v", transfers)
	}
}

func TestWadlibApp_FailedOperation(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Database = config.DatabaseConfig{Type: "memory"}

	a, err := NewWadlibApp(context.Background(), cfg, "remove", "scythe")
	if err != nil {
		t.Fatalf("NewWadlibApp() error = %v", err)
	}
	defer a.Close()

	if err := a.Remove("scythe"); err == nil {
		t.Fatal("Remove() expected error for an item that is not installed")
	}
	if a.op.Status != "error" {
		t.Errorf("operation status = %q, want error", a.op.Status)
	}
}

func TestWadlibApp_MissingCatalog(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Database = config.DatabaseConfig{Type: "memory"}
	cfg.Catalog.Path = filepath.Join(t.TempDir(), "absent.json")

	a, err := NewWadlibApp(context.Background(), cfg, "list", "")
	if err != nil {
		t.Fatalf("NewWadlibApp() error = %v", err)
	}
	defer a.Close()

	if got := len(a.Catalog()); got != 0 {
		t.Errorf("Catalog() has %d entries, want 0", got)
	}
}

func TestWadlibApp_ParseLog(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Database = config.DatabaseConfig{Type: "memory"}

	a, err := NewWadlibApp(context.Background(), cfg, "log parse", "")
	if err != nil {
		t.Fatalf("NewWadlibApp() error = %v", err)
	}
	defer a.Close()

	p := filepath.Join(t.TempDir(), "console.txt")
	transcript := "MAP01 - Entryway\n\nPicked up a stimpack.\nsomething else\n"
	if err := os.WriteFile(p, []byte(transcript), 0644); err != nil {
		t.Fatal(err)
	}

	events, err := a.ParseLog(p)
	if err != nil {
		t.Fatalf("ParseLog() error = %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("ParseLog() returned %d events, want 3", len(events))
	}
	if events[0].MapID != "MAP01" || events[1].Item == "" {
		t.Errorf("ParseLog() = %+v", events)
	}
}

func TestWadlibApp_PlayRejectsBadSkill(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Database = config.DatabaseConfig{Type: "memory"}

	a, err := NewWadlibApp(context.Background(), cfg, "play", "scythe")
	if err != nil {
		t.Fatalf("NewWadlibApp() error = %v", err)
	}
	defer a.Close()

	if _, err := a.Play(context.Background(), "scythe", "ultra", ""); err == nil {
		t.Error("Play() expected error for unknown skill")
	}
	if a.op.Persisted() {
		t.Error("operation persisted for a rejected command")
	}
}
