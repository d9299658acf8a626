package wadlib_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"wadlib/internal/catalog"
	"wadlib/internal/download"
	"wadlib/internal/fs"
	"wadlib/internal/library"
	"wadlib/internal/model"
	"wadlib/internal/source"
	"wadlib/internal/testutil"
	"wadlib/internal/testutil/testdb"
	"wadlib/internal/wadlib"
)

var (
	baseData = testutil.BuildWAD("PWAD",
		testutil.Lump{Name: "MAP01", Data: []byte("level")},
	)
	scytheData = testutil.BuildWAD("PWAD",
		testutil.Lump{Name: "MAPINFO", Data: []byte("map MAP01 \"Dead Simple\"\nmap MAP02 \"Forgotten Lair\"\n")},
		testutil.Lump{Name: "MAP01", Data: []byte("level")},
	)
)

type fixture struct {
	svc     *wadlib.Service
	db      wadlib.Database
	lib     *library.Library
	mem     *source.MemorySource
	saveDir string
	clock   *testutil.StubClock
}

type fixtureOptions struct {
	launcher wadlib.Launcher
	engine   wadlib.EngineSettings
}

func newFixture(t *testing.T, opts fixtureOptions) *fixture {
	t.Helper()
	dir := t.TempDir()

	lib, err := library.New(filepath.Join(dir, "wads"), filepath.Join(dir, "data"))
	if err != nil {
		t.Fatal(err)
	}
	cat := catalog.New(
		catalog.Entry{Slug: "base", Title: "Base Resources", Filename: "base.wad"},
		catalog.Entry{Slug: "scythe", Title: "Scythe", Filename: "scythe.wad", Dependencies: []string{"base"}},
		catalog.Entry{Slug: "gone", Title: "Gone", Filename: "gone.wad"},
	)
	mem := source.NewMemorySource("mem")
	mem.Put("base.wad", baseData)
	mem.Put("scythe.wad", scytheData)

	clock := testutil.FixedClock()
	logger := wadlib.NewNopLogger()
	db := testdb.NewTestDatabase(t, clock)
	mgr := download.NewManager(cat, mem, lib, clock, logger, time.Millisecond)

	saveDir := filepath.Join(dir, "saves")
	if err := os.MkdirAll(saveDir, 0755); err != nil {
		t.Fatal(err)
	}
	saves := fs.NewSaveFinder([]string{saveDir}, []string{"*.tmp"})

	svc := wadlib.NewService(db, cat, mgr, lib, saves, opts.launcher, opts.engine, logger, clock, testutil.NewStubIDGenerator())
	return &fixture{svc: svc, db: db, lib: lib, mem: mem, saveDir: saveDir, clock: clock}
}

// saveData builds a save container. An empty mapWAD leaves the field out,
// as older engine versions do.
func saveData(t *testing.T, mapWAD string, kills, tics int) []byte {
	t.Helper()
	globals := `{"servercvars": {"skill": 3}, "statistics": {"levels": [
		{"levelname": "MAP01", "killcount": ` + strconv.Itoa(kills) + `, "totalkills": 50, "leveltime": ` + strconv.Itoa(tics) + `}]}}`
	info := `{"Comment": "MAP01 - Entryway", "Game WAD": "doom2.wad"`
	if mapWAD != "" {
		info += `, "Map WAD": "` + mapWAD + `"`
	}
	info += `}`
	return testutil.BuildZip(t,
		testutil.ZipEntry{Name: "info.json", Data: []byte(info)},
		testutil.ZipEntry{Name: "globals.json", Data: []byte(globals)},
	)
}

func TestService_Install(t *testing.T) {
	t.Run("installs dependencies and records the transfer", func(t *testing.T) {
		f := newFixture(t, fixtureOptions{})

		path, err := f.svc.Install(context.Background(), "scythe", nil)
		if err != nil {
			t.Fatalf("Install() error = %v", err)
		}
		if filepath.Base(path) != "scythe.wad" {
			t.Errorf("Install() path = %s, want scythe.wad", path)
		}
		if _, ok, _ := f.lib.Record("base"); !ok {
			t.Error("dependency base was not installed")
		}

		transfers, err := f.svc.Transfers("scythe")
		if err != nil {
			t.Fatalf("Transfers() error = %v", err)
		}
		if len(transfers) != 1 {
			t.Fatalf("got %d transfers, want 1", len(transfers))
		}
		got := transfers[0]
		if got.Status != "ok" || got.Bytes != int64(len(scytheData)) || got.Source != "mem" {
			t.Errorf("transfer = %+v", got)
		}
	})

	t.Run("failed install is recorded", func(t *testing.T) {
		f := newFixture(t, fixtureOptions{})

		if _, err := f.svc.Install(context.Background(), "gone", nil); err == nil {
			t.Fatal("Install() expected error for missing archive")
		}

		transfers, err := f.svc.Transfers("gone")
		if err != nil {
			t.Fatalf("Transfers() error = %v", err)
		}
		if len(transfers) != 1 || transfers[0].Status != "failed" || transfers[0].Error == "" {
			t.Errorf("transfers = %+v, want one failed attempt", transfers)
		}
	})

	t.Run("transfers belong to the current operation", func(t *testing.T) {
		f := newFixture(t, fixtureOptions{})

		op, err := f.db.CreateOperation("install", "base")
		if err != nil {
			t.Fatalf("CreateOperation() error = %v", err)
		}
		f.svc.SetOperation(op.ID)

		if _, err := f.svc.Install(context.Background(), "base", nil); err != nil {
			t.Fatalf("Install() error = %v", err)
		}
		transfers, _ := f.svc.Transfers("base")
		if len(transfers) != 1 || transfers[0].OperationID != op.ID {
			t.Errorf("transfers = %+v, want operation %d", transfers, op.ID)
		}
	})
}

func TestService_List(t *testing.T) {
	f := newFixture(t, fixtureOptions{})

	if _, err := f.svc.Install(context.Background(), "scythe", nil); err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	if err := os.Remove(f.lib.PathFor("base.wad")); err != nil {
		t.Fatal(err)
	}

	items, err := f.svc.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("List() returned %d items, want 2", len(items))
	}
	if items[0].Slug != "base" || !items[0].Missing {
		t.Errorf("items[0] = %+v, want missing base", items[0])
	}
	if items[1].Slug != "scythe" || items[1].Title != "Scythe" || items[1].Missing {
		t.Errorf("items[1] = %+v, want present scythe", items[1])
	}
}

func TestService_LevelNames(t *testing.T) {
	t.Run("extracts then serves from cache", func(t *testing.T) {
		f := newFixture(t, fixtureOptions{})
		if _, err := f.svc.Install(context.Background(), "scythe", nil); err != nil {
			t.Fatalf("Install() error = %v", err)
		}

		names, err := f.svc.LevelNames("scythe")
		if err != nil {
			t.Fatalf("LevelNames() error = %v", err)
		}
		if names["MAP01"] != "Dead Simple" || names["MAP02"] != "Forgotten Lair" {
			t.Errorf("LevelNames() = %v", names)
		}

		// The archive is no longer consulted once the table is cached.
		if err := os.WriteFile(f.lib.PathFor("scythe.wad"), baseData, 0644); err != nil {
			t.Fatal(err)
		}
		names, err = f.svc.LevelNames("scythe")
		if err != nil {
			t.Fatalf("LevelNames() second call error = %v", err)
		}
		if names["MAP01"] != "Dead Simple" {
			t.Errorf("cached LevelNames() = %v", names)
		}
	})

	t.Run("not installed", func(t *testing.T) {
		f := newFixture(t, fixtureOptions{})

		_, err := f.svc.LevelNames("scythe")
		if !errors.Is(err, model.ErrNotFound) {
			t.Errorf("LevelNames() error = %v, want ErrNotFound", err)
		}
	})
}

func TestService_Remove(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	if _, err := f.svc.Install(context.Background(), "scythe", nil); err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	if _, err := f.svc.LevelNames("scythe"); err != nil {
		t.Fatalf("LevelNames() error = %v", err)
	}

	if err := f.svc.Remove("scythe"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	if _, err := f.lib.LevelNames("scythe"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("level-name cache after Remove() error = %v, want ErrNotFound", err)
	}
	if _, ok, _ := f.lib.Record("scythe"); ok {
		t.Error("manifest record survived Remove()")
	}
	if err := f.svc.Remove("scythe"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("second Remove() error = %v, want ErrNotFound", err)
	}
}

func TestService_CaptureSaves(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	if _, err := f.svc.Install(context.Background(), "scythe", nil); err != nil {
		t.Fatalf("Install() error = %v", err)
	}

	write := func(name string, data []byte) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(f.saveDir, name), data, 0644); err != nil {
			t.Fatal(err)
		}
	}
	write("save1.zds", saveData(t, "scythe.wad", 30, 3500))
	write("save2.zds", saveData(t, "SCYTHE.WAD", 40, 4000))
	write("save3.tmp", saveData(t, "scythe.wad", 50, 100))

	captured, err := f.svc.CaptureSaves("scythe")
	if err != nil {
		t.Fatalf("CaptureSaves() error = %v", err)
	}
	if len(captured) != 2 {
		t.Fatalf("CaptureSaves() captured %d, want 2", len(captured))
	}
	if got := captured[0].Levels[0].Name; got != "Entryway" {
		t.Errorf("level name = %q, want name from the save itself", got)
	}

	again, err := f.svc.CaptureSaves("scythe")
	if err != nil {
		t.Fatalf("second CaptureSaves() error = %v", err)
	}
	if len(again) != 0 {
		t.Errorf("second CaptureSaves() captured %d, want 0", len(again))
	}

	best, err := f.svc.BestRuns("scythe")
	if err != nil {
		t.Fatalf("BestRuns() error = %v", err)
	}
	if len(best) != 1 {
		t.Fatalf("BestRuns() returned %d, want 1", len(best))
	}
	if best[0].Stats.Kills != 40 || best[0].SourceFile != "save2.zds" || best[0].Skill != model.SkillHard {
		t.Errorf("BestRuns()[0] = %+v", best[0])
	}
}

func TestService_CaptureSaves_AttributesByArchive(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	if _, err := f.svc.Install(context.Background(), "scythe", nil); err != nil {
		t.Fatalf("Install() error = %v", err)
	}

	write := func(dir, name string, data []byte) {
		t.Helper()
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
			t.Fatal(err)
		}
	}
	write(f.saveDir, "base-save.zds", saveData(t, "base.wad", 10, 700))
	write(f.saveDir, "legacy.zds", saveData(t, "", 20, 800))
	write(f.lib.SaveDir("scythe"), "own.zds", saveData(t, "", 30, 900))

	tests := []struct {
		slug string
		want []string
	}{
		{slug: "scythe", want: []string{"own.zds"}},
		{slug: "base", want: []string{"base-save.zds"}},
	}
	for _, tt := range tests {
		captured, err := f.svc.CaptureSaves(tt.slug)
		if err != nil {
			t.Fatalf("CaptureSaves(%s) error = %v", tt.slug, err)
		}
		var got []string
		for _, sess := range captured {
			if sess.ContentSlug != tt.slug {
				t.Errorf("session %s stored under %q, want %q", sess.SourceFile, sess.ContentSlug, tt.slug)
			}
			got = append(got, sess.SourceFile)
		}
		if strings.Join(got, ",") != strings.Join(tt.want, ",") {
			t.Errorf("CaptureSaves(%s) captured %v, want %v", tt.slug, got, tt.want)
		}
	}

	best, err := f.svc.BestRuns("scythe")
	if err != nil {
		t.Fatalf("BestRuns() error = %v", err)
	}
	if len(best) != 1 || best[0].Stats.Kills != 30 {
		t.Errorf("BestRuns(scythe) = %+v, want only the run from its own save", best)
	}
}

func TestService_History(t *testing.T) {
	f := newFixture(t, fixtureOptions{})

	for _, name := range []string{"install", "stats capture", "play"} {
		if _, err := f.db.CreateOperation(name, ""); err != nil {
			t.Fatalf("CreateOperation() error = %v", err)
		}
	}

	ops, err := f.svc.History(2)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(ops) != 2 {
		t.Fatalf("got %d ops, want 2", len(ops))
	}
	if ops[0].ID <= ops[1].ID {
		t.Errorf("expected newest first: got IDs %d, %d", ops[0].ID, ops[1].ID)
	}
}
