package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"wadlib/internal/catalog"
	"wadlib/internal/config"
	"wadlib/internal/console"
	"wadlib/internal/database"
	"wadlib/internal/database/migrations"
	"wadlib/internal/download"
	"wadlib/internal/engine"
	wadfs "wadlib/internal/fs"
	"wadlib/internal/library"
	"wadlib/internal/model"
	"wadlib/internal/source"
	"wadlib/internal/stats"
	"wadlib/internal/wadlib"
)

// WadlibApp is the application layer between the CLI and the Service.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw CLI values, and manages the DB lifecycle on Close.
type WadlibApp struct {
	cfg     *config.Config
	db      wadlib.Database
	library *library.Library
	service *wadlib.Service
	op      *Operation
	logFile *os.File
}

// NewWadlibApp creates a fully wired WadlibApp from the given config.
// operation identifies the CLI command being run (e.g. "install", "play").
// The caller must call Close when done.
func NewWadlibApp(ctx context.Context, cfg *config.Config, operation, parameters string) (*WadlibApp, error) {
	opID := time.Now().UTC().Format("20060102T150405Z")
	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger, logFile, err := newLogger(cfg.LogDir, opID, level)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	log := &slogAdapter{l: logger}

	fail := func(err error) (*WadlibApp, error) {
		logFile.Close()
		return nil, err
	}

	db, err := database.NewDatabaseFromConfig(cfg.Database, wadlib.RealClock{})
	if err != nil {
		return fail(fmt.Errorf("creating database: %w", err))
	}
	if cfg.Database.Type == "memory" {
		err = db.Migrate()
	} else {
		err = db.CheckMigrations()
	}
	if errors.Is(err, migrations.ErrNeedsMigration) {
		db.Close()
		return fail(fmt.Errorf("%w (run `wadlib config migrate`)", err))
	}
	if err != nil {
		db.Close()
		return fail(fmt.Errorf("database schema out of date: %w", err))
	}

	cat, err := loadCatalog(cfg.Catalog.Path, log)
	if err != nil {
		db.Close()
		return fail(err)
	}

	src, err := source.NewSourceFromConfig(ctx, cfg.Source)
	if err != nil {
		db.Close()
		return fail(fmt.Errorf("creating source: %w", err))
	}

	lib, err := library.New(cfg.WadDir, cfg.DataDir)
	if err != nil {
		db.Close()
		return fail(fmt.Errorf("opening library: %w", err))
	}
	lib.SetLogger(log)

	interval := time.Duration(cfg.Download.ProgressIntervalMs) * time.Millisecond
	mgr := download.NewManager(cat, src, lib, wadlib.RealClock{}, log, interval)
	saves := wadfs.NewSaveFinder(cfg.Saves.Dirs, cfg.Saves.Ignore)
	eng := wadlib.EngineSettings{
		Path:      cfg.Engine.Path,
		IWAD:      cfg.Engine.IWAD,
		ExtraArgs: cfg.Engine.ExtraArgs,
	}

	svc := wadlib.NewService(db, cat, mgr, lib, saves, engine.NewLauncher(), eng, log, wadlib.RealClock{}, wadlib.SessionIDs{})
	logger.Debug("app ready", "operation", operation, "source", src.Name(), "catalog", cat.Len())

	return &WadlibApp{
		cfg:     cfg,
		db:      db,
		library: lib,
		service: svc,
		op:      NewOperation(operation, parameters),
		logFile: logFile,
	}, nil
}

// loadCatalog reads the catalog file. A missing file yields an empty catalog.
func loadCatalog(path string, logger catalog.Logger) (*catalog.Catalog, error) {
	cat, err := catalog.LoadFile(path, logger)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn("catalog file not found, starting empty", "path", path)
		return catalog.New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}
	return cat, nil
}

// persistOperation saves the operation to the database, giving it an auto-increment ID.
// This should only be called for mutating commands.
func (a *WadlibApp) persistOperation() error {
	if a.op.Persisted() {
		return nil // already persisted
	}
	dbOp, err := a.db.CreateOperation(a.op.Operation, a.op.Parameters)
	if err != nil {
		return fmt.Errorf("persisting operation: %w", err)
	}
	a.op.ID = dbOp.ID
	a.service.SetOperation(dbOp.ID)
	return nil
}

// MaxConcurrent is how many installs the CLI may run at once.
func (a *WadlibApp) MaxConcurrent() int {
	if a.cfg.Download.MaxConcurrent < 1 {
		return 1
	}
	return a.cfg.Download.MaxConcurrent
}

// Install installs slug and its dependencies. Safe for concurrent use once
// PrepareInstall has been called.
func (a *WadlibApp) Install(ctx context.Context, slug string, progress download.ProgressFunc) (string, error) {
	if err := a.persistOperation(); err != nil {
		return "", err
	}
	path, err := a.service.Install(ctx, slug, progress)
	return path, a.op.Fail(err)
}

// PrepareInstall persists the operation before concurrent installs start.
func (a *WadlibApp) PrepareInstall() error {
	return a.persistOperation()
}

// Remove deletes an installed item.
func (a *WadlibApp) Remove(slug string) error {
	if err := a.persistOperation(); err != nil {
		return err
	}
	return a.op.Fail(a.service.Remove(slug))
}

// List returns the installed items.
func (a *WadlibApp) List() ([]wadlib.InstalledItem, error) {
	return a.service.List()
}

// Catalog returns the installable content.
func (a *WadlibApp) Catalog() []catalog.Entry {
	return a.service.Catalog()
}

// LevelNames returns slug's level-name table.
func (a *WadlibApp) LevelNames(slug string) (map[string]string, error) {
	return a.service.LevelNames(slug)
}

// CaptureSaves stores new save-file sessions for slug.
func (a *WadlibApp) CaptureSaves(slug string) ([]model.PlaySession, error) {
	if err := a.persistOperation(); err != nil {
		return nil, err
	}
	captured, err := a.service.CaptureSaves(slug)
	return captured, a.op.Fail(err)
}

// BestRuns returns slug's best run per level and skill.
func (a *WadlibApp) BestRuns(slug string) ([]stats.BestRun, error) {
	return a.service.BestRuns(slug)
}

// Play launches the engine on slug. rawSkill is a skill name or 1-based number.
func (a *WadlibApp) Play(ctx context.Context, slug, rawSkill, warp string) (*wadlib.PlayResult, error) {
	skill, err := model.ParseSkill(rawSkill)
	if err != nil {
		return nil, err
	}
	if err := a.persistOperation(); err != nil {
		return nil, err
	}
	res, err := a.service.Play(ctx, slug, wadlib.PlayOptions{Skill: skill, Warp: strings.ToUpper(warp)})
	if err == nil && res.ExitErr != nil {
		a.op.Fail(res.ExitErr)
	}
	return res, a.op.Fail(err)
}

// GameplayLogs returns the stored console timelines for slug.
func (a *WadlibApp) GameplayLogs(slug string) ([]model.GameplayLog, error) {
	return a.library.GameplayLogs(slug)
}

// ParseLog classifies a console transcript file line by line. Lines carry
// no timing, so every event is stamped 0.
func (a *WadlibApp) ParseLog(path string) ([]model.GameplayEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening console log: %w", err)
	}
	defer f.Close()

	var lines []console.Line
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	for sc.Scan() {
		lines = append(lines, console.Line{Text: sc.Text()})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading console log: %w", err)
	}
	return console.Classify(lines), nil
}

// History returns the most recent operations.
func (a *WadlibApp) History(limit int) ([]*model.Operation, error) {
	return a.service.History(limit)
}

// Transfers returns the install attempts for slug.
func (a *WadlibApp) Transfers(slug string) ([]*model.TransferRecord, error) {
	return a.service.Transfers(slug)
}

// Close finalizes the operation and closes all resources.
func (a *WadlibApp) Close() error {
	var firstErr error

	if a.op.Persisted() {
		if err := a.db.FinishOperation(a.op.ID, a.op.Status); err != nil {
			firstErr = fmt.Errorf("finishing operation: %w", err)
		}
	}

	if err := a.db.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}

// InitDatabase creates the history database for cfg and applies migrations.
func InitDatabase(cfg *config.Config) (string, error) {
	db, err := database.NewDatabaseFromConfig(cfg.Database, wadlib.RealClock{})
	if err != nil {
		return "", fmt.Errorf("creating database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return "", err
	}
	return db.Path(), nil
}
