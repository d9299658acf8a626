package wadlib

import (
	"context"

	"wadlib/internal/catalog"
	"wadlib/internal/download"
	"wadlib/internal/engine"
	"wadlib/internal/library"
	"wadlib/internal/mapinfo"
)

// Launcher starts engine sessions. *engine.Launcher satisfies it.
type Launcher interface {
	Launch(ctx context.Context, path string, args []string) (*engine.Session, error)
}

// EngineSettings locates the engine binary and base game data.
type EngineSettings struct {
	Path      string
	IWAD      string
	ExtraArgs []string
}

// Service is the orchestration layer that coordinates the library, the
// download manager, the parsers and the engine for the CLI.
type Service struct {
	database  Database
	catalog   *catalog.Catalog
	downloads *download.Manager
	library   *library.Library
	saves     SaveFinder
	launcher  Launcher
	engine    EngineSettings
	extractor *mapinfo.Extractor
	logger    Logger
	clock     Clock
	idgen     IDGenerator

	operationID int64
}

// NewService creates a new Service with the provided dependencies.
// saves and launcher may be nil when the caller never plays or captures.
func NewService(database Database, cat *catalog.Catalog, downloads *download.Manager, lib *library.Library, saves SaveFinder, launcher Launcher, eng EngineSettings, logger Logger, clock Clock, idgen IDGenerator) *Service {
	return &Service{
		database:  database,
		catalog:   cat,
		downloads: downloads,
		library:   lib,
		saves:     saves,
		launcher:  launcher,
		engine:    eng,
		extractor: mapinfo.NewExtractor(logger),
		logger:    logger,
		clock:     clock,
		idgen:     idgen,
	}
}

// SetOperation ties subsequently recorded transfers to a persisted operation.
func (s *Service) SetOperation(id int64) {
	s.operationID = id
}

// Catalog returns the installable content.
func (s *Service) Catalog() []catalog.Entry {
	return s.catalog.Entries()
}
