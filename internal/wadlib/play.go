package wadlib

import (
	"context"
	"errors"
	"fmt"
	"os"

	"wadlib/internal/console"
	"wadlib/internal/engine"
	"wadlib/internal/model"
)

// PlayOptions selects how a session starts. An empty Warp starts at the
// first level.
type PlayOptions struct {
	Skill model.Skill
	Warp  string
}

// PlayResult summarizes a finished play session.
type PlayResult struct {
	Log      model.GameplayLog
	LogPath  string
	Captured []model.PlaySession
	// ExitErr is the engine's exit status. A non-zero exit still yields a log.
	ExitErr error
}

// Play installs slug if needed, runs the engine until it exits, stores the
// classified console transcript, and captures any new saves.
func (s *Service) Play(ctx context.Context, slug string, opts PlayOptions) (*PlayResult, error) {
	if s.launcher == nil {
		return nil, fmt.Errorf("no engine configured")
	}
	entry, ok := s.catalog.Lookup(slug)
	if !ok {
		return nil, fmt.Errorf("unknown content %q: %w", slug, model.ErrNotFound)
	}

	if _, err := s.Install(ctx, slug, nil); err != nil {
		return nil, fmt.Errorf("installing %s: %w", slug, err)
	}
	files, err := s.loadOrder(slug)
	if err != nil {
		return nil, err
	}

	iwad := s.engine.IWAD
	if iwad == "" {
		iwad = entry.IWAD
	}
	saveDir := s.library.SaveDir(slug)
	if err := os.MkdirAll(saveDir, 0755); err != nil {
		return nil, fmt.Errorf("creating save directory: %w", err)
	}
	args := engine.Args(iwad, files, saveDir, opts.Skill, opts.Warp, s.engine.ExtraArgs...)

	session, err := s.launcher.Launch(ctx, s.engine.Path, args)
	if err != nil {
		return nil, err
	}
	s.logger.Info("engine started", "slug", slug, "skill", opts.Skill.String(), "files", len(files))

	exitErr := session.Wait(ctx)
	if errors.Is(exitErr, context.Canceled) || errors.Is(exitErr, context.DeadlineExceeded) {
		session.Stop()
		<-session.Done()
		exitErr = session.Err()
	}

	started, ended := session.Started(), session.Ended()
	gameplay := model.GameplayLog{
		SchemaVersion: model.SchemaVersion,
		SessionID:     s.idgen.New(),
		ContentSlug:   slug,
		Skill:         opts.Skill,
		StartedAt:     started.UTC(),
		EndedAt:       ended.UTC(),
		DurationMs:    ended.Sub(started).Milliseconds(),
		Events:        console.Classify(session.Lines()),
		RawLog:        session.RawLog(),
	}
	logPath, err := s.library.SaveGameplayLog(gameplay)
	if err != nil {
		return nil, fmt.Errorf("saving gameplay log: %w", err)
	}
	s.logger.Info("engine exited", "slug", slug, "events", len(gameplay.Events), "duration_ms", gameplay.DurationMs)

	result := &PlayResult{Log: gameplay, LogPath: logPath, ExitErr: exitErr}
	if s.saves != nil {
		captured, err := s.CaptureSaves(slug)
		if err != nil {
			return result, err
		}
		result.Captured = captured
	}
	return result, nil
}

// loadOrder returns the archive paths for slug with its installed
// dependencies first, each archive once.
func (s *Service) loadOrder(slug string) ([]string, error) {
	var files []string
	visited := map[string]bool{}

	var walk func(string) error
	walk = func(slug string) error {
		if visited[slug] {
			return nil
		}
		visited[slug] = true
		if entry, ok := s.catalog.Lookup(slug); ok {
			for _, dep := range entry.Dependencies {
				if err := walk(dep); err != nil {
					return err
				}
			}
		}
		rec, ok, err := s.library.Record(slug)
		if err != nil {
			return fmt.Errorf("reading manifest: %w", err)
		}
		if ok {
			files = append(files, s.library.PathFor(rec.Filename))
		}
		return nil
	}

	if err := walk(slug); err != nil {
		return nil, err
	}
	return files, nil
}
