// Package engine launches the game engine and records its console output.
package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"wadlib/internal/console"
	"wadlib/internal/model"
)

var (
	// ErrNotEngine is returned for executables that are not a supported engine.
	ErrNotEngine = errors.New("engine path must contain 'gzdoom'")
	// ErrRunning is returned when a session is already active.
	ErrRunning = errors.New("engine is already running")
)

// maxLineSize bounds a single console line.
const maxLineSize = 1 << 20

// Args builds an engine command line. skill is passed 1-based as the engine
// expects; an empty warp starts at the beginning. A non-empty saveDir
// redirects the engine's saves there.
func Args(iwad string, files []string, saveDir string, skill model.Skill, warp string, extra ...string) []string {
	args := []string{"-stdout"}
	if iwad != "" {
		args = append(args, "-iwad", iwad)
	}
	if len(files) > 0 {
		args = append(args, "-file")
		args = append(args, files...)
	}
	if saveDir != "" {
		args = append(args, "-savedir", saveDir)
	}
	if skill.Valid() {
		args = append(args, "-skill", strconv.Itoa(int(skill)+1))
	}
	if warp != "" {
		args = append(args, "+map", warp)
	}
	return append(args, extra...)
}

// Session is one running engine process.
type Session struct {
	cmd     *exec.Cmd
	started time.Time

	mu    sync.Mutex
	lines []console.Line
	ended time.Time
	err   error

	done chan struct{}
}

// Launcher allows one engine session at a time.
type Launcher struct {
	mu      sync.Mutex
	current *Session
}

// NewLauncher creates a Launcher with no active session.
func NewLauncher() *Launcher {
	return &Launcher{}
}

// Launch starts path with args. Both stdout and stderr are captured line by
// line, stamped with the milliseconds since start.
func (l *Launcher) Launch(ctx context.Context, path string, args []string) (*Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.current != nil && !l.current.Exited() {
		return nil, ErrRunning
	}
	s, err := Launch(ctx, path, args)
	if err != nil {
		return nil, err
	}
	l.current = s
	return s, nil
}

// Launch starts a standalone session. Prefer Launcher.Launch, which also
// enforces a single active engine.
func Launch(ctx context.Context, path string, args []string) (*Session, error) {
	if !strings.Contains(strings.ToLower(path), "gzdoom") {
		return nil, fmt.Errorf("%w: %s", ErrNotEngine, path)
	}

	cmd := exec.CommandContext(ctx, path, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stderr pipe: %w", err)
	}

	s := &Session{cmd: cmd, done: make(chan struct{})}
	s.started = time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("launching %s: %w", path, err)
	}

	var wg sync.WaitGroup
	for _, r := range []io.Reader{stdout, stderr} {
		wg.Add(1)
		go func(r io.Reader) {
			defer wg.Done()
			s.capture(r)
		}(r)
	}

	go func() {
		wg.Wait()
		err := cmd.Wait()
		s.mu.Lock()
		s.err = err
		s.ended = time.Now()
		s.mu.Unlock()
		close(s.done)
	}()

	return s, nil
}

func (s *Session) capture(r io.Reader) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)
	for sc.Scan() {
		text := strings.TrimRight(sc.Text(), "\r")
		// Stamped under the lock so lines from both pipes stay in time order.
		s.mu.Lock()
		s.lines = append(s.lines, console.Line{TimeMs: time.Since(s.started).Milliseconds(), Text: text})
		s.mu.Unlock()
	}
	// Drain whatever the scanner refused so the process never blocks on a full pipe.
	io.Copy(io.Discard, r)
}

// Done is closed once the process has exited and its output is fully read.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Exited reports whether Done is closed.
func (s *Session) Exited() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the process exits or ctx ends.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return s.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err is the process exit error, valid after Done.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Lines returns a copy of the lines captured so far, in arrival order.
func (s *Session) Lines() []console.Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]console.Line(nil), s.lines...)
}

// RawLog joins the captured lines with newlines.
func (s *Session) RawLog() string {
	var b strings.Builder
	for _, l := range s.Lines() {
		b.WriteString(l.Text)
		b.WriteByte('\n')
	}
	return b.String()
}

// Started is when the process was launched.
func (s *Session) Started() time.Time { return s.started }

// Ended is when the process exited, or the zero time while it runs.
func (s *Session) Ended() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

// Stop kills the process.
func (s *Session) Stop() error {
	if s.Exited() {
		return nil
	}
	if err := s.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("stopping engine: %w", err)
	}
	return nil
}
