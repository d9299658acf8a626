package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"wadlib/internal/model"
)

func fakeEngine(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	p := filepath.Join(t.TempDir(), "fake-gzdoom")
	if err := os.WriteFile(p, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestArgs(t *testing.T) {
	tests := []struct {
		name  string
		iwad  string
		files []string
		saves string
		skill model.Skill
		warp  string
		extra []string
		want  []string
	}{
		{
			name:  "full",
			iwad:  "/games/DOOM2.WAD",
			files: []string{"/wads/sunlust.wad", "/wads/music.wad"},
			saves: "/data/saves/sunlust",
			skill: model.SkillHard,
			warp:  "MAP05",
			extra: []string{"-nomonsters"},
			want: []string{"-stdout", "-iwad", "/games/DOOM2.WAD", "-file", "/wads/sunlust.wad", "/wads/music.wad",
				"-savedir", "/data/saves/sunlust", "-skill", "4", "+map", "MAP05", "-nomonsters"},
		},
		{
			name:  "minimal",
			skill: model.Skill(9),
			want:  []string{"-stdout"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Args(tt.iwad, tt.files, tt.saves, tt.skill, tt.warp, tt.extra...)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Args() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLaunch_RejectsOtherExecutables(t *testing.T) {
	_, err := Launch(context.Background(), "/bin/sh", []string{"-c", "true"})
	if !errors.Is(err, ErrNotEngine) {
		t.Errorf("Launch() error = %v, want ErrNotEngine", err)
	}
}

func TestLaunch_CapturesOutput(t *testing.T) {
	bin := fakeEngine(t, "echo 'MAP01 - Entryway'\necho 'Player was killed by an imp.' 1>&2\nprintf 'no newline'\n")

	s, err := Launch(context.Background(), bin, nil)
	if err != nil {
		t.Fatalf("Launch() error = %v", err)
	}

	select {
	case <-s.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("engine did not exit")
	}
	if err := s.Err(); err != nil {
		t.Errorf("Err() = %v", err)
	}

	var texts []string
	for _, l := range s.Lines() {
		texts = append(texts, l.Text)
		if l.TimeMs < 0 {
			t.Errorf("negative timestamp %d", l.TimeMs)
		}
	}
	sort.Strings(texts)
	want := []string{"MAP01 - Entryway", "Player was killed by an imp.", "no newline"}
	if !reflect.DeepEqual(texts, want) {
		t.Errorf("lines = %q, want %q", texts, want)
	}
	if s.Ended().Before(s.Started()) {
		t.Error("Ended() before Started()")
	}
}

func TestSession_CaptureKeepsTimeOrder(t *testing.T) {
	s := &Session{started: time.Now(), done: make(chan struct{})}
	out := strings.Repeat("stdout line\n", 2000)
	errOut := strings.Repeat("stderr line\n", 2000)

	var wg sync.WaitGroup
	for _, text := range []string{out, errOut} {
		wg.Add(1)
		go func(text string) {
			defer wg.Done()
			s.capture(strings.NewReader(text))
		}(text)
	}
	wg.Wait()

	lines := s.Lines()
	if len(lines) != 4000 {
		t.Fatalf("captured %d lines, want 4000", len(lines))
	}
	for i := 1; i < len(lines); i++ {
		if lines[i].TimeMs < lines[i-1].TimeMs {
			t.Fatalf("line %d at %dms follows %dms", i, lines[i].TimeMs, lines[i-1].TimeMs)
		}
	}
}

func TestLauncher_SingleSession(t *testing.T) {
	bin := fakeEngine(t, "exec sleep 5\n")
	l := NewLauncher()

	s, err := l.Launch(context.Background(), bin, nil)
	if err != nil {
		t.Fatalf("Launch() error = %v", err)
	}
	defer s.Stop()

	if _, err := l.Launch(context.Background(), bin, nil); !errors.Is(err, ErrRunning) {
		t.Errorf("second Launch() error = %v, want ErrRunning", err)
	}

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Wait(ctx); err == nil {
		t.Error("Wait() after kill returned nil error")
	}

	s2, err := l.Launch(context.Background(), fakeEngine(t, "exit 0\n"), nil)
	if err != nil {
		t.Fatalf("Launch() after exit error = %v", err)
	}
	if err := s2.Wait(ctx); err != nil {
		t.Errorf("Wait() error = %v", err)
	}
}
