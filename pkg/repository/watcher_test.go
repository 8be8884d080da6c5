package repository

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func TestDefaultWatcherConfig(t *testing.T) {
	config := DefaultWatcherConfig("packs")

	if config.Path != "packs" {
		t.Errorf("config.Path = %q, want %q", config.Path, "packs")
	}
	if config.DebounceInterval != 250*time.Millisecond {
		t.Errorf("config.DebounceInterval = %v, want 250ms", config.DebounceInterval)
	}
	if len(config.Extensions) != 3 {
		t.Errorf("config.Extensions = %v, want .yaml/.yml/.json", config.Extensions)
	}
}

func TestNewWatcherNilConfig(t *testing.T) {
	if _, err := NewWatcher(nil, nil); err == nil {
		t.Fatal("NewWatcher(nil) succeeded, want error")
	}
}

func TestWatcherShouldProcess(t *testing.T) {
	w, err := NewWatcher(DefaultWatcherConfig(t.TempDir()), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = w.Stop() }()

	tests := []struct {
		name  string
		event fsnotify.Event
		want  bool
	}{
		{"yaml write", fsnotify.Event{Name: "packs/funding.yaml", Op: fsnotify.Write}, true},
		{"yml create", fsnotify.Event{Name: "packs/funding.yml", Op: fsnotify.Create}, true},
		{"json write", fsnotify.Event{Name: "packs/funding.json", Op: fsnotify.Write}, true},
		{"uppercase extension", fsnotify.Event{Name: "packs/FUNDING.YAML", Op: fsnotify.Write}, true},
		{"chmod ignored", fsnotify.Event{Name: "packs/funding.yaml", Op: fsnotify.Chmod}, false},
		{"hidden file ignored", fsnotify.Event{Name: "packs/.funding.yaml.swp", Op: fsnotify.Write}, false},
		{"unrelated extension ignored", fsnotify.Event{Name: "packs/notes.txt", Op: fsnotify.Write}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := w.shouldProcess(tt.event); got != tt.want {
				t.Errorf("shouldProcess(%v) = %v, want %v", tt.event, got, tt.want)
			}
		})
	}
}

func TestWatcherReloadsOnPackWrite(t *testing.T) {
	dir := t.TempDir()
	packFile := filepath.Join(dir, "doc-prep.yaml")
	if err := os.WriteFile(packFile, []byte(docPrepPack), 0o644); err != nil {
		t.Fatal(err)
	}

	config := DefaultWatcherConfig(dir)
	config.DebounceInterval = 50 * time.Millisecond

	w, err := NewWatcher(config, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = w.Stop() }()

	reloaded := make(chan struct{}, 10)
	onReload := func() error {
		select {
		case reloaded <- struct{}{}:
		default:
		}
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Watch(ctx, onReload) }()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(packFile, []byte(docPrepPack), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-reloaded:
	case <-time.After(2 * time.Second):
		t.Error("reload not called after pack write")
	}
}

func TestWatcherDebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	packFile := filepath.Join(dir, "doc-prep.yaml")
	if err := os.WriteFile(packFile, []byte(docPrepPack), 0o644); err != nil {
		t.Fatal(err)
	}

	config := DefaultWatcherConfig(dir)
	config.DebounceInterval = 150 * time.Millisecond

	w, err := NewWatcher(config, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = w.Stop() }()

	var reloads atomic.Int32
	onReload := func() error {
		reloads.Add(1)
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Watch(ctx, onReload) }()

	time.Sleep(100 * time.Millisecond)

	// An editor save storm: several writes inside one debounce window.
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(packFile, []byte(docPrepPack), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	time.Sleep(500 * time.Millisecond)

	if got := reloads.Load(); got != 1 {
		t.Errorf("reloads = %d, want 1 for a burst of writes", got)
	}
}

func TestWatcherStop(t *testing.T) {
	w, err := NewWatcher(DefaultWatcherConfig(t.TempDir()), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}

	watchDone := make(chan error, 1)
	go func() {
		watchDone <- w.Watch(context.Background(), func() error { return nil })
	}()

	time.Sleep(100 * time.Millisecond)

	if err := w.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	select {
	case err := <-watchDone:
		if err != nil {
			t.Errorf("Watch returned %v after Stop, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("Watch did not return after Stop")
	}

	// Stopping twice is harmless.
	if err := w.Stop(); err != nil {
		t.Errorf("second Stop: %v", err)
	}
}

func TestDebouncerCollapsesTriggers(t *testing.T) {
	d := newDebouncer(50 * time.Millisecond)
	defer d.stop()

	var calls atomic.Int32
	for i := 0; i < 10; i++ {
		d.trigger(func() { calls.Add(1) })
	}

	time.Sleep(200 * time.Millisecond)

	if got := calls.Load(); got != 1 {
		t.Errorf("callback ran %d times, want 1", got)
	}
}

func TestDebouncerStopPreventsPendingCallback(t *testing.T) {
	d := newDebouncer(50 * time.Millisecond)

	var calls atomic.Int32
	d.trigger(func() { calls.Add(1) })
	d.stop()

	time.Sleep(200 * time.Millisecond)

	if got := calls.Load(); got != 0 {
		t.Errorf("callback ran %d times after stop, want 0", got)
	}
}
