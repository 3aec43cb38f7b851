package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatchReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "cerebot.yaml"), "version: 1\ndiscord: {token: abc, command_limit: 5}\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- watch(ctx, path, nil, 10*time.Millisecond, func(cfg *Config) { changes <- cfg })
	}()

	// Retry the write until the watcher is registered.
	deadline := time.After(5 * time.Second)
	var got *Config
	for got == nil {
		if err := os.WriteFile(path, []byte("version: 1\ndiscord: {token: abc, command_limit: 7}\n"), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
		select {
		case got = <-changes:
		case <-time.After(100 * time.Millisecond):
		case <-deadline:
			t.Fatal("no reload observed")
		}
	}
	if got.Discord.CommandLimit != 7 {
		t.Errorf("command_limit = %d, want 7", got.Discord.CommandLimit)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("watch() = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestWatchSkipsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "cerebot.yaml"), "version: 1\ndiscord: {token: abc}\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	go func() {
		_ = watch(ctx, path, nil, 10*time.Millisecond, func(cfg *Config) { changes <- cfg })
	}()
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(path, []byte("version: 1\ndiscord: {command_limit: -1}\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	// Unrelated files in the directory are ignored.
	if err := os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	select {
	case cfg := <-changes:
		t.Fatalf("invalid config was applied: %+v", cfg.Discord)
	case <-time.After(300 * time.Millisecond):
	}
}
