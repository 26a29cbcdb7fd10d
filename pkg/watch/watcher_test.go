package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// watchList returns the directories currently registered.
func watchList(w *Watcher) map[string]bool {
	set := make(map[string]bool)
	for _, p := range w.watcher.WatchList() {
		set[p] = true
	}
	return set
}

// TestWatchRegistersTree verifies the initial walk covers subdirectories
// and skips VCS internals.
func TestWatchRegistersTree(t *testing.T) {
	root := t.TempDir()
	for _, dir := range []string{"src", filepath.Join("src", "api"), ".git", filepath.Join(".git", "objects")} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0755); err != nil {
			t.Fatalf("Failed to create dir: %v", err)
		}
	}

	w, err := NewWatcher(100 * time.Millisecond)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer w.Close()

	if err := w.Watch(root); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	watched := watchList(w)
	if !watched[root] || !watched[filepath.Join(root, "src")] || !watched[filepath.Join(root, "src", "api")] {
		t.Errorf("Expected root and subdirectories watched, got %v", watched)
	}
	if watched[filepath.Join(root, ".git")] || watched[filepath.Join(root, ".git", "objects")] {
		t.Errorf("Expected .git excluded, got %v", watched)
	}
}

// TestWatchExtendsToNewDirectories verifies directories created after
// the initial walk get registered, including their children.
func TestWatchExtendsToNewDirectories(t *testing.T) {
	root := t.TempDir()

	w, err := NewWatcher(100 * time.Millisecond)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer w.Close()

	if err := w.Watch(root); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	newDir := filepath.Join(root, "pkg", "util")
	if err := os.MkdirAll(newDir, 0755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	w.maybeWatchNewDir(filepath.Join(root, "pkg"))

	watched := watchList(w)
	if !watched[filepath.Join(root, "pkg")] || !watched[newDir] {
		t.Errorf("Expected new directory tree watched, got %v", watched)
	}
}

// TestMaybeWatchNewDirIgnoresFiles verifies plain file creation does not
// register a watch.
func TestMaybeWatchNewDirIgnoresFiles(t *testing.T) {
	root := t.TempDir()

	w, err := NewWatcher(100 * time.Millisecond)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer w.Close()

	if err := w.Watch(root); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	file := filepath.Join(root, "main.go")
	if err := os.WriteFile(file, []byte("package main\n"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	w.maybeWatchNewDir(file)

	if watchList(w)[file] {
		t.Error("Expected plain files not to be watched directly")
	}
}
