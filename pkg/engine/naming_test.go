package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/buildflow/buildflow/pkg/errors"
)

// TestResolveImageFullReference verifies a name:tag style tag wins over
// everything else.
func TestResolveImageFullReference(t *testing.T) {
	ref, err := ResolveImage("ignored", "myapp:v1.0", ".")
	if err != nil {
		t.Fatalf("ResolveImage failed: %v", err)
	}
	if ref != "myapp:v1.0" {
		t.Errorf("Expected full reference passthrough, got %q", ref)
	}
}

// TestResolveImageNameFromContext verifies the image name defaults to
// the context directory's base name.
func TestResolveImageNameFromContext(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "myservice")
	if err := os.Mkdir(dir, 0755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}

	ref, err := ResolveImage("", "dev", dir)
	if err != nil {
		t.Fatalf("ResolveImage failed: %v", err)
	}
	if ref != "myservice:dev" {
		t.Errorf("Expected myservice:dev, got %q", ref)
	}
}

// TestResolveImageNoGit verifies a missing git tag source yields an
// invalid-reference error rather than an empty tag.
func TestResolveImageNoGit(t *testing.T) {
	dir := t.TempDir() // not a git repository

	_, err := ResolveImage("myapp", "", dir)
	if err == nil {
		t.Fatal("Expected error without tag or git repository")
	}
	if !errors.IsCode(err, errors.CodeInvalidReference) {
		t.Errorf("Expected invalid reference code, got %v", err)
	}
}

// TestCheckContext verifies missing context and Dockerfile errors.
func TestCheckContext(t *testing.T) {
	if err := CheckContext(filepath.Join(t.TempDir(), "nope"), "Dockerfile"); err == nil {
		t.Error("Expected error for missing context directory")
	}

	dir := t.TempDir()
	err := CheckContext(dir, "Dockerfile")
	if !errors.IsCode(err, errors.CodeDockerfileNotFound) {
		t.Errorf("Expected dockerfile-not-found code, got %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "Dockerfile"), []byte("FROM alpine\n"), 0644); err != nil {
		t.Fatalf("Failed to write Dockerfile: %v", err)
	}
	if err := CheckContext(dir, "Dockerfile"); err != nil {
		t.Errorf("Expected valid context, got %v", err)
	}
}
