package engine

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/buildflow/buildflow/pkg/errors"
)

// ResolveImage combines an image name and tag into a full reference,
// applying the product defaults: the name falls back to the context
// directory's base name, the tag to the short git commit SHA.
func ResolveImage(name, tag, contextDir string) (string, error) {
	// A tag that already carries a name ("myapp:v1.0") wins outright.
	if strings.Contains(tag, ":") {
		return tag, nil
	}

	if name == "" {
		abs, err := filepath.Abs(contextDir)
		if err != nil {
			return "", errors.Wrap(err, errors.CodeContextNotFound, "unable to resolve context directory")
		}
		name = filepath.Base(abs)
	}

	if tag == "" {
		var err error
		tag, err = gitShortSHA(contextDir)
		if err != nil {
			return "", err
		}
	}

	return name + ":" + tag, nil
}

// gitShortSHA returns the abbreviated HEAD commit of the context repo.
func gitShortSHA(dir string) (string, error) {
	cmd := exec.Command("git", "rev-parse", "--short", "HEAD")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return "", errors.Wrap(err, errors.CodeInvalidReference,
			"no tag given and no git commit available; pass --tag or run inside a git repository")
	}
	return strings.TrimSpace(string(out)), nil
}

// CheckContext validates that the context directory and Dockerfile exist.
func CheckContext(contextDir, dockerfile string) error {
	if _, err := os.Stat(contextDir); err != nil {
		return errors.New(errors.CodeContextNotFound, "build context not found").
			WithContext("path", contextDir)
	}
	full := filepath.Join(contextDir, dockerfile)
	if _, err := os.Stat(full); err != nil {
		return errors.DockerfileNotFound(full)
	}
	return nil
}
