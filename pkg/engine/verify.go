package engine

import (
	"context"
	"os/exec"

	"github.com/goccy/go-json"

	"github.com/buildflow/buildflow/pkg/errors"
)

// VerifyResult describes the image the daemon actually stored.
type VerifyResult struct {
	Tag        string
	SizeBytes  int64
	LayerCount int
}

// inspectImage is the subset of `image inspect` output we read.
type inspectImage struct {
	RepoTags []string `json:"RepoTags"`
	Size     int64    `json:"Size"`
	RootFS   struct {
		Layers []string `json:"Layers"`
	} `json:"RootFS"`
}

// Verify inspects a built image and reports its identity, size, and
// layer count. The layer count lets the caller reconcile stream stats
// with base layers the builder never mentioned.
func (e *Engine) Verify(ctx context.Context, image string) (*VerifyResult, error) {
	out, err := exec.CommandContext(ctx, e.binary, "image", "inspect", image).Output()
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeVerifyFailed, "could not inspect image").
			WithContext("image", image)
	}

	var images []inspectImage
	if err := json.Unmarshal(out, &images); err != nil {
		return nil, errors.Wrap(err, errors.CodeVerifyFailed, "could not decode inspect output").
			WithContext("image", image)
	}
	if len(images) == 0 {
		return nil, errors.New(errors.CodeVerifyFailed, "image not found in daemon").
			WithContext("image", image)
	}

	img := images[0]
	tag := image
	if len(img.RepoTags) > 0 {
		tag = img.RepoTags[0]
	}
	return &VerifyResult{
		Tag:        tag,
		SizeBytes:  img.Size,
		LayerCount: len(img.RootFS.Layers),
	}, nil
}
