// Package registry resolves compressed container image sizes by querying
// OCI registries.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/distribution/reference"
	ociv1 "github.com/opencontainers/image-spec/specs-go/v1"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/credentials"
)

// SizeResolver resolves an image reference to its compressed size in MB.
// Implementations report ok=false on any failure; resolution sits inside
// the detection pipeline and must never surface an error.
type SizeResolver interface {
	Resolve(ctx context.Context, imageRef string) (sizeMB int, ok bool)
}

// Resolver queries OCI registries for image manifests and sums the
// compressed layer sizes. Docker credential helpers are consulted for
// authentication when available.
type Resolver struct {
	plainHTTP bool
	client    *auth.Client
}

// NewResolver creates a registry-backed size resolver.
func NewResolver(plainHTTP bool) *Resolver {
	credStore, _ := credentials.NewStoreFromDocker(credentials.StoreOptions{})

	return &Resolver{
		plainHTTP: plainHTTP,
		client: &auth.Client{
			Client:     http.DefaultClient,
			Cache:      auth.NewCache(),
			Credential: credentials.Credential(credStore),
		},
	}
}

// Resolve fetches the manifest for imageRef and returns the total
// compressed layer size in MB. Multi-platform indexes resolve to their
// first listed platform manifest.
func (r *Resolver) Resolve(ctx context.Context, imageRef string) (int, bool) {
	named, err := reference.ParseNormalizedNamed(imageRef)
	if err != nil {
		slog.Debug("invalid image reference", "image", imageRef, "error", err)
		return 0, false
	}

	tag := "latest"
	if tagged, ok := named.(reference.Tagged); ok {
		tag = tagged.Tag()
	}

	repo, err := remote.NewRepository(fmt.Sprintf("%s/%s", reference.Domain(named), reference.Path(named)))
	if err != nil {
		slog.Debug("failed to initialize repository", "image", imageRef, "error", err)
		return 0, false
	}
	repo.PlainHTTP = r.plainHTTP
	repo.Client = r.client

	desc, rc, err := repo.FetchReference(ctx, tag)
	if err != nil {
		slog.Debug("manifest fetch failed", "image", imageRef, "error", err)
		return 0, false
	}
	defer rc.Close()

	body, err := io.ReadAll(rc)
	if err != nil {
		slog.Debug("manifest read failed", "image", imageRef, "error", err)
		return 0, false
	}

	switch desc.MediaType {
	case ociv1.MediaTypeImageIndex, "application/vnd.docker.distribution.manifest.list.v2+json":
		var index ociv1.Index
		if err := json.Unmarshal(body, &index); err != nil || len(index.Manifests) == 0 {
			return 0, false
		}
		sub, err := repo.Fetch(ctx, index.Manifests[0])
		if err != nil {
			slog.Debug("platform manifest fetch failed", "image", imageRef, "error", err)
			return 0, false
		}
		defer sub.Close()
		body, err = io.ReadAll(sub)
		if err != nil {
			return 0, false
		}
	}

	var manifest ociv1.Manifest
	if err := json.Unmarshal(body, &manifest); err != nil {
		slog.Debug("manifest decode failed", "image", imageRef, "error", err)
		return 0, false
	}

	var total int64
	for _, layer := range manifest.Layers {
		total += layer.Size
	}
	if total <= 0 {
		return 0, false
	}

	return int(total / (1024 * 1024)), true
}
