package insert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"

	"github.com/opencontainers/image-spec/specs-go"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"oras.land/oras-go/v2/content"
	"oras.land/oras-go/v2/errdef"

	"github.com/meigma/keyutils/internal/seal"
	"github.com/meigma/keyutils/key"
	"github.com/meigma/keyutils/metadata"
)

// putLayer stores plain as the single layer of a new key manifest,
// encrypting it first when cfg asks for it.
func (i *Inserter) putLayer(ctx context.Context, mediaType string, plain []byte, cfg insertConfig) (key.Key, error) {
	stored := plain
	var cryptoKey []byte
	if cfg.encrypt {
		hashes, err := metadata.ComputeHashes(plain, metadata.HashSHA256)
		if err != nil {
			return key.Key{}, err
		}
		if cryptoKey, err = metadata.CryptoKey(hashes); err != nil {
			return key.Key{}, err
		}
		if stored, err = seal.Seal(cryptoKey, 0, plain); err != nil {
			return key.Key{}, err
		}
	}

	layer, err := i.pushBlob(ctx, mediaType, stored)
	if err != nil {
		return key.Key{}, fmt.Errorf("push layer: %w", err)
	}
	config, err := i.pushBlob(ctx, ocispec.MediaTypeEmptyJSON, ocispec.DescriptorEmptyJSON.Data)
	if err != nil {
		return key.Key{}, fmt.Errorf("push config: %w", err)
	}

	manifest := buildManifest(config, layer, cfg.annotations)
	raw, err := json.Marshal(manifest)
	if err != nil {
		return key.Key{}, fmt.Errorf("marshal manifest: %w", err)
	}
	desc, err := i.pushBlob(ctx, ocispec.MediaTypeImageManifest, raw)
	if err != nil {
		return key.Key{}, fmt.Errorf("push manifest: %w", err)
	}

	if i.digestTags {
		if err := i.target.Tag(ctx, desc, desc.Digest.String()); err != nil {
			return key.Key{}, fmt.Errorf("tag %s: %w", desc.Digest, err)
		}
	}
	if cfg.tag != "" {
		if err := i.target.Tag(ctx, desc, cfg.tag); err != nil {
			return key.Key{}, fmt.Errorf("tag %q: %w", cfg.tag, err)
		}
	}

	k := key.Key{
		Registry:   i.registry,
		Repository: i.repository,
		Reference:  desc.Digest.String(),
		CryptoKey:  cryptoKey,
	}
	i.log().Debug("inserted key",
		slog.String("key", k.String()),
		slog.String("media_type", mediaType),
		slog.Int("size", len(stored)))
	return k, nil
}

// pushBlob pushes data unless the target already has it.
func (i *Inserter) pushBlob(ctx context.Context, mediaType string, data []byte) (ocispec.Descriptor, error) {
	desc := content.NewDescriptorFromBytes(mediaType, data)
	exists, err := i.target.Exists(ctx, desc)
	if err != nil && !errors.Is(err, errdef.ErrNotFound) {
		return ocispec.Descriptor{}, err
	}
	if exists {
		return desc, nil
	}
	if err := i.target.Push(ctx, desc, bytes.NewReader(data)); err != nil && !errors.Is(err, errdef.ErrAlreadyExists) {
		return ocispec.Descriptor{}, err
	}
	return desc, nil
}

// buildManifest creates the manifest of a key. No creation time is recorded
// so equal content always yields the same manifest digest.
func buildManifest(config, layer ocispec.Descriptor, annotations map[string]string) ocispec.Manifest {
	var ann map[string]string
	if len(annotations) > 0 {
		ann = maps.Clone(annotations)
	}
	config.Data = nil
	return ocispec.Manifest{
		Versioned:    specs.Versioned{SchemaVersion: 2},
		MediaType:    ocispec.MediaTypeImageManifest,
		ArtifactType: metadata.ArtifactType,
		Config:       config,
		Layers:       []ocispec.Descriptor{layer},
		Annotations:  ann,
	}
}
