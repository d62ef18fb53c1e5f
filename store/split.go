package store

import (
	"context"
	"log/slog"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"golang.org/x/sync/errgroup"
	"oras.land/oras-go/v2"
	"oras.land/oras-go/v2/content"

	"github.com/meigma/keyutils/internal/compress"
	"github.com/meigma/keyutils/internal/seal"
	"github.com/meigma/keyutils/key"
	"github.com/meigma/keyutils/metadata"
)

// SplitGet reassembles the splitfile described by md. Blocks are read from
// the repository of k. The result is decompressed and checked against every
// hash in md.
func (s *Store) SplitGet(ctx context.Context, k key.Key, md *metadata.Metadata) ([]byte, error) {
	sf := md.Splitfile
	if sf == nil {
		return nil, failf(ModeUnsupported, "%s is not a splitfile", md.Type())
	}
	if sf.DataLength > s.maxSize {
		return nil, failf(ModeTooBig, "splitfile is %d bytes, limit %d", sf.DataLength, s.maxSize)
	}
	if md.DecompressedLength > s.maxSize {
		return nil, failf(ModeTooBig, "content is %d bytes, limit %d", md.DecompressedLength, s.maxSize)
	}
	stored, err := s.storedSize(sf.Blocks)
	if err != nil {
		return nil, err
	}
	if stored-int64(len(sf.Blocks))*seal.Overhead < sf.DataLength {
		return nil, failf(ModeDataMismatch, "blocks hold less than %d bytes", sf.DataLength)
	}

	cryptoKey, err := md.SplitfileKey()
	if err != nil {
		return nil, fail(ModeDecryptFailed, err)
	}
	target, err := s.target(k)
	if err != nil {
		return nil, err
	}

	blocks, err := s.fetchBlocks(ctx, target, sf.Blocks, cryptoKey)
	if err != nil {
		return nil, err
	}

	data := make([]byte, 0, stored)
	for _, b := range blocks {
		data = append(data, b...)
	}
	if int64(len(data)) < sf.DataLength {
		return nil, failf(ModeDataMismatch, "reassembled %d bytes, expected %d", len(data), sf.DataLength)
	}
	data = data[:sf.DataLength]

	if md.IsCompressed() {
		data, err = compress.Decompress(md.Compression, data, md.DecompressedLength)
		if err != nil {
			return nil, fail(ModeDecompressFailed, err)
		}
	} else if int64(len(data)) != md.DecompressedLength {
		return nil, failf(ModeDataMismatch, "content is %d bytes, metadata says %d", len(data), md.DecompressedLength)
	}

	if err := metadata.VerifyHashes(data, md.Hashes); err != nil {
		return nil, fail(ModeDataMismatch, err)
	}
	s.log().Debug("reassembled splitfile",
		slog.String("key", k.String()),
		slog.Int("blocks", len(sf.Blocks)),
		slog.Int("size", len(data)))
	return data, nil
}

// storedSize sums the declared block sizes. Every size is checked before it
// is used to allocate, so hostile metadata cannot request more than the
// sealed form of maxSize bytes in total.
func (s *Store) storedSize(blocks []metadata.Block) (int64, error) {
	if int64(len(blocks)) > s.maxSize {
		return 0, failf(ModeTooBig, "splitfile has %d blocks", len(blocks))
	}
	limit := s.maxSize + int64(len(blocks))*seal.Overhead
	var stored int64
	for i, b := range blocks {
		if b.Size < 0 {
			return 0, failf(ModeInvalidMetadata, "block %d: negative size %d", i, b.Size)
		}
		if b.Size > s.maxSize+seal.Overhead {
			return 0, failf(ModeTooBig, "block %d is %d bytes, limit %d", i, b.Size, s.maxSize+seal.Overhead)
		}
		stored += b.Size
		if stored > limit {
			return 0, failf(ModeTooBig, "blocks hold more than %d bytes", limit)
		}
	}
	return stored, nil
}

// fetchBlocks fetches and decrypts blocks concurrently, preserving order.
func (s *Store) fetchBlocks(ctx context.Context, target oras.ReadOnlyTarget, blocks []metadata.Block, cryptoKey []byte) ([][]byte, error) {
	out := make([][]byte, len(blocks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, b := range blocks {
		g.Go(func() error {
			stored, err := s.fetchBlock(gctx, target, b)
			if err != nil {
				return err
			}
			plain, err := seal.Open(cryptoKey, uint64(i), stored)
			if err != nil {
				return failf(ModeDecryptFailed, "block %d: %w", i, err)
			}
			out[i] = plain
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) fetchBlock(ctx context.Context, target oras.ReadOnlyTarget, b metadata.Block) ([]byte, error) {
	if s.cache != nil {
		if data, ok := s.cache.Get(b.Digest); ok {
			s.log().Debug("block cache hit", slog.String("digest", b.Digest.String()))
			return data, nil
		}
	}

	desc := ocispec.Descriptor{
		MediaType: metadata.MediaTypeBlock,
		Digest:    b.Digest,
		Size:      b.Size,
	}
	data, err := content.FetchAll(ctx, target, desc)
	if err != nil {
		return nil, classify(err)
	}

	if s.cache != nil {
		if err := s.cache.Put(b.Digest, data); err != nil {
			s.log().Warn("block cache put failed",
				slog.String("digest", b.Digest.String()),
				slog.Any("error", err))
		}
	}
	return data, nil
}
