package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"oras.land/oras-go/v2/content"

	"github.com/meigma/keyutils/key"
	"github.com/meigma/keyutils/metadata"
	"github.com/meigma/keyutils/oci"
	"github.com/meigma/keyutils/store"
)

const testRepo = "registry.example.com/keys"

func TestRunLayout(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	input := filepath.Join(t.TempDir(), "input.txt")
	content := []byte(strings.Repeat("layout insert ", 5000))
	require.NoError(t, os.WriteFile(input, content, 0o600))

	var out bytes.Buffer
	err := run(context.Background(), []string{
		"--repo", testRepo, "--layout", dir, "--compression", "gzip", "--mime", "text/plain", "--top-data", input,
	}, nil, &out)
	require.NoError(t, err)

	k, err := key.Parse(strings.TrimSpace(out.String()))
	require.NoError(t, err)

	st, err := store.New(oci.NewLayout(dir).ReadOnlyTarget)
	require.NoError(t, err)
	got, err := st.Fetch(context.Background(), k)
	require.NoError(t, err)
	assert.Equal(t, content, got)

	md, err := st.SimpleManifestGet(context.Background(), k)
	require.NoError(t, err)
	assert.Equal(t, "text/plain", md.MIMEType)
	assert.Equal(t, metadata.CodecGzip, md.Compression)
	assert.True(t, md.HasTopData())
}

func TestRunStdinArchive(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	var out bytes.Buffer
	err := run(context.Background(), []string{"--repo", testRepo, "--layout", dir, "--archive", "tar", "-"},
		strings.NewReader("tar bytes"), &out)
	require.NoError(t, err)

	k, err := key.Parse(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	st, err := store.New(oci.NewLayout(dir).ReadOnlyTarget)
	require.NoError(t, err)
	md, err := st.SimpleManifestGet(context.Background(), k)
	require.NoError(t, err)
	archive, ok := md.ArchiveType()
	require.True(t, ok)
	assert.Equal(t, metadata.ArchiveTAR, archive)
}

func TestRunAnnotations(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	var out bytes.Buffer
	err := run(ctx, []string{
		"--repo", testRepo, "--layout", dir,
		"--annotation", "org.opencontainers.image.source=https://example.com/src",
		"--annotation", "purpose=test",
		"-",
	}, strings.NewReader("annotated"), &out)
	require.NoError(t, err)

	k, err := key.Parse(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	target, err := oci.NewLayout(dir).ReadOnlyTarget(k.Repo())
	require.NoError(t, err)
	desc, err := target.Resolve(ctx, k.Reference)
	require.NoError(t, err)
	raw, err := content.FetchAll(ctx, target, desc)
	require.NoError(t, err)

	var manifest ocispec.Manifest
	require.NoError(t, json.Unmarshal(raw, &manifest))
	assert.Equal(t, map[string]string{
		"org.opencontainers.image.source": "https://example.com/src",
		"purpose":                         "test",
	}, manifest.Annotations)
}

func TestRunErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tests := []struct {
		name string
		args []string
	}{
		{"no repo", []string{"-"}},
		{"no file", []string{"--repo", testRepo}},
		{"two files", []string{"--repo", testRepo, "a", "b"}},
		{"missing file", []string{"--repo", testRepo, "--layout", dir, filepath.Join(dir, "nope")}},
		{"bad codec", []string{"--repo", testRepo, "--layout", dir, "--compression", "brotli", "-"}},
		{"bad custom key", []string{"--repo", testRepo, "--layout", dir, "--custom-key", "zz", "-"}},
		{"short custom key", []string{"--repo", testRepo, "--layout", dir, "--custom-key", "abcd", "-"}},
		{"bad archive", []string{"--repo", testRepo, "--layout", dir, "--archive", "rar", "-"}},
		{"bad log level", []string{"--repo", testRepo, "--layout", dir, "--log-level", "loud", "-"}},
		{"unknown flag", []string{"--bogus"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var out bytes.Buffer
			err := run(context.Background(), tt.args, strings.NewReader("data"), &out)
			assert.Error(t, err)
			assert.Empty(t, out.String())
		})
	}
}
