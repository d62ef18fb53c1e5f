//go:build integration

package integration

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/keyutils"
	"github.com/meigma/keyutils/insert"
	"github.com/meigma/keyutils/metadata"
	"github.com/meigma/keyutils/oci"
)

func TestRoundTrip_Sizes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	registryAddr := getRegistry(t)
	client := newClient()
	repo := testRepo(registryAddr, t.Name())
	ins := newInserter(t, client, repo)
	st := newStore(t, client)

	tests := []struct {
		name string
		data []byte
		opts []insert.InsertOption
	}{
		{"small", []byte("small payload"), nil},
		{"small with mime", []byte("<p>hi</p>"), []insert.InsertOption{insert.WithMIMEType("text/html")}},
		{"split zstd", makeCompressibleContent(300<<10), nil},
		{"split random", makeRandomContent(200<<10), []insert.InsertOption{insert.WithCompression(metadata.CodecLZ4)}},
		{"split gzip top data", makeCompressibleContent(90<<10), []insert.InsertOption{
			insert.WithCompression(metadata.CodecGzip), insert.WithTopData(),
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			k, err := ins.Insert(ctx, tt.data, tt.opts...)
			require.NoError(t, err)
			assert.True(t, k.IsDigest())

			got, err := st.Fetch(ctx, k)
			require.NoError(t, err)
			assert.Equal(t, tt.data, got)
		})
	}
}

func TestRoundTrip_MultiLevel(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	registryAddr := getRegistry(t)
	client := newClient()
	ins := newInserter(t, client, testRepo(registryAddr, t.Name()),
		insert.WithBlockSize(1024), insert.WithSplitThreshold(1024))
	st := newStore(t, client)

	data := makeRandomContent(100<<10)
	k, err := ins.Insert(ctx, data)
	require.NoError(t, err)

	md, err := st.SimpleManifestGet(ctx, k)
	require.NoError(t, err)
	assert.Equal(t, metadata.TypeMultiLevelMetadata, md.Type())

	got, err := st.Unroll(ctx, k, md)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestRoundTrip_Tag(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	registryAddr := getRegistry(t)
	client := newClient()
	repo := testRepo(registryAddr, t.Name())
	ins := newInserter(t, client, repo)

	k, err := ins.Insert(ctx, []byte("tagged"), insert.WithTag("v1"), insert.WithEncryption(false))
	require.NoError(t, err)

	repository, err := client.Repository(repo)
	require.NoError(t, err)
	desc, err := repository.Resolve(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, k.Reference, desc.Digest.String())
}

func TestPlugin_Remote(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	registryAddr := getRegistry(t)
	client := newClient()
	ins := newInserter(t, client, testRepo(registryAddr, t.Name()))

	data := makeRandomContent(100<<10)
	k, err := ins.Insert(ctx, data, insert.WithMIMEType("application/octet-stream"))
	require.NoError(t, err)

	p, err := keyutils.New(
		keyutils.WithRemote(oci.WithPlainHTTP(true), oci.WithAnonymous()),
		keyutils.WithCacheDir(t.TempDir()),
	)
	require.NoError(t, err)
	require.NoError(t, client.Ping(ctx, testRepo(registryAddr, t.Name())))
	srv := httptest.NewServer(p.Handler())
	t.Cleanup(srv.Close)

	resp, err := srv.Client().Get(srv.URL + "/keyutils/?" + url.Values{"key": {k.String()}}.Encode())
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "Decomposed metadata")
	assert.Contains(t, string(body), "MIME Type: application/octet-stream")

	q := url.Values{"action": {"splitdownload"}, "key": {k.String()}}
	resp, err = srv.Client().Get(srv.URL + "/keyutils/Download?" + q.Encode())
	require.NoError(t, err)
	body, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, data, body)
}
