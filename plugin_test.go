package keyutils_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/keyutils"
	"github.com/meigma/keyutils/config"
	"github.com/meigma/keyutils/insert"
	"github.com/meigma/keyutils/internal/testutil"
	"github.com/meigma/keyutils/key"
	"github.com/meigma/keyutils/oci"
)

const testRepo = "registry.example.com/keys"

func get(t *testing.T, srv *httptest.Server, path string, query url.Values) (*http.Response, []byte) {
	t.Helper()
	u := srv.URL + path
	if query != nil {
		u += "?" + query.Encode()
	}
	resp, err := srv.Client().Get(u)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestNewOptionErrors(t *testing.T) {
	t.Parallel()

	mem := oci.NewMemory()
	_, err := keyutils.New(keyutils.WithTarget(mem.ReadOnlyTarget), keyutils.WithLayout(t.TempDir()))
	assert.ErrorIs(t, err, keyutils.ErrConflictingSources)

	_, err = keyutils.New(keyutils.WithTarget(nil))
	assert.Error(t, err)
	_, err = keyutils.New(keyutils.WithLayout(""))
	assert.Error(t, err)
	_, err = keyutils.New(keyutils.WithCacheMaxBytes(-1))
	assert.Error(t, err)

	bad := config.Default()
	bad.Explorer.HexWidth = 0
	_, err = keyutils.New(keyutils.WithConfig(bad))
	assert.Error(t, err)
}

func TestPluginServesExplorerAndDownload(t *testing.T) {
	t.Parallel()

	mem := oci.NewMemory()
	target, err := mem.Target(testRepo)
	require.NoError(t, err)
	ins, err := insert.New(target, testRepo)
	require.NoError(t, err)

	ctx := context.Background()
	data := testutil.RandomBytes(7, 70<<10)
	k, err := ins.Insert(ctx, data)
	require.NoError(t, err)

	cacheDir := t.TempDir()
	p, err := keyutils.New(
		keyutils.WithTarget(mem.ReadOnlyTarget),
		keyutils.WithCacheDir(cacheDir),
		keyutils.WithVersion("test"),
	)
	require.NoError(t, err)
	srv := httptest.NewServer(p.Handler())
	t.Cleanup(srv.Close)

	resp, body := get(t, srv, "/keyutils/", url.Values{"key": {k.String()}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "Decomposed metadata")
	assert.Contains(t, string(body), "split-download")
	assert.Contains(t, string(body), "keyutils test")

	resp, body = get(t, srv, "/keyutils/Download", url.Values{"action": {"splitdownload"}, "key": {k.String()}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, data, body)

	entries, err := os.ReadDir(filepath.Join(cacheDir, "sha256"))
	require.NoError(t, err)
	assert.NotEmpty(t, entries, "splitfile blocks are cached")

	resp, _ = get(t, srv, "/keyutils/elsewhere", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPluginLayout(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	target, err := oci.NewLayout(dir).Target(testRepo)
	require.NoError(t, err)
	ins, err := insert.New(target, testRepo)
	require.NoError(t, err)
	k, err := ins.Insert(context.Background(), []byte("from a layout directory"))
	require.NoError(t, err)

	cfg := config.Default()
	cfg.PluginPath = "/kx"
	cfg.Registry.Layout = dir
	p, err := keyutils.New(keyutils.ConfigOptions(cfg)...)
	require.NoError(t, err)
	srv := httptest.NewServer(p.Handler())
	t.Cleanup(srv.Close)

	resp, body := get(t, srv, "/kx/Download", url.Values{"action": {"splitdownload"}, "key": {k.String()}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "from a layout directory", string(body))

	missing := key.MustParse(testRepo + ":nope")
	resp, _ = get(t, srv, "/kx/Download", url.Values{"action": {"splitdownload"}, "key": {missing.String()}})
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
}

func TestConfigOptions(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	assert.Len(t, keyutils.ConfigOptions(cfg), 2, "config and remote source")

	cfg.Registry.Layout = t.TempDir()
	cfg.Cache.Dir = t.TempDir()
	cfg.Cache.MaxBytes = 1 << 20
	opts := keyutils.ConfigOptions(cfg)
	assert.Len(t, opts, 4)

	p, err := keyutils.New(opts...)
	require.NoError(t, err)
	assert.Equal(t, cfg.Store.MaxSize, p.Store().MaxSize())
	assert.Equal(t, cfg.PluginPath, p.Explorer().PluginPath())
}
