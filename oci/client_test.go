package oci

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"oras.land/oras-go/v2/errdef"
	"oras.land/oras-go/v2/registry/remote/errcode"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()
		c := New()
		assert.Equal(t, defaultUserAgent, c.userAgent)
		assert.False(t, c.plainHTTP)
		assert.Nil(t, c.credStore)
		require.NotNil(t, c.authClient)
	})

	t.Run("options", func(t *testing.T) {
		t.Parallel()
		hc := &http.Client{}
		c := New(
			WithPlainHTTP(true),
			WithUserAgent("custom/2.0"),
			WithStaticToken("example.com", "tok"),
			WithHTTPClient(hc),
		)
		assert.True(t, c.plainHTTP)
		assert.Equal(t, "custom/2.0", c.userAgent)
		assert.Same(t, hc, c.authClient.Client)

		cred, err := c.authClient.Credential(context.Background(), "example.com")
		require.NoError(t, err)
		assert.Equal(t, "tok", cred.AccessToken)
	})

	t.Run("anonymous ignores credentials", func(t *testing.T) {
		t.Parallel()
		c := New(WithStaticCredentials("example.com", "u", "p"), WithAnonymous())
		cred, err := c.authClient.Credential(context.Background(), "example.com")
		require.NoError(t, err)
		assert.True(t, isEmptyCredential(cred))
	})
}

func TestRepository(t *testing.T) {
	t.Parallel()

	c := New(WithPlainHTTP(true))
	repo, err := c.Repository("localhost:5000/keys")
	require.NoError(t, err)
	assert.True(t, repo.PlainHTTP)
	assert.Equal(t, "keys", repo.Reference.Repository)

	_, err = c.Repository("not a repo")
	assert.ErrorIs(t, err, ErrInvalidReference)
}

func TestTargetMapsStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/manifests/missing"):
			w.WriteHeader(http.StatusNotFound)
		case strings.HasSuffix(r.URL.Path, "/manifests/secret"):
			w.WriteHeader(http.StatusForbidden)
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	t.Cleanup(srv.Close)

	host := strings.TrimPrefix(srv.URL, "http://")
	c := New(WithPlainHTTP(true), WithHTTPClient(srv.Client()))
	target, err := c.ReadOnlyTarget(host + "/keys")
	require.NoError(t, err)

	_, err = target.Resolve(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, errdef.ErrNotFound)

	_, err = target.Resolve(context.Background(), "secret")
	assert.ErrorIs(t, err, ErrForbidden)

	require.NoError(t, c.Ping(context.Background(), host+"/keys"))
}

func TestMapError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   error
		want error
	}{
		{"oras not found", errdef.ErrNotFound, ErrNotFound},
		{"http 404", &errcode.ErrorResponse{StatusCode: http.StatusNotFound}, ErrNotFound},
		{"http 401", &errcode.ErrorResponse{StatusCode: http.StatusUnauthorized}, ErrUnauthorized},
		{"http 403", &errcode.ErrorResponse{StatusCode: http.StatusForbidden}, ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.ErrorIs(t, mapError(tt.in), tt.want)
		})
	}

	assert.NoError(t, mapError(nil))
	other := errors.New("boom")
	assert.Same(t, other, mapError(other))
	assert.Equal(t, http.StatusInternalServerError, func() int {
		var resp *errcode.ErrorResponse
		err := mapError(&errcode.ErrorResponse{StatusCode: http.StatusInternalServerError})
		require.True(t, errors.As(err, &resp))
		return resp.StatusCode
	}())
}
