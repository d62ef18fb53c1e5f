// Package oci connects the key store to OCI registries through ORAS.
//
// A Client hands out repository targets that share one auth client, so
// tokens fetched for one key are reused for the next.
package oci

import (
	"context"
	"fmt"
	"io"
	"net/http"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"oras.land/oras-go/v2"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/credentials"
	"oras.land/oras-go/v2/registry/remote/retry"
)

const defaultUserAgent = "keyutils/1.0"

// Client provides access to repositories on OCI registries.
type Client struct {
	plainHTTP  bool
	userAgent  string
	anonymous  bool // skip credential lookup entirely
	credStore  credentials.Store
	httpClient *http.Client
	authClient *auth.Client
}

// New creates a client with the given options.
func New(opts ...Option) *Client {
	c := &Client{
		userAgent:  defaultUserAgent,
		httpClient: retry.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.authClient = &auth.Client{
		Client: c.httpClient,
		Cache:  auth.NewCache(),
		Credential: func(ctx context.Context, hostport string) (auth.Credential, error) {
			if c.anonymous || c.credStore == nil {
				return auth.EmptyCredential, nil
			}
			return c.credStore.Get(ctx, hostport)
		},
		Header: http.Header{
			"User-Agent": []string{c.userAgent},
		},
	}
	return c
}

// Repository returns the ORAS repository for "registry/repository".
func (c *Client) Repository(repo string) (*remote.Repository, error) {
	r, err := remote.NewRepository(repo)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidReference, repo, err)
	}
	r.PlainHTTP = c.plainHTTP
	r.Client = c.authClient
	return r, nil
}

// Target returns a writable target for repo whose errors are mapped to the
// package sentinels.
func (c *Client) Target(repo string) (oras.Target, error) {
	r, err := c.Repository(repo)
	if err != nil {
		return nil, err
	}
	return &repository{Repository: r}, nil
}

// ReadOnlyTarget is Target narrowed to read access.
func (c *Client) ReadOnlyTarget(repo string) (oras.ReadOnlyTarget, error) {
	return c.Target(repo)
}

// Ping checks that the registry serving repo is reachable and that the
// configured credentials are accepted.
func (c *Client) Ping(ctx context.Context, repo string) error {
	r, err := c.Repository(repo)
	if err != nil {
		return err
	}
	reg, err := remote.NewRegistry(r.Reference.Registry)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidReference, err)
	}
	reg.PlainHTTP = c.plainHTTP
	reg.Client = c.authClient
	return mapError(reg.Ping(ctx))
}

// repository maps errors of the content operations used by the store.
type repository struct {
	*remote.Repository
}

func (r *repository) Resolve(ctx context.Context, reference string) (ocispec.Descriptor, error) {
	desc, err := r.Repository.Resolve(ctx, reference)
	return desc, mapError(err)
}

func (r *repository) Fetch(ctx context.Context, target ocispec.Descriptor) (io.ReadCloser, error) {
	rc, err := r.Repository.Fetch(ctx, target)
	return rc, mapError(err)
}

func (r *repository) Exists(ctx context.Context, target ocispec.Descriptor) (bool, error) {
	ok, err := r.Repository.Exists(ctx, target)
	return ok, mapError(err)
}

func (r *repository) Push(ctx context.Context, expected ocispec.Descriptor, content io.Reader) error {
	return mapError(r.Repository.Push(ctx, expected, content))
}

func (r *repository) Tag(ctx context.Context, desc ocispec.Descriptor, reference string) error {
	return mapError(r.Repository.Tag(ctx, desc, reference))
}
