package oci

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"oras.land/oras-go/v2"
	"oras.land/oras-go/v2/content/memory"
	orasoci "oras.land/oras-go/v2/content/oci"
	"oras.land/oras-go/v2/registry"
)

// Layout serves repositories from OCI image layout directories, one per
// repository, below a root directory.
type Layout struct {
	root string

	mu     sync.Mutex
	stores map[string]*orasoci.Store
}

// NewLayout returns a Layout rooted at root.
func NewLayout(root string) *Layout {
	return &Layout{root: root, stores: make(map[string]*orasoci.Store)}
}

// Target returns the layout store for repo, creating it on first use.
func (l *Layout) Target(repo string) (oras.Target, error) {
	name, err := repoPath(repo)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if s, ok := l.stores[name]; ok {
		return s, nil
	}
	s, err := orasoci.New(filepath.Join(l.root, filepath.FromSlash(name)))
	if err != nil {
		return nil, fmt.Errorf("open layout for %s: %w", repo, err)
	}
	l.stores[name] = s
	return s, nil
}

// ReadOnlyTarget is Target narrowed to read access.
func (l *Layout) ReadOnlyTarget(repo string) (oras.ReadOnlyTarget, error) {
	return l.Target(repo)
}

// Memory serves repositories from process memory. Tests and the insert
// command's dry runs use it.
type Memory struct {
	mu     sync.Mutex
	stores map[string]*memory.Store
}

// NewMemory returns an empty Memory.
func NewMemory() *Memory {
	return &Memory{stores: make(map[string]*memory.Store)}
}

// Target returns the store for repo, creating it on first use.
func (m *Memory) Target(repo string) (oras.Target, error) {
	name, err := repoPath(repo)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stores[name]
	if !ok {
		s = memory.New()
		m.stores[name] = s
	}
	return s, nil
}

// ReadOnlyTarget is Target narrowed to read access.
func (m *Memory) ReadOnlyTarget(repo string) (oras.ReadOnlyTarget, error) {
	return m.Target(repo)
}

// repoPath validates "registry/repository" and returns it in a form that is
// safe to use as a relative path.
func repoPath(repo string) (string, error) {
	ref, err := registry.ParseReference(repo)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidReference, repo, err)
	}
	host := strings.NewReplacer(":", "_", "[", "", "]", "").Replace(ref.Registry)
	return host + "/" + ref.Repository, nil
}
