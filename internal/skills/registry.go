package skills

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

//go:embed bundles/*.md
var embeddedBundles embed.FS

// Entry wraps a bundle with loading metadata.
type Entry struct {
	Key         string
	Bundle      *Bundle
	SourcePath  string
	ContentHash string
	LoadedAt    time.Time
}

// Registry holds loaded bundles with thread-safe access. Bundles handed out
// are copies; the registry's own values are never mutated after load.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry       // "business_type@version"
	latest  map[BusinessType]Entry // highest version per type
	dirs    []string
	logger  *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		entries: make(map[string]Entry),
		latest:  make(map[BusinessType]Entry),
		logger:  logger,
	}
}

// NewDefaultRegistry loads the embedded bundles plus any overlay directories.
func NewDefaultRegistry(logger *zap.Logger, overlayDirs ...string) (*Registry, error) {
	r := NewRegistry(logger)
	if err := r.LoadFS(embeddedBundles, "bundles"); err != nil {
		return nil, fmt.Errorf("load embedded bundles: %w", err)
	}
	for _, dir := range overlayDirs {
		if err := r.LoadDirectory(dir); err != nil {
			return nil, err
		}
	}
	r.dirs = overlayDirs
	return r, nil
}

// LoadFS loads every *.md under root of fsys.
func (r *Registry) LoadFS(fsys fs.FS, root string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fs.WalkDir(fsys, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".md" || d.Name() == "README.md" {
			return nil
		}
		content, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("failed to read bundle %s: %w", path, err)
		}
		return r.addLocked(path, content)
	})
}

// LoadDirectory scans an overlay directory recursively. A missing directory
// is skipped silently.
func (r *Registry) LoadDirectory(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat directory %s: %w", root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", root)
	}
	return r.LoadFS(os.DirFS(root), ".")
}

func (r *Registry) addLocked(path string, content []byte) error {
	b, err := LoadBundle(bytes.NewReader(content))
	if err != nil {
		return fmt.Errorf("failed to parse bundle from %s: %w", path, err)
	}
	entry := Entry{
		Key:         b.Key(),
		Bundle:      b,
		SourcePath:  path,
		ContentHash: CalculateContentHash(content),
		LoadedAt:    time.Now(),
	}
	if existing, ok := r.entries[entry.Key]; ok {
		return fmt.Errorf("duplicate bundle %s found in %s (already loaded from %s)",
			entry.Key, path, existing.SourcePath)
	}
	r.entries[entry.Key] = entry
	if cur, ok := r.latest[b.BusinessType]; !ok || CompareVersions(b.Version, cur.Bundle.Version) > 0 {
		r.latest[b.BusinessType] = entry
	}
	return nil
}

// LoadSkill returns the bundle for bt: the highest-versioned dedicated bundle
// when one exists, otherwise the type's placeholder. Undeclared types fail
// with ErrUnknownBusinessType.
func (r *Registry) LoadSkill(bt BusinessType) (*Bundle, error) {
	if !bt.Declared() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBusinessType, bt)
	}
	r.mu.RLock()
	entry, ok := r.latest[bt]
	r.mu.RUnlock()
	if !ok {
		r.logger.Warn("No dedicated skill bundle, using placeholder",
			zap.String("business_type", string(bt)))
		return placeholderBundle(bt), nil
	}
	return entry.Bundle.Clone(), nil
}

// Get returns a specific bundle version.
func (r *Registry) Get(bt BusinessType, version string) (*Bundle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[fmt.Sprintf("%s@%s", bt, version)]
	if !ok {
		return nil, false
	}
	return entry.Bundle.Clone(), true
}

// List returns one summary per declared business type, marking placeholders.
func (r *Registry) List() []Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Summary, 0, len(declared))
	for _, bt := range DeclaredTypes() {
		if e, ok := r.latest[bt]; ok {
			out = append(out, Summary{
				BusinessType: bt,
				Version:      e.Bundle.Version,
				Description:  e.Bundle.Description,
			})
			continue
		}
		p := placeholderBundle(bt)
		out = append(out, Summary{BusinessType: bt, Version: p.Version, Description: p.Description, Placeholder: true})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BusinessType < out[j].BusinessType })
	return out
}

// Reload rebuilds the registry from the embedded bundles and the overlay
// directories it was created with. On error the previous state is kept.
func (r *Registry) Reload() error {
	fresh, err := NewDefaultRegistry(r.logger, r.dirs...)
	if err != nil {
		return err
	}
	fresh.mu.RLock()
	entries, latest := fresh.entries, fresh.latest
	fresh.mu.RUnlock()

	r.mu.Lock()
	r.entries = entries
	r.latest = latest
	r.mu.Unlock()
	r.logger.Info("Skill bundles reloaded", zap.Int("bundles", len(entries)))
	return nil
}

// Clone deep-copies a bundle.
func (b *Bundle) Clone() *Bundle {
	raw, err := json.Marshal(b)
	if err != nil {
		cp := *b
		return &cp
	}
	var out Bundle
	if err := json.Unmarshal(raw, &out); err != nil {
		cp := *b
		return &cp
	}
	return &out
}
