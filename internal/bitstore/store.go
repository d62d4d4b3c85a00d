// Package bitstore is the filesystem bitstream store. Derivative assets are
// filed under named bundles, each entry keyed by a UUID so repeated filter
// runs never clobber earlier derivatives.
package bitstore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// entrySeparator joins the entry ID and the derived filename on disk.
const entrySeparator = "__"

// Store reads and writes bitstreams under a single root directory.
type Store struct {
	root string
}

// Entry describes one stored bitstream.
type Entry struct {
	ID     string
	Bundle string
	Name   string
	Path   string
	Size   int64
}

// New opens a store rooted at dir, creating it if needed.
func New(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("bitstore: root directory required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("bitstore: create root %q: %w", dir, err)
	}
	return &Store{root: dir}, nil
}

// Root returns the store's root directory.
func (s *Store) Root() string { return s.root }

// Put files the stream under bundle with the given derived name. The write
// is atomic: content lands in a temp file and is renamed into place.
func (s *Store) Put(bundle, name string, r io.Reader) (Entry, error) {
	bundle = strings.TrimSpace(bundle)
	if bundle == "" {
		return Entry{}, fmt.Errorf("bitstore: bundle required")
	}
	name = sanitizeName(name)
	if name == "" {
		return Entry{}, fmt.Errorf("bitstore: name required")
	}

	dir := filepath.Join(s.root, "bundles", bundle)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Entry{}, fmt.Errorf("bitstore: create bundle dir %q: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".put-*")
	if err != nil {
		return Entry{}, fmt.Errorf("bitstore: create temp entry: %w", err)
	}

	size, err := io.Copy(tmp, r)
	if err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return Entry{}, fmt.Errorf("bitstore: write entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return Entry{}, fmt.Errorf("bitstore: close entry: %w", err)
	}

	id := uuid.NewString()
	final := filepath.Join(dir, id+entrySeparator+name)
	if err := os.Rename(tmp.Name(), final); err != nil {
		_ = os.Remove(tmp.Name())
		return Entry{}, fmt.Errorf("bitstore: finalize entry: %w", err)
	}

	return Entry{ID: id, Bundle: bundle, Name: name, Path: final, Size: size}, nil
}

// Open returns a reader over the stored bitstream at path.
func (s *Store) Open(path string) (io.ReadCloser, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("bitstore: open entry: %w", err)
	}
	return file, nil
}

// List returns the entries filed under bundle, sorted by derived name.
func (s *Store) List(bundle string) ([]Entry, error) {
	dir := filepath.Join(s.root, "bundles", bundle)
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("bitstore: read bundle %q: %w", bundle, err)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() || strings.HasPrefix(de.Name(), ".") {
			continue
		}
		id, name, ok := strings.Cut(de.Name(), entrySeparator)
		if !ok {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		entries = append(entries, Entry{
			ID:     id,
			Bundle: bundle,
			Name:   name,
			Path:   filepath.Join(dir, de.Name()),
			Size:   info.Size(),
		})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// sanitizeName flattens path separators so a derived name cannot escape its
// bundle directory.
func sanitizeName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, string(os.PathSeparator), "_")
	name = strings.ReplaceAll(name, "/", "_")
	return name
}
