package persist

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

const fileExtension = ".yaml"

// FileStore keeps one YAML document per Ref under root, at
// root/<namespace>/<path>.yaml. Writes go through a temp file and a rename.
type FileStore struct {
	root string
	mu   sync.Mutex
	now  func() time.Time
}

type fileDocument struct {
	Meta  Meta `yaml:"meta"`
	Value any  `yaml:"value"`
}

// NewFileStore creates root if needed.
func NewFileStore(root string) (*FileStore, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("persist: file store root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("persist: create root %q: %w", root, err)
	}
	return &FileStore{root: root, now: time.Now}, nil
}

// Root returns the store's directory.
func (s *FileStore) Root() string {
	return s.root
}

func (s *FileStore) Load(_ context.Context, ref Ref) (any, Meta, bool, error) {
	file, err := s.file(ref)
	if err != nil {
		return nil, Meta{}, false, err
	}
	doc, ok, err := readDocument(file)
	if err != nil || !ok {
		return nil, Meta{}, false, err
	}
	return doc.Value, doc.Meta, true, nil
}

func (s *FileStore) Save(_ context.Context, ref Ref, snapshot any, meta Meta) (Meta, error) {
	file, err := s.file(ref)
	if err != nil {
		return Meta{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	current, exists, err := readDocument(file)
	if err != nil {
		return Meta{}, err
	}
	if err := checkETag(meta.ETag, current.Meta, exists); err != nil {
		return current.Meta, err
	}

	stored := stamp(meta, s.now().UTC())
	data, err := yaml.Marshal(fileDocument{Meta: stored, Value: snapshot})
	if err != nil {
		return Meta{}, fmt.Errorf("persist: encode %s: %w", ref, err)
	}
	if err := writeAtomic(file, data); err != nil {
		return Meta{}, fmt.Errorf("persist: write %s: %w", ref, err)
	}
	return cloneMeta(stored), nil
}

// List implements Lister.
func (s *FileStore) List(_ context.Context, namespace string) ([]Ref, error) {
	ns := strings.TrimSpace(namespace)
	if ns == "" {
		ns = DefaultNamespace
	}
	dir := filepath.Join(s.root, filepath.FromSlash(ns))
	var refs []Ref
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fs.SkipDir
			}
			return err
		}
		if d.IsDir() || filepath.Ext(path) != fileExtension {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		refs = append(refs, Ref{Namespace: ns, Path: strings.TrimSuffix(filepath.ToSlash(rel), fileExtension)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("persist: list %q: %w", ns, err)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Path < refs[j].Path })
	return refs, nil
}

func (s *FileStore) file(ref Ref) (string, error) {
	id, err := ref.Identifier()
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(id)+fileExtension), nil
}

func readDocument(file string) (fileDocument, bool, error) {
	data, err := os.ReadFile(file)
	if errors.Is(err, fs.ErrNotExist) {
		return fileDocument{}, false, nil
	}
	if err != nil {
		return fileDocument{}, false, fmt.Errorf("persist: read %q: %w", file, err)
	}
	var doc fileDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fileDocument{}, false, fmt.Errorf("persist: invalid yaml in %q: %w", file, err)
	}
	return doc, true, nil
}

func writeAtomic(file string, data []byte) error {
	dir := filepath.Dir(file)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".atoms-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), file)
}
