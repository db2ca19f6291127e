// Package filestore keeps one JSON document per profile under a saves directory.
package filestore

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type Store struct {
	dir string

	// file, when set, replaces the per-profile file for the default profile.
	file        string
	defaultName string
}

type Option func(*Store)

// WithStateFile serves profile defaultName from a single file instead of
// `<dir>/<defaultName>.json`.
func WithStateFile(path, defaultName string) Option {
	return func(s *Store) {
		s.file = path
		s.defaultName = defaultName
	}
}

func New(dir string, opts ...Option) *Store {
	s := &Store{dir: dir}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) Path(profile string) string {
	if s.file != "" && profile == s.defaultName {
		return s.file
	}
	return filepath.Join(s.dir, profile+".json")
}

// Load reads the document of a profile. A missing file is reported as an
// error wrapping fs.ErrNotExist.
func (s *Store) Load(profile string) ([]byte, error) {
	b, err := os.ReadFile(s.Path(profile))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", profile, err)
	}
	return b, nil
}

// Save writes through a temp file and rename.
func (s *Store) Save(profile string, doc []byte) error {
	path := s.Path(profile)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(doc); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

func (s *Store) Profiles() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	seen := map[string]bool{}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		p := strings.TrimSuffix(name, ".json")
		seen[p] = true
		out = append(out, p)
	}
	if s.file != "" && !seen[s.defaultName] {
		if _, err := os.Stat(s.file); err == nil {
			out = append(out, s.defaultName)
		}
	}
	sort.Strings(out)
	return out, nil
}
