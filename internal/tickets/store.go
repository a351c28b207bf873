// Package tickets persists final tickets as JSON files keyed by slug.
package tickets

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ShayCichocki/sprintguardian/pkg/models"
)

// ErrNotFound is returned when no ticket matches a key.
var ErrNotFound = errors.New("ticket not found")

// FileStore keeps one <slug>.json file per ticket in Dir. Two summaries
// with the same slug share a file; the later save wins.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates the directory if needed and returns a store over it.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("tickets directory is empty")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create tickets directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the directory tickets are stored in.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(slug string) string {
	return filepath.Join(s.dir, slug+".json")
}

// Save writes the ticket and returns its slug. The write goes through a
// temp file and rename so readers never see a partial ticket.
func (s *FileStore) Save(t models.FinalTicket) (string, error) {
	slug := t.Slug()
	if slug == "" {
		return "", fmt.Errorf("ticket summary %q has no usable characters", t.Summary)
	}

	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal ticket: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, ".ticket-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("write ticket: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("close ticket: %w", err)
	}
	if err := os.Rename(tmpName, s.path(slug)); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("rename ticket: %w", err)
	}
	return slug, nil
}

// List returns every stored ticket sorted by summary. Files that cannot be
// read or decoded are logged and skipped.
func (s *FileStore) List() ([]models.FinalTicket, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []models.FinalTicket{}, nil
		}
		return nil, fmt.Errorf("read tickets directory: %w", err)
	}

	out := []models.FinalTicket{}
	for _, e := range entries {
		if e.IsDir() || !isTicketFile(e.Name()) {
			continue
		}
		t, err := s.readFile(filepath.Join(s.dir, e.Name()))
		if err != nil {
			log.Printf("[tickets] skipping %s: %v", e.Name(), err)
			continue
		}
		out = append(out, t)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Summary < out[j].Summary
	})
	return out, nil
}

// Get returns the ticket stored under slug.
func (s *FileStore) Get(slug string) (models.FinalTicket, error) {
	slug = models.Slug(slug)
	if slug == "" {
		return models.FinalTicket{}, ErrNotFound
	}
	t, err := s.readFile(s.path(slug))
	if errors.Is(err, os.ErrNotExist) {
		return models.FinalTicket{}, fmt.Errorf("%w: %s", ErrNotFound, slug)
	}
	return t, err
}

// Delete removes the ticket for key, which may be a slug or a raw summary.
// It returns the slug that was removed.
func (s *FileStore) Delete(key string) (string, error) {
	slug := models.Slug(key)
	if slug == "" {
		return "", fmt.Errorf("%w: %q", ErrNotFound, key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(slug)); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, slug)
		}
		return "", fmt.Errorf("delete ticket: %w", err)
	}
	return slug, nil
}

func (s *FileStore) readFile(path string) (models.FinalTicket, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.FinalTicket{}, err
	}
	var t models.FinalTicket
	if err := json.Unmarshal(data, &t); err != nil {
		return models.FinalTicket{}, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return t, nil
}

func isTicketFile(name string) bool {
	return strings.HasSuffix(name, ".json") && !strings.HasPrefix(name, ".")
}
