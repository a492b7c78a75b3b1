package templatestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// createdDateLayout matches the ledger's timestamp format: ISO-8601 local time.
const createdDateLayout = "2006-01-02T15:04:05"

// FileStore is a JSON-file-backed Store. Destructive writes follow a
// copy-then-write discipline: the current file is snapshotted to a backup
// before every write and restored when the write fails, so a partial write
// never loses the previous template set.
type FileStore struct {
	path string

	mu        sync.RWMutex
	templates []Template

	// now is swappable for tests.
	now func() time.Time
}

// NewFileStore opens the template store at path. A missing or unreadable
// file is treated as an empty store, not an error.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("template store path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating template store directory: %w", err)
		}
	}

	s := &FileStore{path: path, now: time.Now}
	s.templates = s.load()
	return s, nil
}

// load reads the persisted document. Any failure degrades to an empty set.
func (s *FileStore) load() []Template {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("template store: cannot read %s: %v (starting empty)", s.path, err)
		}
		return nil
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		log.Printf("template store: cannot parse %s: %v (starting empty)", s.path, err)
		return nil
	}
	if doc.Version != currentVersion {
		log.Printf("template store: unsupported version %d in %s (starting empty)", doc.Version, s.path)
		return nil
	}

	// Renormalize defensively to tolerate minor storage drift.
	for i := range doc.Templates {
		renormalize(doc.Templates[i].Embedding)
	}
	return doc.Templates
}

// renormalize scales v to unit length in place, guarding against zero vectors.
func renormalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	n := math.Sqrt(sum)
	if n == 0 {
		return
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / n)
	}
}

func (s *FileStore) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates = s.load()
	return nil
}

func (s *FileStore) Templates() []Template {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Template, len(s.templates))
	copy(out, s.templates)
	return out
}

func (s *FileStore) Get(id string) *Template {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.templates {
		if s.templates[i].ID == id {
			t := s.templates[i]
			return &t
		}
	}
	return nil
}

func (s *FileStore) FindByName(name string) []Template {
	query := NormalizeName(name)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Template
	for i := range s.templates {
		if NormalizeName(s.templates[i].Name) == query {
			out = append(out, s.templates[i])
		}
	}
	return out
}

func (s *FileStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.templates)
}

func (s *FileStore) Upsert(ctx context.Context, t Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.CreatedDate == "" {
		t.CreatedDate = s.now().Format(createdDateLayout)
	}

	next := make([]Template, len(s.templates))
	copy(next, s.templates)

	replaced := false
	for i := range next {
		if next[i].ID == t.ID {
			// Keep the original enrollment date on re-enrollment.
			t.CreatedDate = next[i].CreatedDate
			next[i] = t
			replaced = true
			break
		}
	}
	if !replaced {
		next = append(next, t)
	}

	if err := s.persist(next); err != nil {
		return err
	}
	s.templates = next
	return nil
}

func (s *FileStore) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i := range s.templates {
		if s.templates[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, nil
	}

	next := make([]Template, 0, len(s.templates)-1)
	next = append(next, s.templates[:idx]...)
	next = append(next, s.templates[idx+1:]...)

	if err := s.persist(next); err != nil {
		return false, err
	}
	s.templates = next
	return true, nil
}

// persist writes the template set to disk, snapshotting the current file
// first and restoring the snapshot if the write fails.
func (s *FileStore) persist(templates []Template) error {
	doc := document{Version: currentVersion, Templates: templates}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding template store: %w", err)
	}

	backupPath := s.path + ".backup"
	hadBackup := false
	if _, err := os.Stat(s.path); err == nil {
		if err := copyFile(s.path, backupPath); err != nil {
			log.Printf("template store: cannot create backup: %v", err)
		} else {
			hadBackup = true
		}
	}

	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		if hadBackup {
			if restoreErr := copyFile(backupPath, s.path); restoreErr != nil {
				log.Printf("template store: backup restore failed: %v", restoreErr)
			} else {
				log.Printf("template store: restored previous state from backup")
			}
		}
		return fmt.Errorf("writing template store: %w", err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
