package stores

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/citis/sapro/models"
	"github.com/citis/sapro/utils"
)

// TempFilePattern names the scratch files a write goes through before it is
// renamed over the collection.
const TempFilePattern = ".passwords-*.tmp"

// PasswordStore keeps password entries in a single JSON document that is
// rewritten wholesale on every mutation.
//
// Mutations are serialised inside the process. Two processes sharing the same
// file still race and the last writer wins.
type PasswordStore struct {
	path  string
	mu    sync.Mutex
	now   func() time.Time
	newID func() string
}

// NewPasswordStore opens the store at path, creating the parent directory and
// an empty collection when the file does not exist yet.
func NewPasswordStore(path string) (*PasswordStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := writeEntries(path, []models.PasswordEntry{}); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("stat password file: %w", err)
	}
	return &PasswordStore{path: path, now: time.Now, newID: uuid.NewString}, nil
}

// List returns all entries in storage order. A missing or unreadable file
// yields an empty list.
func (s *PasswordStore) List() []models.PasswordEntry {
	entries, err := readEntries(s.path)
	if err != nil {
		utils.Sugar.Warnw("password file unreadable, serving empty list", "path", s.path, "error", err)
		return []models.PasswordEntry{}
	}
	return entries
}

// Create appends a new entry and persists the collection.
func (s *PasswordStore) Create(service, username, password string) (models.PasswordEntry, error) {
	if service == "" || username == "" || password == "" {
		return models.PasswordEntry{}, ErrMissingFields
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := readEntries(s.path)
	if err != nil {
		return models.PasswordEntry{}, err
	}
	entry := models.PasswordEntry{
		ID:        s.newID(),
		Service:   service,
		Username:  username,
		Password:  password,
		CreatedAt: models.FormatTimestamp(s.now()),
	}
	entries = append(entries, entry)
	if err := writeEntries(s.path, entries); err != nil {
		return models.PasswordEntry{}, err
	}
	return entry, nil
}

// Update replaces service, username and password of the entry with the given id.
// An unknown id is reported before the fields are checked.
func (s *PasswordStore) Update(id, service, username, password string) (models.PasswordEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := readEntries(s.path)
	if err != nil {
		return models.PasswordEntry{}, err
	}
	idx := -1
	for i := range entries {
		if entries[i].ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return models.PasswordEntry{}, ErrNotFound
	}
	if service == "" || username == "" || password == "" {
		return models.PasswordEntry{}, ErrMissingFields
	}

	entries[idx].Service = service
	entries[idx].Username = username
	entries[idx].Password = password
	if err := writeEntries(s.path, entries); err != nil {
		return models.PasswordEntry{}, err
	}
	return entries[idx], nil
}

// Delete removes the entry with the given id. Unknown ids are not an error.
func (s *PasswordStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := readEntries(s.path)
	if err != nil {
		return err
	}
	kept := entries[:0]
	for _, e := range entries {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	return writeEntries(s.path, kept)
}

func readEntries(path string) ([]models.PasswordEntry, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return []models.PasswordEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read password file: %w", err)
	}
	var entries []models.PasswordEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode password file: %w", err)
	}
	if entries == nil {
		entries = []models.PasswordEntry{}
	}
	return entries, nil
}

// writeEntries replaces the file through a temp file + rename so readers never
// observe a half-written document.
func writeEntries(path string, entries []models.PasswordEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode password file: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), TempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp password file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write password file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close password file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace password file: %w", err)
	}
	return nil
}
