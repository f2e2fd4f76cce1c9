// Package memory is an in-process store with the same uniqueness, foreign-key
// and cascade behaviour as the Postgres schema. It backs tests and local runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kirillkom/gapdrill/internal/core/domain"
)

type Store struct {
	mu      sync.RWMutex
	uploads map[string]domain.Upload
	results map[string]domain.RecognitionResult
	entries map[string]domain.LibraryEntry
}

func NewStore() *Store {
	return &Store{
		uploads: make(map[string]domain.Upload),
		results: make(map[string]domain.RecognitionResult),
		entries: make(map[string]domain.LibraryEntry),
	}
}

func (s *Store) CreateUpload(_ context.Context, upload *domain.Upload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.uploads[upload.ID]; ok {
		return fmt.Errorf("insert upload: %w", domain.ErrConflict)
	}
	s.uploads[upload.ID] = *upload
	return nil
}

func (s *Store) GetUpload(_ context.Context, id string) (*domain.Upload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.uploads[id]
	if !ok {
		return nil, fmt.Errorf("upload %s: %w", id, domain.ErrNotFound)
	}
	return &u, nil
}

func (s *Store) ListUploadsWithResults(_ context.Context, userID string) ([]domain.UploadWithResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.UploadWithResult, 0)
	for _, u := range s.uploads {
		if u.UserID != userID {
			continue
		}
		item := domain.UploadWithResult{Upload: u}
		if r, ok := s.results[u.ID]; ok {
			item.Result = &r
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return newer(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID) })
	return out, nil
}

func (s *Store) UpdateImageURL(_ context.Context, userID, id, imageURL string, updatedAt time.Time) (*domain.Upload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.uploads[id]
	if !ok || u.UserID != userID {
		return nil, fmt.Errorf("upload %s: %w", id, domain.ErrNotFound)
	}
	if u.ImageURL != imageURL {
		delete(s.results, id)
	}
	u.ImageURL = imageURL
	u.UpdatedAt = updatedAt
	s.uploads[id] = u
	return &u, nil
}

// DeleteUpload cascades to the recognition result and library entries.
func (s *Store) DeleteUpload(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.uploads[id]
	if !ok || u.UserID != userID {
		return fmt.Errorf("upload %s: %w", id, domain.ErrNotFound)
	}
	delete(s.uploads, id)
	delete(s.results, id)
	for entryID, e := range s.entries {
		if e.UploadID == id {
			delete(s.entries, entryID)
		}
	}
	return nil
}

func (s *Store) CreateResult(_ context.Context, result *domain.RecognitionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.uploads[result.ID]; !ok {
		return fmt.Errorf("insert recognition result: upload %s: %w", result.ID, domain.ErrNotFound)
	}
	if _, ok := s.results[result.ID]; ok {
		return fmt.Errorf("insert recognition result: %w", domain.ErrConflict)
	}
	s.results[result.ID] = *result
	return nil
}

func (s *Store) GetResult(_ context.Context, id string) (*domain.RecognitionResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[id]
	if !ok {
		return nil, fmt.Errorf("recognition result %s: %w", id, domain.ErrNotFound)
	}
	return &r, nil
}

func (s *Store) ListResults(_ context.Context, userID string) ([]domain.RecognitionResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.RecognitionResult, 0)
	for id, r := range s.results {
		if s.uploads[id].UserID == userID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return newer(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID) })
	return out, nil
}

func (s *Store) CreateEntry(_ context.Context, entry *domain.LibraryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.uploads[entry.UploadID]; !ok {
		return fmt.Errorf("insert library entry: upload %s: %w", entry.UploadID, domain.ErrNotFound)
	}
	if _, ok := s.entries[entry.ID]; ok {
		return fmt.Errorf("insert library entry: %w", domain.ErrConflict)
	}
	s.entries[entry.ID] = *entry
	return nil
}

func (s *Store) ListEntries(_ context.Context, userID string) ([]domain.LibraryEntry, error) {
	return s.filterEntries(func(e domain.LibraryEntry) bool { return e.UserID == userID }), nil
}

func (s *Store) ListEntriesByUpload(_ context.Context, userID, uploadID string) ([]domain.LibraryEntry, error) {
	return s.filterEntries(func(e domain.LibraryEntry) bool {
		return e.UserID == userID && e.UploadID == uploadID
	}), nil
}

func (s *Store) GetEntry(_ context.Context, userID, id string) (*domain.LibraryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok || e.UserID != userID {
		return nil, fmt.Errorf("library entry %s: %w", id, domain.ErrNotFound)
	}
	return &e, nil
}

func (s *Store) UpdateEntry(_ context.Context, entry *domain.LibraryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.entries[entry.ID]
	if !ok || current.UserID != entry.UserID {
		return fmt.Errorf("library entry %s: %w", entry.ID, domain.ErrNotFound)
	}
	current.Question = entry.Question
	current.Solution = entry.Solution
	current.UpdatedAt = entry.UpdatedAt
	s.entries[entry.ID] = current
	return nil
}

func (s *Store) DeleteEntry(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok || e.UserID != userID {
		return fmt.Errorf("library entry %s: %w", id, domain.ErrNotFound)
	}
	delete(s.entries, id)
	return nil
}

func (s *Store) filterEntries(keep func(domain.LibraryEntry) bool) []domain.LibraryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.LibraryEntry, 0)
	for _, e := range s.entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return newer(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID) })
	return out
}

func newer(a, b time.Time, idA, idB string) bool {
	if a.Equal(b) {
		return idA > idB
	}
	return a.After(b)
}

// Ping satisfies the health check; memory is always reachable.
func (s *Store) Ping(context.Context) error {
	return nil
}
