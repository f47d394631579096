package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"rag-agent/internal/domain"
)

// FileStore keeps feedback records as a JSON array in a single file. Writes
// replace the file atomically.
type FileStore struct {
	path string
	now  func() time.Time

	mu sync.Mutex
}

func NewFileStore(path string) (*FileStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("feedback: file path must not be empty")
	}
	return &FileStore{path: path, now: time.Now}, nil
}

// Append stores fb, stamping it with the current local time when it carries
// no timestamp.
func (s *FileStore) Append(_ context.Context, fb domain.Feedback) (domain.Feedback, error) {
	if fb.Timestamp == "" {
		fb.Timestamp = s.now().Format(domain.FeedbackTimeLayout)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	if err != nil {
		return domain.Feedback{}, err
	}
	records = append(records, fb)
	if err := s.write(records); err != nil {
		return domain.Feedback{}, err
	}
	return fb, nil
}

// List returns all records, newest first.
func (s *FileStore) List(_ context.Context) ([]domain.Feedback, error) {
	s.mu.Lock()
	records, err := s.read()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp > records[j].Timestamp
	})
	return records, nil
}

func (s *FileStore) read() ([]domain.Feedback, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return []domain.Feedback{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("feedback: read %s: %w", s.path, err)
	}
	records := []domain.Feedback{}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return records, nil
	}
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("feedback: decode %s: %w", s.path, err)
	}
	return records, nil
}

func (s *FileStore) write(records []domain.Feedback) error {
	raw, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("feedback: encode: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("feedback: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("feedback: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("feedback: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("feedback: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("feedback: replace %s: %w", s.path, err)
	}
	return nil
}
