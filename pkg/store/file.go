package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/keelpm/keel/pkg/errors"
	"github.com/keelpm/keel/pkg/solve"
)

// FileStore is a file-based plan store for CLI usage.
// Plans are stored as JSON files in a base directory.
type FileStore struct {
	mu      sync.RWMutex
	baseDir string
}

// NewFileStore creates a file-based plan store.
// If baseDir is empty, defaults to ~/.config/keel/plans/
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "get home dir")
		}
		baseDir = filepath.Join(home, ".config", "keel", "plans")
	}
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "create plan dir")
	}
	return &FileStore{baseDir: baseDir}, nil
}

func (s *FileStore) planPath(id string) string {
	return filepath.Join(s.baseDir, id+".json")
}

// Save writes the plan as an indented JSON document.
func (s *FileStore) Save(ctx context.Context, plan *solve.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if plan.ID == "" {
		plan.ID = uuid.NewString()
	}
	data, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPlan, err, "marshal plan")
	}
	if err := os.WriteFile(s.planPath(plan.ID), data, 0600); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "write plan file")
	}
	return nil
}

// Get reads a plan by ID.
func (s *FileStore) Get(ctx context.Context, id string) (*solve.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.planPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.ErrCodePlanNotFound, "plan %s", id)
		}
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "read plan file")
	}
	var plan solve.Plan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPlan, err, "parse plan %s", id)
	}
	return &plan, nil
}

// List returns summaries of all stored plans, newest first.
func (s *FileStore) List(ctx context.Context) ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "read plan dir")
	}
	var out []Summary
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.baseDir, e.Name()))
		if err != nil {
			continue
		}
		var plan solve.Plan
		if err := json.Unmarshal(data, &plan); err != nil {
			continue
		}
		out = append(out, summarize(&plan))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Delete removes a stored plan. A missing plan reports PLAN_NOT_FOUND,
// matching Get.
func (s *FileStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.planPath(id))
	if os.IsNotExist(err) {
		return errors.New(errors.ErrCodePlanNotFound, "plan %s", id)
	}
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "delete plan %s", id)
	}
	return nil
}

// Close does nothing for the file store.
func (s *FileStore) Close(ctx context.Context) error { return nil }

var _ Store = (*FileStore)(nil)
