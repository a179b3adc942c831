// Package memory provides in-process implementations of the
// persistence ports, used in development and tests.
package memory

import (
	"context"
	"sync"

	"funnel-backend/application/ports"
	pkgerrors "funnel-backend/pkg/errors"

	"github.com/google/uuid"
)

// Store keeps snapshots and memos in process memory. It mirrors the
// persistence API's observable behavior, including delete-of-missing
// reported as NotFound, so session code exercises the same paths in
// tests as in production.
type Store struct {
	mu        sync.Mutex
	snapshots map[string]*ports.Snapshot
	memos     map[string]map[string]ports.MemoRecord
	todos     map[string]int
}

var (
	_ ports.SnapshotStore = (*Store)(nil)
	_ ports.MemoStore     = (*Store)(nil)
	_ ports.TodoCounter   = (*Store)(nil)
)

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{
		snapshots: make(map[string]*ports.Snapshot),
		memos:     make(map[string]map[string]ports.MemoRecord),
		todos:     make(map[string]int),
	}
}

// Load reads the canvas snapshot
func (s *Store) Load(ctx context.Context, canvasID string) (*ports.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := s.snapshots[canvasID]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("canvas snapshot")
	}
	copied := *snap
	return &copied, nil
}

// Save writes the canvas snapshot
func (s *Store) Save(ctx context.Context, canvasID string, snapshot *ports.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *snapshot
	s.snapshots[canvasID] = &copied
	return nil
}

// Create persists a memo under a fresh server-assigned id
func (s *Store) Create(ctx context.Context, canvasID string, req ports.MemoCreateRequest) (*ports.MemoRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := ports.MemoRecord{
		ID:       uuid.New().String(),
		Content:  req.Content,
		Position: req.Position,
	}
	if s.memos[canvasID] == nil {
		s.memos[canvasID] = make(map[string]ports.MemoRecord)
	}
	s.memos[canvasID][rec.ID] = rec
	return &rec, nil
}

// Update applies a partial change to a persisted memo
func (s *Store) Update(ctx context.Context, canvasID, memoID string, patch ports.MemoPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.memos[canvasID][memoID]
	if !ok {
		return pkgerrors.NewNotFoundError("memo")
	}
	if patch.Content != nil {
		rec.Content = *patch.Content
	}
	if patch.Position != nil {
		rec.Position = *patch.Position
	}
	if patch.Size != nil {
		size := *patch.Size
		rec.Size = &size
	}
	s.memos[canvasID][memoID] = rec
	return nil
}

// Delete removes a persisted memo, NotFound when it never existed
func (s *Store) Delete(ctx context.Context, canvasID, memoID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.memos[canvasID][memoID]; !ok {
		return pkgerrors.NewNotFoundError("memo")
	}
	delete(s.memos[canvasID], memoID)
	return nil
}

// Count reports the user's externally-tracked todo count
func (s *Store) Count(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.todos[userID], nil
}

// SetTodoCount seeds the external todo count, for tests
func (s *Store) SetTodoCount(userID string, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.todos[userID] = count
}

// MemoCount reports how many memos a canvas holds, for tests
func (s *Store) MemoCount(canvasID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.memos[canvasID])
}
