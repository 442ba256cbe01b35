package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/prismlab/course-tutor/internal/core/domain"
	"github.com/prismlab/course-tutor/internal/core/ports"
)

// Store keeps conversation state in process memory, keyed by thread id.
// Load and Save exchange deep copies so callers never mutate shared
// state through a retained pointer.
type Store struct {
	mu      sync.RWMutex
	threads map[string]*domain.ConversationState
}

func NewStore() *Store {
	return &Store{threads: make(map[string]*domain.ConversationState)}
}

func (s *Store) Load(_ context.Context, threadID string) (*domain.ConversationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.threads[threadID]
	if !ok {
		return nil, domain.WrapError(domain.ErrThreadNotFound, "load state", errors.New(threadID))
	}
	return state.Clone(), nil
}

func (s *Store) Save(_ context.Context, state *domain.ConversationState) error {
	if state == nil || state.ThreadID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "save state", errors.New("missing thread id"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads[state.ThreadID] = state.Clone()
	return nil
}

var _ ports.StateStore = (*Store)(nil)
