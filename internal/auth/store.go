package auth

import (
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/maestro/internal/models"
	"github.com/desertthunder/maestro/internal/repositories"
	"github.com/desertthunder/maestro/internal/shared"
)

// Backend persists credentials. Misses are reported with an error wrapping [repositories.ErrNotFound].
type Backend interface {
	Get(userID string) (models.Credential, error)
	Save(cred models.Credential) error
	Delete(userID string) error
	List() ([]models.Credential, error)
}

// Store is the credential table keyed by user id.
type Store struct {
	mu      sync.RWMutex
	creds   map[string]models.Credential
	backend Backend
	logger  *log.Logger
}

// NewStore creates a [Store]. backend may be nil for a purely in-memory table.
func NewStore(backend Backend, logger *log.Logger) *Store {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Store{
		creds:   make(map[string]models.Credential),
		backend: backend,
		logger:  logger,
	}
}

// Get returns the credential for userID or a [shared.NotLinkedError].
func (s *Store) Get(userID string) (models.Credential, error) {
	s.mu.RLock()
	cred, ok := s.creds[userID]
	s.mu.RUnlock()
	if ok {
		return cred, nil
	}

	if s.backend == nil {
		return models.Credential{}, &shared.NotLinkedError{UserID: userID}
	}

	cred, err := s.backend.Get(userID)
	if errors.Is(err, repositories.ErrNotFound) {
		return models.Credential{}, &shared.NotLinkedError{UserID: userID}
	}
	if err != nil {
		return models.Credential{}, fmt.Errorf("failed to load credential: %w", err)
	}

	s.mu.Lock()
	if _, ok := s.creds[userID]; !ok {
		s.creds[userID] = cred
	}
	cred = s.creds[userID]
	s.mu.Unlock()

	return cred, nil
}

// Put stores cred, replacing any previous credential for the same user.
func (s *Store) Put(cred models.Credential) error {
	if err := cred.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.backend != nil {
		if err := s.backend.Save(cred); err != nil {
			return err
		}
	}
	s.creds[cred.UserID] = cred
	return nil
}

// Delete removes the credential for userID. A [shared.NotLinkedError] is returned when there was none.
func (s *Store) Delete(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, cached := s.creds[userID]
	delete(s.creds, userID)

	if s.backend == nil {
		if !cached {
			return &shared.NotLinkedError{UserID: userID}
		}
		return nil
	}

	err := s.backend.Delete(userID)
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		if !cached {
			return &shared.NotLinkedError{UserID: userID}
		}
		s.logger.Warn("credential missing from backend", "user", userID)
		return nil
	case err != nil:
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	return nil
}

// Count reports how many users are linked. With a backend this counts persisted rows, not just cached ones.
func (s *Store) Count() (int, error) {
	if s.backend == nil {
		return s.Len(), nil
	}
	creds, err := s.backend.List()
	if err != nil {
		return 0, fmt.Errorf("failed to count credentials: %w", err)
	}
	return len(creds), nil
}

// Len reports how many credentials are cached in memory.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.creds)
}
