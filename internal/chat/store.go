package chat

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"inbox/internal/models"
	"inbox/internal/storage"
)

const (
	SeedName = "Admin"
	SeedBody = "Hello there, Please ask your question."
)

// Store is the ordered, append-only chat history mirrored to a cache.
//
// Every Append overwrites the whole persisted sequence. Two stores sharing a
// cache do not see each other's messages and the last writer wins.
type Store struct {
	cache  storage.Cache
	codec  storage.Codec
	key    string
	logger *slog.Logger

	mux      sync.RWMutex
	messages []models.ChatMessage
}

type StoreConfig struct {
	Cache  storage.Cache
	Codec  storage.Codec
	Key    string
	Logger *slog.Logger
}

func NewStore(config StoreConfig) *Store {
	codec := config.Codec
	if codec == nil {
		codec = storage.JSON
	}
	key := config.Key
	if key == "" {
		key = storage.HistoryKey
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		cache:  config.Cache,
		codec:  codec,
		key:    key,
		logger: logger.With("component", "store"),
	}
}

// Initialize restores the history from the cache. A missing, empty or
// unreadable history is replaced with the greeting.
func (s *Store) Initialize() error {
	s.mux.Lock()
	defer s.mux.Unlock()

	data, err := s.cache.Load(s.key)
	switch {
	case errors.Is(err, models.ErrNotFound):
		s.messages = seed()
		return nil
	case err != nil:
		s.messages = seed()
		return fmt.Errorf("failed to load history: %w", err)
	}

	messages, err := storage.DecodeHistory(s.codec, data)
	if err != nil {
		s.logger.Warn("discarding unreadable history", "error", err)
		s.messages = seed()
		return nil
	}
	if len(messages) == 0 {
		messages = seed()
	}
	s.messages = messages
	return nil
}

// Append adds msg at the end and persists the whole sequence. The message
// stays in memory even when persisting fails.
func (s *Store) Append(msg models.ChatMessage) error {
	s.mux.Lock()
	defer s.mux.Unlock()

	s.messages = append(s.messages, msg)

	data, err := storage.EncodeHistory(s.codec, s.messages)
	if err != nil {
		return err
	}
	if err := s.cache.Save(s.key, data); err != nil {
		return fmt.Errorf("failed to persist history: %w", err)
	}
	return nil
}

// Messages returns a copy of the sequence, oldest first.
func (s *Store) Messages() []models.ChatMessage {
	s.mux.RLock()
	defer s.mux.RUnlock()

	result := make([]models.ChatMessage, len(s.messages))
	copy(result, s.messages)
	return result
}

func (s *Store) Len() int {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return len(s.messages)
}

// Clear drops the persisted history. The in-memory sequence goes back to
// the greeting.
func (s *Store) Clear() error {
	s.mux.Lock()
	defer s.mux.Unlock()

	s.messages = seed()
	if err := s.cache.Delete(s.key); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}

func seed() []models.ChatMessage {
	return []models.ChatMessage{{Name: SeedName, Body: SeedBody}}
}
