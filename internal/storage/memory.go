package storage

import (
	"errors"

	"inbox/internal/models"

	"github.com/c-pro/geche"
)

// MemoryCache keeps values in process memory. Nothing survives a restart.
type MemoryCache struct {
	values geche.Geche[string, []byte]
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{values: geche.NewMapCache[string, []byte]()}
}

func (m *MemoryCache) Load(key string) ([]byte, error) {
	v, err := m.values.Get(key)
	if errors.Is(err, geche.ErrNotFound) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryCache) Save(key string, data []byte) error {
	m.values.Set(key, append([]byte(nil), data...))
	return nil
}

func (m *MemoryCache) Delete(key string) error {
	err := m.values.Del(key)
	if errors.Is(err, geche.ErrNotFound) {
		return nil
	}
	return err
}

func (m *MemoryCache) Close() error {
	return nil
}
