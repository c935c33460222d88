package storage

import (
	"encoding/json"
	"fmt"

	"inbox/internal/models"

	"github.com/vmihailenco/msgpack/v5"
)

// HistoryKey is the single fixed key holding the serialized chat history.
const HistoryKey = "chatMessages"

// Cache stores whole values under string keys.
// Load returns models.ErrNotFound for missing keys.
type Cache interface {
	Load(key string) ([]byte, error)
	Save(key string, data []byte) error
	Delete(key string) error
	Close() error
}

type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

type jsonCodec struct{}

func (jsonCodec) Name() string                       { return "json" }
func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

type msgpackCodec struct{}

func (msgpackCodec) Name() string                       { return "msgpack" }
func (msgpackCodec) Marshal(v any) ([]byte, error)      { return msgpack.Marshal(v) }
func (msgpackCodec) Unmarshal(data []byte, v any) error { return msgpack.Unmarshal(data, v) }

var (
	JSON    Codec = jsonCodec{}
	Msgpack Codec = msgpackCodec{}
)

// CodecByName resolves a codec from configuration. Empty means JSON.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", JSON.Name():
		return JSON, nil
	case Msgpack.Name():
		return Msgpack, nil
	}
	return nil, fmt.Errorf("unknown cache codec %q", name)
}

type DBMessage struct {
	Name    string `json:"name" msgpack:"name"`
	Body    string `json:"body" msgpack:"body"`
	IsAdmin bool   `json:"isAdmin,omitempty" msgpack:"isAdmin,omitempty"`
	ID      string `json:"_id,omitempty" msgpack:"_id,omitempty"`
}

// EncodeHistory serializes the full message sequence.
func EncodeHistory(codec Codec, messages []models.ChatMessage) ([]byte, error) {
	dbMessages := make([]DBMessage, len(messages))
	for i, m := range messages {
		dbMessages[i] = DBMessage{
			Name:    m.Name,
			Body:    m.Body,
			IsAdmin: m.IsAdmin,
			ID:      m.ID,
		}
	}
	data, err := codec.Marshal(dbMessages)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal history: %w", err)
	}
	return data, nil
}

func DecodeHistory(codec Codec, data []byte) ([]models.ChatMessage, error) {
	var dbMessages []DBMessage
	if err := codec.Unmarshal(data, &dbMessages); err != nil {
		return nil, fmt.Errorf("failed to unmarshal history: %w", err)
	}
	messages := make([]models.ChatMessage, len(dbMessages))
	for i, m := range dbMessages {
		messages[i] = models.ChatMessage{
			Name:    m.Name,
			Body:    m.Body,
			IsAdmin: m.IsAdmin,
			ID:      m.ID,
		}
	}
	return messages, nil
}
