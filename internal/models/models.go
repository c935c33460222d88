package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrUnknownEvent = errors.New("unknown event")
)

// Identity is the local user as announced to the remote party.
// It is never persisted.
type Identity struct {
	ID      string `json:"_id" validate:"required"`
	Name    string `json:"name" validate:"required"`
	IsAdmin bool   `json:"isAdmin"`
}

// ChatMessage represents a chat message as it travels on the wire and
// sits in the local history. Optional fields are kept verbatim.
type ChatMessage struct {
	Name    string `json:"name"`
	Body    string `json:"body"`
	IsAdmin bool   `json:"isAdmin,omitempty"`
	ID      string `json:"_id,omitempty"`
}

// TypingPayload is the payload of typing and stopTyping events.
type TypingPayload struct {
	Name string `json:"name"`
}

type EventName string

const (
	EventLogin      EventName = "login"
	EventMessage    EventName = "message"
	EventTyping     EventName = "typing"
	EventStopTyping EventName = "stopTyping"
)

// Envelope is a single websocket frame.
type Envelope struct {
	Event EventName       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func NewEnvelope(event EventName, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to marshal %s payload: %w", event, err)
	}
	return Envelope{Event: event, Data: data}, nil
}

type InboundKind int

const (
	InboundMessage InboundKind = iota + 1
	InboundTyping
	InboundStopTyping
)

func (k InboundKind) String() string {
	switch k {
	case InboundMessage:
		return "message"
	case InboundTyping:
		return "typing"
	case InboundStopTyping:
		return "stopTyping"
	}
	return "unknown"
}

// Inbound is a decoded event received from the remote party.
// Message is set for InboundMessage, Name for the typing kinds.
type Inbound struct {
	Kind    InboundKind
	Message ChatMessage
	Name    string
}

// DecodeInbound converts a frame into a typed inbound event.
// Login is outbound only and is reported as ErrUnknownEvent like any other
// event the client does not handle.
func DecodeInbound(env Envelope) (Inbound, error) {
	switch env.Event {
	case EventMessage:
		var msg ChatMessage
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			return Inbound{}, fmt.Errorf("failed to decode message: %w", err)
		}
		return Inbound{Kind: InboundMessage, Message: msg}, nil
	case EventTyping, EventStopTyping:
		var p TypingPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return Inbound{}, fmt.Errorf("failed to decode %s: %w", env.Event, err)
		}
		kind := InboundTyping
		if env.Event == EventStopTyping {
			kind = InboundStopTyping
		}
		return Inbound{Kind: kind, Name: p.Name}, nil
	default:
		return Inbound{}, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
}
