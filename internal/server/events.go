// Package server defines the wire protocol shared by clients and the hub:
// the JSON envelope framing, the event names, and the canonical event record
// stored in the history cache.
package server

import (
	"encoding/json"
	"fmt"
	"time"
)

// Client -> server event names.
const (
	EventJoin   = "join"
	EventChat   = "chat message"
	EventImage  = "image message"
	EventFile   = "file message"
	EventVoice  = "voice message"
	EventTyping = "typing"
)

// Server -> client event names. Content events are echoed back under the
// same name the client sent them with.
const (
	EventHistory    = "message history"
	EventUserList   = "user list"
	EventUserJoined = "user joined"
	EventUserLeft   = "user left"
	EventUserTyping = "user typing"
)

// Event record kinds.
const (
	KindSystem = "system"
	KindChat   = "chat"
	KindImage  = "image"
	KindFile   = "file"
	KindVoice  = "voice"
)

// Envelope frames every message on the wire in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Event is the canonical record appended to the history cache and fanned out
// to clients. The Kind field discriminates the variant; unused fields are
// omitted from the encoding. Timestamp is server-assigned, Unix milliseconds.
type Event struct {
	Kind      string `json:"kind"`
	Timestamp int64  `json:"timestamp"`
	Username  string `json:"username,omitempty"`
	Text      string `json:"text,omitempty"`
	UserCount int    `json:"userCount,omitempty"`

	ImageData string `json:"imageData,omitempty"`

	Filename     string `json:"filename,omitempty"`
	OriginalName string `json:"originalName,omitempty"`
	Size         int64  `json:"size,omitempty"`
	URL          string `json:"url,omitempty"`

	AudioData string `json:"audioData,omitempty"`
	Duration  int64  `json:"duration,omitempty"`
}

// JoinRequest is the payload of a join event.
type JoinRequest struct {
	Username string `json:"username"`
}

// ChatRequest is the payload of a chat message event.
type ChatRequest struct {
	Text string `json:"text"`
}

// ImageRequest is the payload of an image message event. ImageData carries
// the encoded image as the client submitted it.
type ImageRequest struct {
	ImageData string `json:"imageData"`
}

// FileRequest is the payload of a file message event. URL references a blob
// previously stored through the upload endpoint.
type FileRequest struct {
	Filename     string `json:"filename"`
	OriginalName string `json:"originalName"`
	Size         int64  `json:"size"`
	URL          string `json:"url"`
}

// VoiceRequest is the payload of a voice message event.
type VoiceRequest struct {
	AudioData string `json:"audioData"`
	Duration  int64  `json:"duration"`
}

// TypingRequest is the payload of a typing event.
type TypingRequest struct {
	IsTyping bool `json:"isTyping"`
}

// TypingNotice is the user typing payload relayed to everyone but the sender.
type TypingNotice struct {
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
}

// marshalEnvelope encodes data and wraps it in an envelope for the wire.
func marshalEnvelope(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

// contentEvent builds the history record for a content submission. The
// payload is decoded but not validated beyond that; absent fields are carried
// through as-is.
func contentEvent(env Envelope, username string) (Event, error) {
	event := Event{Username: username, Timestamp: time.Now().UnixMilli()}

	switch env.Event {
	case EventChat:
		var req ChatRequest
		if err := json.Unmarshal(env.Data, &req); err != nil {
			return Event{}, err
		}
		event.Kind = KindChat
		event.Text = req.Text
	case EventImage:
		var req ImageRequest
		if err := json.Unmarshal(env.Data, &req); err != nil {
			return Event{}, err
		}
		event.Kind = KindImage
		event.ImageData = req.ImageData
	case EventFile:
		var req FileRequest
		if err := json.Unmarshal(env.Data, &req); err != nil {
			return Event{}, err
		}
		event.Kind = KindFile
		event.Filename = req.Filename
		event.OriginalName = req.OriginalName
		event.Size = req.Size
		event.URL = req.URL
	case EventVoice:
		var req VoiceRequest
		if err := json.Unmarshal(env.Data, &req); err != nil {
			return Event{}, err
		}
		event.Kind = KindVoice
		event.AudioData = req.AudioData
		event.Duration = req.Duration
	default:
		return Event{}, fmt.Errorf("not a content event: %q", env.Event)
	}

	return event, nil
}
