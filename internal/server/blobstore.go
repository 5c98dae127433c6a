// Package server implements the blob store used for file transfers: clients
// upload a payload over HTTP, thread the returned URL through a file
// message, and receivers fetch the bytes back from that URL.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// DefaultMaxUploadSize caps a single upload at 50 MB.
const DefaultMaxUploadSize = 50 << 20

var (
	// ErrEmptyPayload is returned when an upload carries no bytes.
	ErrEmptyPayload = errors.New("upload payload is empty")
	// ErrPayloadTooLarge is returned when an upload exceeds the
	// configured limit.
	ErrPayloadTooLarge = errors.New("upload payload exceeds the configured limit")
)

type storedBlob struct {
	data        []byte
	contentType string
}

// BlobStore holds uploaded payloads in memory and serves them back by
// storage id. Reads are unauthenticated; history persistence is out of
// scope, so blobs live only for the process lifetime.
type BlobStore struct {
	mu       sync.RWMutex
	blobs    map[string]storedBlob
	maxBytes int64
}

// NewBlobStore creates a blob store with the given upload cap.
// Non-positive caps fall back to DefaultMaxUploadSize.
func NewBlobStore(maxBytes int64) *BlobStore {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadSize
	}
	return &BlobStore{
		blobs:    make(map[string]storedBlob),
		maxBytes: maxBytes,
	}
}

// Store saves the payload and returns its storage id. Missing or oversized
// payloads are rejected.
func (s *BlobStore) Store(data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyPayload
	}
	if int64(len(data)) > s.maxBytes {
		return "", ErrPayloadTooLarge
	}

	id := uuid.NewString()
	s.mu.Lock()
	s.blobs[id] = storedBlob{data: data, contentType: contentType}
	s.mu.Unlock()
	return id, nil
}

// Open returns the stored payload and its content type.
func (s *BlobStore) Open(id string) ([]byte, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	blob, ok := s.blobs[id]
	if !ok {
		return nil, "", false
	}
	return blob.data, blob.contentType, true
}

// UploadResult is the JSON response body for a successful upload.
type UploadResult struct {
	StorageID    string `json:"storageId"`
	OriginalName string `json:"originalName"`
	Size         int64  `json:"size"`
	URL          string `json:"url"`
}

// UploadHandler accepts a multipart upload in the "file" field and responds
// with the storage id and retrieval URL. Unlike the fire-and-forget
// broadcast path, failures here are reported to the caller: a missing field
// yields 400 and an oversized payload 413.
func (s *BlobStore) UploadHandler(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > s.maxBytes {
		http.Error(w, "Payload exceeds the upload limit", http.StatusRequestEntityTooLarge)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			http.Error(w, "Payload exceeds the upload limit", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Upload requires a \"file\" form field", http.StatusBadRequest)
		return
	}
	defer func() {
		if err := file.Close(); err != nil {
			log.Printf("Error closing upload stream: %v", err)
		}
	}()

	data, err := io.ReadAll(file)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			http.Error(w, "Payload exceeds the upload limit", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Failed to read upload payload", http.StatusBadRequest)
		return
	}

	id, err := s.Store(data, header.Header.Get("Content-Type"))
	if err != nil {
		switch {
		case errors.Is(err, ErrEmptyPayload):
			http.Error(w, "Upload payload is empty", http.StatusBadRequest)
		case errors.Is(err, ErrPayloadTooLarge):
			http.Error(w, "Payload exceeds the upload limit", http.StatusRequestEntityTooLarge)
		default:
			http.Error(w, "Upload failed", http.StatusInternalServerError)
		}
		return
	}

	log.Printf("Stored upload %s (%q, %d bytes)", id, header.Filename, len(data))

	result := UploadResult{
		StorageID:    id,
		OriginalName: header.Filename,
		Size:         int64(len(data)),
		URL:          "/files/" + id,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		log.Printf("Error writing upload response: %v", err)
	}
}

// ServeHandler returns previously stored bytes by storage id.
func (s *BlobStore) ServeHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "storageID")

	data, contentType, ok := s.Open(id)
	if !ok {
		http.NotFound(w, r)
		return
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	if _, err := w.Write(data); err != nil {
		log.Printf("Error serving blob %s: %v", id, err)
	}
}
