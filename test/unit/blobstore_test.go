package unit

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/lanchat/lanchat/internal/server"
	"github.com/lanchat/lanchat/test/testhelpers"
)

func newBlobRouter(store *server.BlobStore) chi.Router {
	r := chi.NewRouter()
	r.Post("/upload", store.UploadHandler)
	r.Get("/files/{storageID}", store.ServeHandler)
	return r
}

func multipartBody(t *testing.T, fieldName, fileName string, data []byte) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(fieldName, fileName)
	if err != nil {
		t.Fatalf("Failed to create form file: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("Failed to write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Failed to close multipart writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

// TestBlobStoreRoundTrip verifies that stored payloads come back intact
// under their storage id.
func TestBlobStoreRoundTrip(t *testing.T) {
	store := server.NewBlobStore(0)
	payload := []byte("hello blob")

	id, err := store.Store(payload, "text/plain")
	if err != nil {
		t.Fatalf("Store returned error: %v", err)
	}

	data, contentType, ok := store.Open(id)
	if !ok {
		t.Fatal("Open did not find the stored blob")
	}
	if !bytes.Equal(data, payload) {
		t.Errorf("Expected payload %q, got %q", payload, data)
	}
	if contentType != "text/plain" {
		t.Errorf("Expected content type text/plain, got %q", contentType)
	}
}

// TestBlobStoreRejectsEmptyPayload verifies the empty-payload error.
func TestBlobStoreRejectsEmptyPayload(t *testing.T) {
	store := server.NewBlobStore(0)

	if _, err := store.Store(nil, ""); !errors.Is(err, server.ErrEmptyPayload) {
		t.Errorf("Expected ErrEmptyPayload, got %v", err)
	}
}

// TestBlobStoreRejectsOversizedPayload verifies the size cap.
func TestBlobStoreRejectsOversizedPayload(t *testing.T) {
	store := server.NewBlobStore(8)

	if _, err := store.Store(bytes.Repeat([]byte("x"), 9), ""); !errors.Is(err, server.ErrPayloadTooLarge) {
		t.Errorf("Expected ErrPayloadTooLarge, got %v", err)
	}
}

// TestUploadHandlerRoundTrip verifies a multipart upload followed by a
// retrieval of the stored bytes through the returned URL.
func TestUploadHandlerRoundTrip(t *testing.T) {
	store := server.NewBlobStore(0)
	ts := testhelpers.CreateTestServer(newBlobRouter(store))
	defer ts.Close()

	payload := []byte("file contents")
	body, contentType := multipartBody(t, "file", "notes.txt", payload)

	resp, err := http.Post(ts.URL+"/upload", contentType, body)
	if err != nil {
		t.Fatalf("Upload request failed: %v", err)
	}
	defer resp.Body.Close()
	testhelpers.AssertStatusCode(t, resp, http.StatusOK)

	var result server.UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode upload response: %v", err)
	}
	if result.OriginalName != "notes.txt" {
		t.Errorf("Expected original name notes.txt, got %q", result.OriginalName)
	}
	if result.Size != int64(len(payload)) {
		t.Errorf("Expected size %d, got %d", len(payload), result.Size)
	}
	if result.StorageID == "" || result.URL != "/files/"+result.StorageID {
		t.Errorf("Unexpected storage reference: %+v", result)
	}

	got, err := http.Get(ts.URL + result.URL)
	if err != nil {
		t.Fatalf("Retrieval request failed: %v", err)
	}
	defer got.Body.Close()
	testhelpers.AssertStatusCode(t, got, http.StatusOK)

	served, err := io.ReadAll(got.Body)
	if err != nil {
		t.Fatalf("Failed to read served blob: %v", err)
	}
	if !bytes.Equal(served, payload) {
		t.Errorf("Expected served payload %q, got %q", payload, served)
	}
}

// TestUploadHandlerMissingField verifies the 400 response when the "file"
// field is absent.
func TestUploadHandlerMissingField(t *testing.T) {
	store := server.NewBlobStore(0)
	ts := testhelpers.CreateTestServer(newBlobRouter(store))
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/upload", "application/octet-stream", bytes.NewBufferString("raw"))
	if err != nil {
		t.Fatalf("Upload request failed: %v", err)
	}
	defer resp.Body.Close()
	testhelpers.AssertStatusCode(t, resp, http.StatusBadRequest)
}

// TestUploadHandlerOversizedPayload verifies the 413 response for payloads
// above the configured cap.
func TestUploadHandlerOversizedPayload(t *testing.T) {
	store := server.NewBlobStore(64)
	ts := testhelpers.CreateTestServer(newBlobRouter(store))
	defer ts.Close()

	body, contentType := multipartBody(t, "file", "big.bin", bytes.Repeat([]byte("x"), 4096))

	resp, err := http.Post(ts.URL+"/upload", contentType, body)
	if err != nil {
		t.Fatalf("Upload request failed: %v", err)
	}
	defer resp.Body.Close()
	testhelpers.AssertStatusCode(t, resp, http.StatusRequestEntityTooLarge)
}

// TestServeHandlerUnknownID verifies the 404 response for ids that were
// never stored.
func TestServeHandlerUnknownID(t *testing.T) {
	store := server.NewBlobStore(0)
	ts := testhelpers.CreateTestServer(newBlobRouter(store))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/files/no-such-id")
	if err != nil {
		t.Fatalf("Retrieval request failed: %v", err)
	}
	defer resp.Body.Close()
	testhelpers.AssertStatusCode(t, resp, http.StatusNotFound)
}

// TestServeHandlerDefaultContentType verifies the octet-stream fallback for
// blobs stored without a content type.
func TestServeHandlerDefaultContentType(t *testing.T) {
	store := server.NewBlobStore(0)
	id, err := store.Store([]byte{0x01, 0x02}, "")
	if err != nil {
		t.Fatalf("Store returned error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/files/"+id, nil)
	rr := httptest.NewRecorder()
	newBlobRouter(store).ServeHTTP(rr, req)

	resp := rr.Result()
	defer resp.Body.Close()
	testhelpers.AssertStatusCode(t, resp, http.StatusOK)
	testhelpers.AssertContentType(t, resp, "application/octet-stream")
}
