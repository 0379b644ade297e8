package documents

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"medscan-backend/internal/shared/storage/object/local"
)

func newUploadRouter(t *testing.T) (*gin.Engine, *local.Store, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()
	store := local.New(dir, "http://localhost:8080")
	router := gin.New()
	NewHandler(&Service{Store: store}).RegisterRoutes(router.Group("/api/v1"))
	return router, store, dir
}

func multipartBody(t *testing.T, fieldName, fileName string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(fieldName, fileName)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func TestUploadStoresFileAndReturnsBlobName(t *testing.T) {
	router, store, _ := newUploadRouter(t)

	content := []byte("%PDF-1.4 fake prescription")
	body, contentType := multipartBody(t, "file", "prescription.pdf", content)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		Message  string `json:"message"`
		BlobName string `json:"blob_name"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.BlobName == "" {
		t.Fatalf("expected blob_name in response, got %s", w.Body.String())
	}
	if !strings.HasSuffix(resp.BlobName, "_prescription.pdf") {
		t.Fatalf("blob name %q should carry the sanitized file name", resp.BlobName)
	}

	rc, err := store.Open(context.Background(), resp.BlobName)
	if err != nil {
		t.Fatalf("Open stored blob: %v", err)
	}
	defer rc.Close()
	stored, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read stored blob: %v", err)
	}
	if !bytes.Equal(stored, content) {
		t.Fatalf("stored content differs from upload")
	}
}

func TestUploadDistinctBlobNamesForSameFileName(t *testing.T) {
	router, _, _ := newUploadRouter(t)

	names := map[string]bool{}
	for i := 0; i < 2; i++ {
		body, contentType := multipartBody(t, "file", "scan.png", []byte("image bytes"))
		req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", body)
		req.Header.Set("Content-Type", contentType)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusCreated {
			t.Fatalf("status = %d", w.Code)
		}
		var resp struct {
			BlobName string `json:"blob_name"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		names[resp.BlobName] = true
	}
	if len(names) != 2 {
		t.Fatalf("expected unique blob names, got %v", names)
	}
}

func TestUploadRejectsMissingFile(t *testing.T) {
	router, _, _ := newUploadRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", strings.NewReader(""))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestUploadRejectsEmptyFile(t *testing.T) {
	router, _, dir := newUploadRouter(t)

	body, contentType := multipartBody(t, "file", "empty.png", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), "empty") {
		t.Fatalf("expected empty-file message, got %s", w.Body.String())
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("rejected upload must not create a blob, found %d entries", len(entries))
	}
}
