package gamma

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.Handler) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewHTTPClient(srv.URL, "test-key")
	c.PollInterval = 5 * time.Millisecond
	c.PollTimeout = time.Second
	return c
}

func TestGenerateSendsAPIKey(t *testing.T) {
	var gotKey, gotType string
	var gotReq GenerationRequest
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/generations" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotKey = r.Header.Get("X-API-KEY")
		gotType = r.Header.Get("Content-Type")
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(map[string]string{"generationId": "gen-123"})
	}))

	id, err := c.Generate(context.Background(), &GenerationRequest{
		InputText: "build a deck",
		ThemeID:   "theme-1",
		ExportAs:  "pptx",
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if id != "gen-123" {
		t.Errorf("generation id = %q, want gen-123", id)
	}
	if gotKey != "test-key" {
		t.Errorf("X-API-KEY = %q, want test-key", gotKey)
	}
	if gotType != "application/json" {
		t.Errorf("Content-Type = %q", gotType)
	}
	if gotReq.InputText != "build a deck" || gotReq.ThemeID != "theme-1" {
		t.Errorf("request body = %+v", gotReq)
	}
}

func TestGenerateFromTemplate(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/generations/from-template" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req FromTemplateRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.GammaID != "tpl-1" || req.Prompt != "refresh the numbers" {
			t.Errorf("request body = %+v", req)
		}
		json.NewEncoder(w).Encode(map[string]string{"generationId": "gen-9"})
	}))
	id, err := c.GenerateFromTemplate(context.Background(), &FromTemplateRequest{
		GammaID: "tpl-1",
		Prompt:  "refresh the numbers",
	})
	if err != nil {
		t.Fatalf("GenerateFromTemplate: %v", err)
	}
	if id != "gen-9" {
		t.Errorf("generation id = %q, want gen-9", id)
	}
}

func TestUnauthorizedMapsToAuthError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	_, err := c.Generate(context.Background(), &GenerationRequest{InputText: "x"})
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("error = %v, want AuthError", err)
	}
}

func TestBadRequestCarriesServerMessage(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"message": "numCards out of range"})
	}))
	_, err := c.Generate(context.Background(), &GenerationRequest{InputText: "x"})
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("error = %v, want RequestError", err)
	}
	if reqErr.Message != "numCards out of range" {
		t.Errorf("message = %q", reqErr.Message)
	}
}

func TestWaitForCompletionPollsUntilDone(t *testing.T) {
	var polls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/generations/gen-5" {
			t.Errorf("path = %s", r.URL.Path)
		}
		status := StatusProcessing
		var exportURL string
		if polls.Add(1) >= 3 {
			status = StatusCompleted
			exportURL = "https://files.example/export.pptx"
		}
		json.NewEncoder(w).Encode(GenerationStatus{
			GenerationID: "gen-5",
			Status:       status,
			ExportURL:    exportURL,
		})
	}))

	status, err := c.WaitForCompletion(context.Background(), "gen-5")
	if err != nil {
		t.Fatalf("WaitForCompletion: %v", err)
	}
	if status.Status != StatusCompleted {
		t.Errorf("status = %q", status.Status)
	}
	if status.ExportLocation("pptx") != "https://files.example/export.pptx" {
		t.Errorf("export location = %q", status.ExportLocation("pptx"))
	}
	if got := polls.Load(); got < 3 {
		t.Errorf("polls = %d, want at least 3", got)
	}
}

func TestWaitForCompletionFailure(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(GenerationStatus{GenerationID: "gen-7", Status: StatusFailed})
	}))
	_, err := c.WaitForCompletion(context.Background(), "gen-7")
	var failed *GenerationFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("error = %v, want GenerationFailedError", err)
	}
}

func TestWaitForCompletionTimesOut(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(GenerationStatus{GenerationID: "gen-8", Status: StatusPending})
	}))
	c.PollTimeout = 20 * time.Millisecond

	_, err := c.WaitForCompletion(context.Background(), "gen-8")
	var timeout *PollTimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("error = %v, want PollTimeoutError", err)
	}
	if timeout.LastStatus != StatusPending {
		t.Errorf("last status = %q", timeout.LastStatus)
	}
}

func TestWaitForCompletionHonorsContext(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(GenerationStatus{Status: StatusProcessing})
	}))
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Millisecond)
	defer cancel()
	_, err := c.WaitForCompletion(ctx, "gen-1")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want context deadline", err)
	}
}

func TestDownloadExport(t *testing.T) {
	payload := []byte("PK\x03\x04 pretend deck")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-KEY") != "" {
			t.Error("export download must not carry the API key")
		}
		w.Write(payload)
	}))
	defer srv.Close()

	c := NewHTTPClient("http://unused.example", "secret")
	dest := filepath.Join(t.TempDir(), "nested", "deck.pptx")
	if err := c.DownloadExport(context.Background(), srv.URL+"/export.pptx", dest); err != nil {
		t.Fatalf("DownloadExport: %v", err)
	}
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read download: %v", err)
	}
	if string(got) != string(payload) {
		t.Errorf("downloaded bytes = %q", got)
	}
}

func TestThemesAndFolders(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("limit"); got != "50" {
			t.Errorf("limit = %q, want 50", got)
		}
		switch r.URL.Path {
		case "/themes":
			json.NewEncoder(w).Encode(map[string]any{
				"data":    []ThemeInfo{{ID: "t1", Name: "Chisel", Type: "standard"}, {ID: "t2", Name: "Lux"}},
				"hasMore": false,
			})
		case "/folders":
			json.NewEncoder(w).Encode(map[string]any{
				"data":    []FolderInfo{{ID: "f1", Name: "Proposals"}},
				"hasMore": false,
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	themes, err := c.Themes(context.Background())
	if err != nil {
		t.Fatalf("Themes: %v", err)
	}
	if len(themes) != 2 || themes[0].Name != "Chisel" {
		t.Errorf("themes = %+v", themes)
	}
	folders, err := c.Folders(context.Background())
	if err != nil {
		t.Fatalf("Folders: %v", err)
	}
	if len(folders) != 1 || folders[0].Name != "Proposals" {
		t.Errorf("folders = %+v", folders)
	}
}
