package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/chordwise/seville/internal/config"
	"github.com/chordwise/seville/internal/storage"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := storage.Open(t.TempDir(), logger)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{
		Port:        0,
		Precision:   0.25,
		CORSOrigins: []string{"*"},
	}
	return NewServer(cfg, logger, db)
}

// chordMIDI renders four beats of C major as SMF bytes.
func chordMIDI(t *testing.T) []byte {
	t.Helper()

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(480)

	var tr smf.Track
	tr.Add(0, smf.MetaTempo(120))
	tr.Add(0, smf.MetaMeter(4, 4))
	for _, key := range []uint8{60, 64, 67} {
		tr.Add(0, midi.NoteOn(0, key, 90))
	}
	tr.Add(4*480, midi.NoteOff(0, 60))
	tr.Add(0, midi.NoteOff(0, 64))
	tr.Add(0, midi.NoteOff(0, 67))
	tr.Close(0)
	s.Add(tr)

	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		t.Fatalf("write smf: %v", err)
	}
	return buf.Bytes()
}

func multipartBody(t *testing.T, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write part: %v", err)
	}
	w.Close()
	return body, w.FormDataContentType()
}

func TestHealthEndpoint(t *testing.T) {
	s := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("status = %q, want ok", resp["status"])
	}
}

func TestCatalogEndpoint(t *testing.T) {
	s := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/catalog", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		Count     int                `json:"count"`
		Templates []TemplateResponse `json:"templates"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 517 {
		t.Errorf("count = %d, want 517", resp.Count)
	}
	if resp.Templates[0].Name != "C:maj" {
		t.Errorf("first template = %q, want C:maj", resp.Templates[0].Name)
	}
	if last := resp.Templates[len(resp.Templates)-1]; last.Name != "N" {
		t.Errorf("last template = %q, want N", last.Name)
	}
}

func TestRecognizeUploadAndCache(t *testing.T) {
	s := testServer(t)
	data := chordMIDI(t)

	body, contentType := multipartBody(t, "cmaj.mid", data)
	req := httptest.NewRequest(http.MethodPost, "/api/recognize", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp RecognizeResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Cached {
		t.Error("first request reported as cached")
	}
	if resp.ContentHash == "" {
		t.Error("missing content hash")
	}
	if len(resp.Spans) == 0 || resp.Spans[0].Name != "C:maj" {
		t.Errorf("spans = %v, want leading C:maj", resp.Spans)
	}

	// Second upload of identical bytes is served from the cache.
	body, contentType = multipartBody(t, "cmaj.mid", data)
	req = httptest.NewRequest(http.MethodPost, "/api/recognize", body)
	req.Header.Set("Content-Type", contentType)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("cached status = %d", rec.Code)
	}
	var cached RecognizeResponse
	if err := json.NewDecoder(rec.Body).Decode(&cached); err != nil {
		t.Fatalf("decode cached: %v", err)
	}
	if !cached.Cached {
		t.Error("second request not served from cache")
	}
	if cached.ContentHash != resp.ContentHash {
		t.Error("content hash changed between requests")
	}

	// And shows up in the analysis listing.
	req = httptest.NewRequest(http.MethodGet, "/api/analyses", nil)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var list struct {
		Analyses []map[string]any `json:"analyses"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Analyses) != 1 {
		t.Fatalf("got %d analyses, want 1", len(list.Analyses))
	}

	// Direct lookup by hash.
	req = httptest.NewRequest(http.MethodGet, "/api/analyses/"+resp.ContentHash, nil)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
}

func TestRecognizeRejectsGarbage(t *testing.T) {
	s := testServer(t)

	body, contentType := multipartBody(t, "junk.mid", []byte("not midi"))
	req := httptest.NewRequest(http.MethodPost, "/api/recognize", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestRecognizeRejectsBadPrecision(t *testing.T) {
	s := testServer(t)

	body, contentType := multipartBody(t, "cmaj.mid", chordMIDI(t))
	req := httptest.NewRequest(http.MethodPost, "/api/recognize?precision=0.3", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestAnalysisNotFound(t *testing.T) {
	s := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/analyses/deadbeef", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestRecognizeEmptyBody(t *testing.T) {
	s := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/recognize", bytes.NewReader(nil))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
