package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cloak/internal/anonymize"
	"cloak/internal/audit"
	"cloak/internal/detect"
)

// wordDetector marks every occurrence of the configured words.
type wordDetector struct {
	labels map[string]string
	err    error
}

func (d *wordDetector) Detect(_ context.Context, text string) ([]detect.Span, error) {
	if d.err != nil {
		return nil, d.err
	}
	var spans []detect.Span
	for word, label := range d.labels {
		for from := 0; ; {
			i := strings.Index(text[from:], word)
			if i < 0 {
				break
			}
			start := from + i
			spans = append(spans, detect.Span{
				Label:      label,
				Start:      start,
				End:        start + len(word),
				Confidence: 0.9,
				Text:       word,
			})
			from = start + len(word)
		}
	}
	return spans, nil
}

func (d *wordDetector) Reentrant() bool { return true }

func newTestServer(t *testing.T, det detect.Detector) (*Server, string) {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), "audit.log")
	auditor, err := audit.NewJSONLLogger(logPath)
	if err != nil {
		t.Fatalf("audit logger: %v", err)
	}
	srv := New("127.0.0.1:0", anonymize.New(det, nil), auditor, nil, Options{
		AuditLogPath: logPath,
	})
	return srv, logPath
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, &wordDetector{})
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/healthz", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestAnonymizeTextQuery(t *testing.T) {
	srv, _ := newTestServer(t, &wordDetector{labels: map[string]string{"Alice": "PERSON"}})
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/anonymize/text?text=Alice+called", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp anonymizeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.RedactedText != "[PERSON] called" {
		t.Fatalf("redacted = %q", resp.RedactedText)
	}
	if resp.RequestID == "" {
		t.Fatal("missing request id")
	}
}

func TestAnonymizePostWithOptions(t *testing.T) {
	srv, _ := newTestServer(t, &wordDetector{labels: map[string]string{"Alice": "PERSON"}})
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/anonymize", anonymizeRequest{
		Text:    "Alice met Alice",
		Options: requestOptions{Strategy: "pseudonym"},
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp anonymizeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.RedactedText != "PERSON_1 met PERSON_1" {
		t.Fatalf("redacted = %q", resp.RedactedText)
	}
	if resp.Stats.TotalEntities != 1 {
		t.Fatalf("distinct entities = %d, want 1", resp.Stats.TotalEntities)
	}
}

func TestAnonymizeRejectsUnknownStrategy(t *testing.T) {
	srv, _ := newTestServer(t, &wordDetector{})
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/anonymize", anonymizeRequest{
		Text:    "whatever",
		Options: requestOptions{Strategy: "rot13"},
	}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestAnonymizeDetectorUnavailable(t *testing.T) {
	srv, _ := newTestServer(t, &wordDetector{err: detect.ErrInferenceUnavailable})
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/anonymize", anonymizeRequest{Text: "Alice"}, nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestAnonymizeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.txt")
	if err := os.WriteFile(path, []byte("Alice wrote this"), 0o644); err != nil {
		t.Fatal(err)
	}
	srv, _ := newTestServer(t, &wordDetector{labels: map[string]string{"Alice": "PERSON"}})
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/anonymize/file", anonymizeFileRequest{Path: path}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp anonymizeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.RedactedText != "[PERSON] wrote this" {
		t.Fatalf("redacted = %q", resp.RedactedText)
	}
}

func TestAnonymizeFileUnsupportedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.bin")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	srv, _ := newTestServer(t, &wordDetector{})
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/anonymize/file", anonymizeFileRequest{Path: path}, nil)
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("status = %d, want 415", rec.Code)
	}
}

func TestDeanonymizeRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t, &wordDetector{labels: map[string]string{"Alice": "PERSON"}})
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPost, "/anonymize", anonymizeRequest{
		Text:    "Alice called Alice",
		Options: requestOptions{Strategy: "pseudonym"},
	}, nil)
	var anon anonymizeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &anon); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rec = doJSON(t, h, http.MethodPost, "/deanonymize", deanonymizeRequest{
		RedactedText: anon.RedactedText,
		Applied:      anon.Applied,
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var restored map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &restored); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if restored["text"] != "Alice called Alice" {
		t.Fatalf("restored = %q", restored["text"])
	}
}

func TestSessionHeaderKeepsReplacementsConsistent(t *testing.T) {
	srv, _ := newTestServer(t, &wordDetector{labels: map[string]string{"Alice": "PERSON", "Bob": "PERSON"}})
	h := srv.Handler()
	header := map[string]string{"X-Session-ID": "sess-1"}

	rec := doJSON(t, h, http.MethodPost, "/anonymize", anonymizeRequest{
		Text:    "Alice here",
		Options: requestOptions{Strategy: "pseudonym"},
	}, header)
	var first anonymizeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &first); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rec = doJSON(t, h, http.MethodPost, "/anonymize", anonymizeRequest{
		Text:    "Bob then Alice",
		Options: requestOptions{Strategy: "pseudonym"},
	}, header)
	var second anonymizeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &second); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if first.RedactedText != "PERSON_1 here" {
		t.Fatalf("first = %q", first.RedactedText)
	}
	// Alice keeps PERSON_1 from the earlier call in the same session.
	if second.RedactedText != "PERSON_2 then PERSON_1" {
		t.Fatalf("second = %q", second.RedactedText)
	}
	if second.SessionID != "sess-1" {
		t.Fatalf("session id = %q", second.SessionID)
	}
}

func TestSessionHeaderNewMintsID(t *testing.T) {
	srv, _ := newTestServer(t, &wordDetector{labels: map[string]string{"Alice": "PERSON"}})
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/anonymize", anonymizeRequest{Text: "Alice"},
		map[string]string{"X-Session-ID": "new"})
	var resp anonymizeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.SessionID == "" || resp.SessionID == "new" {
		t.Fatalf("session id = %q, want server-minted", resp.SessionID)
	}
}

func TestStatsReflectsAuditedRequests(t *testing.T) {
	srv, _ := newTestServer(t, &wordDetector{labels: map[string]string{"Alice": "PERSON"}})
	h := srv.Handler()

	doJSON(t, h, http.MethodGet, "/anonymize/text?text=Alice", nil, nil)
	doJSON(t, h, http.MethodGet, "/anonymize/text?text=Alice+again", nil, nil)

	rec := doJSON(t, h, http.MethodGet, "/stats", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var st struct {
		Requests struct {
			Total  int `json:"total"`
			Failed int `json:"failed"`
		} `json:"requests"`
		Entities struct {
			Total int `json:"total"`
		} `json:"entities"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.Requests.Total != 2 || st.Requests.Failed != 0 {
		t.Fatalf("requests = %+v", st.Requests)
	}
	if st.Entities.Total != 2 {
		t.Fatalf("entities = %d, want 2", st.Entities.Total)
	}
}
