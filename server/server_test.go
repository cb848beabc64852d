package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicenote/clipboard"
	"voicenote/editor"
	"voicenote/intake"
	"voicenote/metrics"
	"voicenote/session"
	"voicenote/transcriber"
)

type harness struct {
	srv  *Server
	ctrl *session.Controller
	fake *transcriber.FakeTranscriber
	clip *clipboard.Memory
	dir  string
}

func setupTestServer(t *testing.T, text string, err error) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := &harness{
		fake: transcriber.NewFake(text, err),
		clip: &clipboard.Memory{},
		dir:  t.TempDir(),
	}
	h.ctrl = session.New(context.Background(), nil, h.fake)
	ts := time.Date(2025, 6, 1, 12, 30, 45, 0, time.UTC)
	ed := editor.New(h.clip, editor.WithClock(func() time.Time { return ts }))
	h.ctrl.AddSink(ed)
	h.srv = New(Config{SaveDir: h.dir}, h.ctrl, ed, metrics.New())
	t.Cleanup(h.ctrl.Wait)
	return h
}

func (h *harness) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.srv.Router().ServeHTTP(w, req)
	return w
}

func uploadRequest(t *testing.T, target, name string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	h := setupTestServer(t, "x", nil)
	w := h.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode(t, w)["status"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRequestIDEchoed(t *testing.T) {
	h := setupTestServer(t, "x", nil)
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := h.do(req)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
}

func TestTranscribeAndWait(t *testing.T) {
	h := setupTestServer(t, "**[講者 1]**\n哈囉", nil)

	w := h.do(uploadRequest(t, "/api/transcribe?wait=true", "memo.mp3", []byte("ID3 fake mp3")))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "completed", body["status"])
	assert.Equal(t, "**[講者 1]**\n哈囉", body["transcript"])

	calls := h.fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "audio/mpeg", calls[0].MIMEType)

	w = h.do(httptest.NewRequest(http.MethodGet, "/api/transcript", nil))
	assert.Equal(t, "**[講者 1]**\n哈囉", decode(t, w)["text"])
}

func TestTranscribeRejections(t *testing.T) {
	tests := []struct {
		name       string
		file       string
		data       []byte
		wantStatus int
		wantMsg    string
	}{
		{"unsupported type", "notes.txt", []byte("hello"), http.StatusUnsupportedMediaType, intake.NoticeUnsupported},
		{"too large", "big.wav", make([]byte, intake.MaxSize+1), http.StatusRequestEntityTooLarge, intake.NoticeTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := setupTestServer(t, "x", nil)
			w := h.do(uploadRequest(t, "/api/transcribe", tt.file, tt.data))
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantMsg, decode(t, w)["error"])
			assert.Empty(t, h.fake.Calls())
			assert.Equal(t, session.Idle, h.ctrl.Status())
		})
	}
}

func TestTranscribeMissingField(t *testing.T) {
	h := setupTestServer(t, "x", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/transcribe", strings.NewReader("nothing"))
	req.Header.Set("Content-Type", "text/plain")
	w := h.do(req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTranscribeBusy(t *testing.T) {
	h := setupTestServer(t, "done", nil)
	h.fake.Block = make(chan struct{})

	w := h.do(uploadRequest(t, "/api/transcribe", "a.wav", []byte("RIFF")))
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "processing", decode(t, w)["status"])

	w = h.do(uploadRequest(t, "/api/transcribe", "b.wav", []byte("RIFF")))
	assert.Equal(t, http.StatusConflict, w.Code)

	w = h.do(httptest.NewRequest(http.MethodPost, "/api/reset", nil))
	assert.Equal(t, http.StatusConflict, w.Code)

	close(h.fake.Block)
	h.ctrl.Wait()
	assert.Len(t, h.fake.Calls(), 1)
	assert.Equal(t, session.Completed, h.ctrl.Status())
}

func TestFailureAndReset(t *testing.T) {
	h := setupTestServer(t, "", errors.New("boom"))

	w := h.do(uploadRequest(t, "/api/transcribe?wait=1", "a.m4a", []byte("m4a")))
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, session.MessageFailed, body["error"])

	w = h.do(httptest.NewRequest(http.MethodPost, "/api/reset", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	assert.Equal(t, "idle", body["status"])
	assert.Equal(t, "", body["transcript"])
}

func TestEditTranscriptAndDownload(t *testing.T) {
	h := setupTestServer(t, "x", nil)

	req := httptest.NewRequest(http.MethodPut, "/api/transcript", strings.NewReader(`{"text":"edited 文字"}`))
	req.Header.Set("Content-Type", "application/json")
	w := h.do(req)
	require.Equal(t, http.StatusOK, w.Code)

	w = h.do(httptest.NewRequest(http.MethodGet, "/api/transcript/download", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "edited 文字", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "transcript_2025-06-01-12-30-45.txt")
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
}

func TestPutTranscriptValidation(t *testing.T) {
	h := setupTestServer(t, "x", nil)
	for _, body := range []string{`{}`, `not json`} {
		req := httptest.NewRequest(http.MethodPut, "/api/transcript", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := h.do(req)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestCopyAndSave(t *testing.T) {
	h := setupTestServer(t, "x", nil)
	req := httptest.NewRequest(http.MethodPut, "/api/transcript", strings.NewReader(`{"text":"keep me"}`))
	req.Header.Set("Content-Type", "application/json")
	h.do(req)

	w := h.do(httptest.NewRequest(http.MethodPost, "/api/transcript/copy", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "keep me", h.clip.Text())

	w = h.do(httptest.NewRequest(http.MethodGet, "/api/status", nil))
	assert.Equal(t, true, decode(t, w)["copied"])

	w = h.do(httptest.NewRequest(http.MethodPost, "/api/transcript/save", nil))
	require.Equal(t, http.StatusOK, w.Code)
	path, _ := decode(t, w)["path"].(string)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "keep me", string(data))
}

func TestCopyFailure(t *testing.T) {
	h := setupTestServer(t, "x", nil)
	h.clip.SetErr(errors.New("no clipboard"))
	w := h.do(httptest.NewRequest(http.MethodPost, "/api/transcript/copy", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h := setupTestServer(t, "x", nil)
	h.do(uploadRequest(t, "/api/transcribe?wait=true", "a.ogg", []byte("OggS")))

	w := h.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `voicenote_submissions_total{source="upload"} 1`)
	assert.Contains(t, w.Body.String(), `voicenote_transcriptions_total{status="completed"} 1`)
}
