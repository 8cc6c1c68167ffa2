package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legaldoc-backend/embedding"
	"legaldoc-backend/extract"
	"legaldoc-backend/llm"
	"legaldoc-backend/models"
	"legaldoc-backend/service"
	"legaldoc-backend/session"
	"legaldoc-backend/storage"
	"legaldoc-backend/vectorstore"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeAnalysis struct {
	result *models.AnalysisResult
	err    error
	texts  []string
}

func (f *fakeAnalysis) Run(ctx context.Context, text string) (*models.AnalysisResult, error) {
	f.texts = append(f.texts, text)
	return f.result, f.err
}

type fakeChat struct {
	mu   sync.Mutex
	reqs []service.ChatTurnRequest
	err  error
}

func (f *fakeChat) Run(ctx context.Context, req service.ChatTurnRequest) (*models.ChatTurnResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	id := req.SessionID
	if id == "" {
		id = "generated"
	}
	return &models.ChatTurnResult{Response: "answer", SessionID: id, DocumentProcessed: req.Document != nil}, nil
}

type recordingArchive struct {
	keys    []string
	names   []string
	files   map[string]string
	deleted []string
	err     error
}

func (a *recordingArchive) Save(ctx context.Context, key, filename string, data io.Reader) (string, error) {
	a.keys = append(a.keys, key)
	a.names = append(a.names, filename)
	if a.err != nil {
		return "", a.err
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	if a.files == nil {
		a.files = make(map[string]string)
	}
	p := "archived/" + filename
	a.files[p] = string(b)
	return p, nil
}

func (a *recordingArchive) Open(ctx context.Context, archivePath string) (io.ReadCloser, error) {
	content, ok := a.files[archivePath]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(strings.NewReader(content)), nil
}

func (a *recordingArchive) Delete(ctx context.Context, archivePath string) error {
	a.deleted = append(a.deleted, archivePath)
	delete(a.files, archivePath)
	return nil
}

type testServer struct {
	router   *gin.Engine
	analysis *fakeAnalysis
	chat     *fakeChat
	registry *session.Registry
	archive  *recordingArchive
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		analysis: &fakeAnalysis{},
		chat:     &fakeChat{},
		registry: session.NewRegistry(func() *vectorstore.Store {
			return vectorstore.NewStore(embedding.NewHashingEmbedder(64))
		}),
		archive: &recordingArchive{},
	}
	ts.router = NewRouter(RouterConfig{
		Info:           AppInfo{Name: "Legal Document Analyzer", Version: "1.0.0"},
		Extractor:      extract.New(extract.WithMaxBytes(1024)),
		Analysis:       ts.analysis,
		Chat:           ts.chat,
		Sessions:       ts.registry,
		Archive:        ts.archive,
		MaxUploadBytes: 1024,
		RequestTimeout: time.Minute,
	})
	return ts
}

type part struct {
	field, filename, content string
}

func multipartRequest(t *testing.T, target string, parts ...part) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for _, p := range parts {
		if p.filename != "" {
			fw, err := w.CreateFormFile(p.field, p.filename)
			require.NoError(t, err)
			_, err = fw.Write([]byte(p.content))
			require.NoError(t, err)
			continue
		}
		require.NoError(t, w.WriteField(p.field, p.content))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code          string `json:"code"`
		Message       string `json:"message"`
		CorrelationID string `json:"correlation_id"`
	} `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func TestRootAndHealth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/analyze-document")

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "1.0.0", body["version"])
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestCorrelationID_HonorsClientHeader(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "client-req-7")

	rec := ts.do(req)
	assert.Equal(t, "client-req-7", rec.Header().Get(RequestIDHeader))
}

func TestAnalyzeDocument_Accepted(t *testing.T) {
	ts := newTestServer(t)
	ts.analysis.result = &models.AnalysisResult{
		Decision:     models.DecisionAccept,
		DocumentType: models.DocumentTypeNDA,
		Summary:      "An NDA.",
		Clauses:      []models.ClauseFinding{{Title: "Confidentiality", RiskLevel: models.RiskMedium}},
	}

	req := multipartRequest(t, "/analyze-document", part{"file", "nda.txt", "  This Agreement keeps things confidential.  "})
	req.Header.Set(RequestIDHeader, "req-1")
	rec := ts.do(req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	env := decode(t, rec)
	assert.True(t, env.Success)

	var result models.AnalysisResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, models.DecisionAccept, result.Decision)
	assert.Equal(t, models.DocumentTypeNDA, result.DocumentType)
	require.Len(t, result.Clauses, 1)

	assert.Equal(t, []string{"This Agreement keeps things confidential."}, ts.analysis.texts)
	assert.Equal(t, []string{"req-1"}, ts.archive.keys)
}

func TestAnalyzeDocument_Rejected(t *testing.T) {
	ts := newTestServer(t)
	ts.analysis.result = &models.AnalysisResult{Decision: models.DecisionReject, Reason: "This is a recipe."}

	rec := ts.do(multipartRequest(t, "/analyze-document", part{"file", "recipe.txt", "Mix flour."}))

	require.Equal(t, http.StatusOK, rec.Code)
	var result models.AnalysisResult
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &result))
	assert.Equal(t, models.DecisionReject, result.Decision)
	assert.Equal(t, "This is a recipe.", result.Reason)
}

func TestAnalyzeDocument_Errors(t *testing.T) {
	tests := []struct {
		name       string
		parts      []part
		workflow   error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "missing file",
			parts:      []part{{field: "message", content: "hi"}},
			wantStatus: http.StatusBadRequest,
			wantCode:   "BAD_REQUEST",
		},
		{
			name:       "unsupported format",
			parts:      []part{{"file", "photo.png", "png"}},
			wantStatus: http.StatusUnsupportedMediaType,
			wantCode:   "UNSUPPORTED_FORMAT",
		},
		{
			name:       "too large",
			parts:      []part{{"file", "big.txt", strings.Repeat("a", 2048)}},
			wantStatus: http.StatusRequestEntityTooLarge,
			wantCode:   "FILE_TOO_LARGE",
		},
		{
			name:       "blank document",
			parts:      []part{{"file", "blank.txt", "   \n  "}},
			wantStatus: http.StatusBadRequest,
			wantCode:   "EMPTY_DOCUMENT",
		},
		{
			name:  "processing failure",
			parts: []part{{"file", "lease.txt", "Lease Agreement"}},
			workflow: &service.ProcessingFailure{
				Stage:  service.StageAnalyzing,
				Reason: "the language model service returned an error",
				Err:    llm.Fatal(errors.New("boom")),
			},
			wantStatus: http.StatusInternalServerError,
			wantCode:   "PROCESSING_FAILED",
		},
		{
			name:  "processing timeout",
			parts: []part{{"file", "lease.txt", "Lease Agreement"}},
			workflow: &service.ProcessingFailure{
				Stage:  service.StageValidating,
				Reason: "the request timed out",
				Err:    context.DeadlineExceeded,
			},
			wantStatus: http.StatusGatewayTimeout,
			wantCode:   "PROCESSING_TIMEOUT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.analysis.err = tt.workflow

			req := multipartRequest(t, "/analyze-document", tt.parts...)
			req.Header.Set(RequestIDHeader, "req-err")
			rec := ts.do(req)

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			env := decode(t, rec)
			assert.False(t, env.Success)
			assert.Equal(t, tt.wantCode, env.Error.Code)
			assert.NotEmpty(t, env.Error.Message)
			assert.Equal(t, "req-err", env.Error.CorrelationID)
		})
	}
}

func TestChat_MessageOnly(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(multipartRequest(t, "/chat",
		part{field: "message", content: "What is a lien?"},
		part{field: "session_id", content: "string"},
	))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result models.ChatTurnResult
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &result))
	assert.Equal(t, "answer", result.Response)
	assert.Equal(t, "generated", result.SessionID)

	require.Len(t, ts.chat.reqs, 1)
	assert.Empty(t, ts.chat.reqs[0].SessionID)
	assert.Nil(t, ts.chat.reqs[0].Document)
	assert.Equal(t, "What is a lien?", ts.chat.reqs[0].Message)
}

func TestChat_WithDocument(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(multipartRequest(t, "/chat",
		part{field: "session_id", content: "abc"},
		part{"file", "lease.txt", "Residential Lease Agreement"},
	))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, ts.chat.reqs, 1)
	require.NotNil(t, ts.chat.reqs[0].Document)
	assert.Equal(t, "Residential Lease Agreement", *ts.chat.reqs[0].Document)
	assert.Equal(t, "abc", ts.chat.reqs[0].SessionID)
	assert.Equal(t, []string{"lease.txt"}, ts.archive.names)
	assert.Equal(t, "archived/lease.txt", ts.chat.reqs[0].DocumentArchive)
}

func TestChat_ErrorsFromWorkflow(t *testing.T) {
	ts := newTestServer(t)
	ts.chat.err = fmt.Errorf("%w: either a document or a message is required", service.ErrBadRequest)

	rec := ts.do(multipartRequest(t, "/chat", part{field: "message", content: " "}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "BAD_REQUEST", decode(t, rec).Error.Code)
}

func TestChat_UnsupportedFileNeverReachesWorkflow(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(multipartRequest(t, "/chat",
		part{field: "message", content: "hi"},
		part{"file", "slides.pptx", "data"},
	))
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	assert.Empty(t, ts.chat.reqs)
}

func TestSessions_GetAndDelete(t *testing.T) {
	ts := newTestServer(t)

	s, release, err := ts.registry.Acquire(context.Background(), "sess-1")
	require.NoError(t, err)
	s.AppendTurn("What is rent?", "Rent is $1,500.", time.Now())
	release()

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/chat/sessions/sess-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var snap models.SessionSnapshot
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &snap))
	assert.Equal(t, "sess-1", snap.ID)
	assert.Len(t, snap.History, 2)
	assert.False(t, snap.HasDocument)

	rec = ts.do(httptest.NewRequest(http.MethodDelete, "/chat/sessions/sess-1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/chat/sessions/sess-1", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "SESSION_NOT_FOUND", decode(t, rec).Error.Code)

	rec = ts.do(httptest.NewRequest(http.MethodDelete, "/chat/sessions/sess-1", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessions_DocumentDownloadAndCleanup(t *testing.T) {
	ts := newTestServer(t)
	ts.archive.files = map[string]string{
		"archived/old.txt":   "Old lease",
		"archived/lease.txt": "Residential Lease Agreement",
	}

	s, release, err := ts.registry.Acquire(context.Background(), "sess-2")
	require.NoError(t, err)
	s.RecordDocument("archived/old.txt")
	s.RecordDocument("archived/lease.txt")
	release()

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/chat/sessions/sess-2/document", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Residential Lease Agreement", rec.Body.String())
	assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="lease.txt"`)

	rec = ts.do(httptest.NewRequest(http.MethodDelete, "/chat/sessions/sess-2", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.ElementsMatch(t, []string{"archived/old.txt", "archived/lease.txt"}, ts.archive.deleted)
	assert.Empty(t, ts.archive.files)
}

func TestSessions_DocumentNotArchived(t *testing.T) {
	ts := newTestServer(t)

	s, release, err := ts.registry.Acquire(context.Background(), "sess-3")
	require.NoError(t, err)
	s.RecordDocument("archived/lease.txt")
	s.RecordDocument("")
	release()

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/chat/sessions/sess-3/document", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "DOCUMENT_NOT_FOUND", decode(t, rec).Error.Code)

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/chat/sessions/missing/document", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "SESSION_NOT_FOUND", decode(t, rec).Error.Code)
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS(false, []string{"http://localhost:3000"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
