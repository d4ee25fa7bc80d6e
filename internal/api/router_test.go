package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/docrag/internal/config"
	"github.com/nikhilbhutani/docrag/internal/document"
	"github.com/nikhilbhutani/docrag/internal/embedding"
	"github.com/nikhilbhutani/docrag/internal/models"
	"github.com/nikhilbhutani/docrag/internal/rag"
	"github.com/nikhilbhutani/docrag/internal/session"
	"github.com/nikhilbhutani/docrag/pkg/chunker"
)

const revenueText = "SUMMARY\nRevenue grew 12% in Q3, driven by cloud segment. Operating costs were flat."

type fakeCompleter struct {
	response string
	calls    int
}

func (f *fakeCompleter) Complete(_ context.Context, _ string) (string, error) {
	f.calls++
	return f.response, nil
}

type testServer struct {
	handler   http.Handler
	sessions  *session.Registry
	completer *fakeCompleter
}

func newTestServer(t *testing.T, mutate func(*config.Config)) *testServer {
	t.Helper()
	cfg := config.Default()
	cfg.Server.RateLimit = 0
	if mutate != nil {
		mutate(cfg)
	}

	ch, err := chunker.New(cfg.RAG.ChunkOptions())
	require.NoError(t, err)
	c := &fakeCompleter{response: "Answer: Growth came from the cloud segment.\n" +
		"Source: Page 1 / Section SUMMARY\n" +
		"Quote: \"driven by cloud segment\"\n" +
		"Confidence: 88%"}
	p := rag.NewPipeline(
		rag.NewRetriever(ch, embedding.NewHashEmbedder(embedding.DefaultHashDimension), cfg.RAG.TopK),
		rag.NewGenerator(c),
	)
	reg := session.NewRegistry(cfg.Server.MaxSessions)

	return &testServer{
		handler:   NewRouter(cfg, nil, reg, p, document.NewTextExtractor()).Setup(),
		sessions:  reg,
		completer: c,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) createSession(t *testing.T, header http.Header) rag.SessionStats {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/v1/sessions", map[string]any{
		"name":  "q3.txt",
		"pages": []models.Page{{Number: 1, Section: "SUMMARY", Text: revenueText}},
	}, header)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var stats rag.SessionStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	return stats
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/readyz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"sessions":0`)
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestServer(t, nil)
	stats := s.createSession(t, nil)

	assert.Equal(t, "q3.txt", stats.Document.Name)
	assert.Equal(t, 1, stats.Document.Pages)
	assert.Equal(t, 1, stats.Document.Chunks)
	assert.Equal(t, models.DocStatusReady, stats.Document.Status)
	assert.Equal(t, 5, stats.TopK)

	base := "/api/v1/sessions/" + stats.SessionID

	rec := s.do(t, http.MethodGet, base, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, base+"/query", map[string]any{"query": "What drove revenue growth?"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp rag.QueryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Page 1 / Section SUMMARY", resp.Answer.Source)
	require.NotNil(t, resp.Answer.Quote)
	assert.Equal(t, "driven by cloud segment", *resp.Answer.Quote)
	assert.Equal(t, 88, resp.Answer.Confidence)
	require.Len(t, resp.Retrieved, 1)
	assert.Contains(t, resp.Formatted, "Confidence: 88%")

	rec = s.do(t, http.MethodPost, base+"/search", map[string]any{"query": "cloud segment", "top_k": 3}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)

	rec = s.do(t, http.MethodGet, "/api/v1/sessions", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)

	rec = s.do(t, http.MethodDelete, base, nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, base, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 0, s.sessions.Len())
}

func TestReplaceDocument(t *testing.T) {
	s := newTestServer(t, nil)
	stats := s.createSession(t, nil)
	base := "/api/v1/sessions/" + stats.SessionID

	rec := s.do(t, http.MethodPut, base+"/document", map[string]any{
		"name": "notes.txt",
		"pages": []models.Page{
			{Number: 1, Text: "first page"},
			{Number: 2, Text: "second page"},
		},
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var replaced rag.SessionStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &replaced))
	assert.Equal(t, "notes.txt", replaced.Document.Name)
	assert.Equal(t, 2, replaced.Document.Chunks)
	assert.NotEqual(t, stats.Document.ID, replaced.Document.ID)

	rec = s.do(t, http.MethodPut, base+"/document", map[string]any{"pages": []models.Page{}}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(t, http.MethodGet, base, nil, nil)
	assert.Contains(t, rec.Body.String(), "notes.txt")
}

func TestFailedReplaceKeepsName(t *testing.T) {
	s := newTestServer(t, nil)
	stats := s.createSession(t, nil)
	base := "/api/v1/sessions/" + stats.SessionID

	rec := s.do(t, http.MethodPut, base+"/document", map[string]any{
		"name":  "draft.txt",
		"pages": []models.Page{{Number: 1, Text: " \n\t "}},
	}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(t, http.MethodGet, base, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got rag.SessionStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, stats.Document.Name, got.Document.Name)
	assert.Equal(t, stats.Document.ID, got.Document.ID)
	assert.Equal(t, models.DocStatusReady, got.Document.Status)
}

func TestCreateEmptyDocumentDiscardsSession(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodPost, "/api/v1/sessions", map[string]any{
		"name":  "blank.txt",
		"pages": []models.Page{{Number: 1, Text: "  \n "}},
	}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, 0, s.sessions.Len())
}

func TestMultipartUpload(t *testing.T) {
	s := newTestServer(t, nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "q3.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte(revenueText + "\fOUTLOOK\nGuidance is unchanged."))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var stats rag.SessionStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, "q3.txt", stats.Document.Name)
	assert.Equal(t, 2, stats.Document.Pages)
}

func TestMultipartUnsupportedType(t *testing.T) {
	s := newTestServer(t, nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "sheet.xls")
	require.NoError(t, err)
	fw.Write([]byte("a,b"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	assert.Contains(t, rec.Body.String(), `unsupported file type \".xls\"`)
	assert.Contains(t, rec.Body.String(), ".pdf, .docx, .txt")
	assert.Equal(t, 0, s.sessions.Len())
}

func TestUploadTooLarge(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.Server.MaxUploadBytes = 64 })

	rec := s.do(t, http.MethodPost, "/api/v1/sessions", map[string]any{
		"pages": []models.Page{{Number: 1, Text: strings.Repeat("word ", 100)}},
	}, nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestQueryErrors(t *testing.T) {
	s := newTestServer(t, nil)
	stats := s.createSession(t, nil)
	base := "/api/v1/sessions/" + stats.SessionID

	rec := s.do(t, http.MethodPost, base+"/query", map[string]any{"query": "   "}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, base+"/query", strings.NewReader("{"))
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/sessions/not-a-uuid/query", map[string]any{"query": "q"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/sessions/00000000-0000-0000-0000-000000000001/query", map[string]any{"query": "q"}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, 0, s.completer.calls)
}

func TestSessionLimit(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.Server.MaxSessions = 1 })
	s.createSession(t, nil)

	rec := s.do(t, http.MethodPost, "/api/v1/sessions", map[string]any{
		"pages": []models.Page{{Number: 1, Text: "another"}},
	}, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) {
		c.Server.RateLimit = 0.001
		c.Server.RateBurst = 1
	})

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/healthz", nil, nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, s.do(t, http.MethodGet, "/healthz", nil, nil).Code)
}

func TestJWTAuth(t *testing.T) {
	const secret = "test-secret"
	s := newTestServer(t, func(c *config.Config) { c.Auth.JWTSecret = secret })

	rec := s.do(t, http.MethodGet, "/api/v1/sessions", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)

	header := http.Header{"Authorization": {"Bearer " + signed}}
	s.createSession(t, header)

	rec = s.do(t, http.MethodGet, "/api/v1/sessions", nil, http.Header{"Authorization": {"Bearer garbage"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPIKeyAuth(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.Auth.APIKeys = []string{"k-123"} })

	rec := s.do(t, http.MethodGet, "/api/v1/sessions", nil, http.Header{"X-Api-Key": {"k-123"}})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/sessions", nil, http.Header{"X-Api-Key": {"wrong"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/sessions", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
