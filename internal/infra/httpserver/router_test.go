package httpserver

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appanalyses "github.com/bryanwahyu/mediatrust/internal/application/analyses"
	domain "github.com/bryanwahyu/mediatrust/internal/domain/analyses"
	"github.com/bryanwahyu/mediatrust/internal/infra/archive"
	"github.com/bryanwahyu/mediatrust/internal/infra/archive/memory"
	"github.com/bryanwahyu/mediatrust/internal/infra/detectors"
	"github.com/bryanwahyu/mediatrust/internal/middleware"
)

var mp4Header = []byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'm', 'p', '4', '2', 0, 0, 0, 0, 'i', 's', 'o', 'm', 'm', 'p', '4', '2'}

type upload struct {
	field       string
	name        string
	contentType string
	body        []byte
	duration    string
}

func multipartBody(t *testing.T, u upload) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if u.field != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+u.field+`"; filename="`+u.name+`"`)
		h.Set("Content-Type", u.contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(u.body)
		require.NoError(t, err)
	}
	if u.duration != "" {
		require.NoError(t, mw.WriteField("duration", u.duration))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func mp4Body(size int) []byte {
	b := make([]byte, size)
	copy(b, mp4Header)
	for i := len(mp4Header); i < size; i++ {
		b[i] = byte(i%251) + 1
	}
	return b
}

type testServer struct {
	handler http.Handler
	arc     *archive.Archive
}

func newTestServer(t *testing.T, set map[domain.Role]domain.Detector, opts Options) *testServer {
	t.Helper()
	arc := archive.New(memory.New(), nil)
	svc := &appanalyses.Service{
		Detectors: set,
		Archive:   arc,
		Rules:     domain.MediaRules{MaxFileSize: opts.MaxFileSize, AllowedTypes: domain.DefaultAllowedTypes},
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Checkers == nil {
		opts.Checkers = map[string]middleware.HealthChecker{"archive": middleware.PingChecker{Target: arc}}
	}
	return &testServer{handler: NewRouter(svc, opts), arc: arc}
}

func demoSet() map[domain.Role]domain.Detector {
	return map[domain.Role]domain.Detector{
		domain.RoleFace:     &detectors.Fixed{ID: "face", Value: 95},
		domain.RoleAudio:    &detectors.Fixed{ID: "audio", Value: 92},
		domain.RoleMetadata: &detectors.Fixed{ID: "metadata", Value: 88},
	}
}

func (s *testServer) do(t *testing.T, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.RemoteAddr = "192.0.2.10:4000"
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) analyze(t *testing.T, u upload) *httptest.ResponseRecorder {
	body, ct := multipartBody(t, u)
	return s.do(t, http.MethodPost, "/api/analyze", body, ct)
}

func (s *testServer) count(t *testing.T) int {
	list, err := s.arc.List(t.Context())
	require.NoError(t, err)
	return len(list)
}

func TestAnalyze_DemoUpload(t *testing.T) {
	srv := newTestServer(t, demoSet(), Options{})

	rec := srv.analyze(t, upload{field: "file", name: "demo.mp4", contentType: "video/mp4", body: mp4Body(4096), duration: "00:42"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.EqualValues(t, 1, got["id"])
	assert.Equal(t, "demo.mp4", got["fileName"])
	assert.Equal(t, "video/mp4", got["fileType"])
	assert.EqualValues(t, 4096, got["fileSize"])
	assert.Equal(t, "00:42", got["duration"])
	assert.EqualValues(t, 95, got["faceScore"])
	assert.EqualValues(t, 92, got["audioScore"])
	assert.EqualValues(t, 88, got["metadataScore"])
	assert.EqualValues(t, 92, got["overallScore"])
	assert.Equal(t, "Verified Content", got["verdict"])
	assert.Equal(t, domain.ExplanationVerified, got["explanation"])
	assert.NotEmpty(t, got["createdAt"])
	assert.NotContains(t, got, "mediaUrl")

	rec = srv.do(t, http.MethodGet, "/api/analyses", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []domain.Analysis
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, domain.ID(1), list[0].ID)

	rec = srv.do(t, http.MethodGet, "/api/analyses/1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var one domain.Analysis
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &one))
	assert.Equal(t, list[0], one)
}

func TestAnalyze_NoFile(t *testing.T) {
	srv := newTestServer(t, demoSet(), Options{})

	rec := srv.analyze(t, upload{duration: "00:10"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"message":"No file uploaded","field":"file"}`, rec.Body.String())

	rec = srv.do(t, http.MethodPost, "/api/analyze", bytes.NewBufferString(`{"file":"x"}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.analyze(t, upload{field: "upload", name: "demo.mp4", contentType: "video/mp4", body: mp4Body(100)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Zero(t, srv.count(t))
	rec = srv.do(t, http.MethodGet, "/api/analyses", nil, "")
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestAnalyze_RejectsInvalidMedia(t *testing.T) {
	srv := newTestServer(t, demoSet(), Options{MaxFileSize: 2048})

	tests := []struct {
		name  string
		up    upload
		field string
	}{
		{"empty file", upload{field: "file", name: "a.mp4", contentType: "video/mp4"}, "file"},
		{"too large", upload{field: "file", name: "a.mp4", contentType: "video/mp4", body: mp4Body(4096)}, "file"},
		{"document", upload{field: "file", name: "a.pdf", contentType: "application/pdf", body: []byte("%PDF-1.4 ...")}, "fileType"},
		{"text as video", upload{field: "file", name: "a.mp4", contentType: "video/mp4", body: []byte("just some plain text here")}, "file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := srv.analyze(t, tt.up)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			var body errorBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.field, body.Field)
			assert.NotEmpty(t, body.Message)
		})
	}
	assert.Zero(t, srv.count(t))
}

func TestAnalyze_OversizeBodyIsRejected(t *testing.T) {
	srv := newTestServer(t, demoSet(), Options{MaxFileSize: 1024})

	rec := srv.analyze(t, upload{field: "file", name: "big.mp4", contentType: "video/mp4", body: mp4Body(multipartSlack + 4096)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, srv.count(t))
}

func TestAnalyze_DetectorFailure(t *testing.T) {
	set := demoSet()
	set[domain.RoleAudio] = &detectors.Fixed{ID: "audio", Err: errors.New("model offline")}
	srv := newTestServer(t, set, Options{})

	rec := srv.analyze(t, upload{field: "file", name: "demo.mp4", contentType: "video/mp4", body: mp4Body(512)})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"message":"Failed to analyze file"}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "model offline")
	assert.Zero(t, srv.count(t))
}

func TestAnalyze_CorruptContainerIsBadRequest(t *testing.T) {
	set := demoSet()
	set[domain.RoleMetadata] = detectors.Heuristic{}
	srv := newTestServer(t, set, Options{})

	rec := srv.analyze(t, upload{field: "file", name: "blank.mp4", contentType: "video/mp4", body: make([]byte, 1024)})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Zero(t, srv.count(t))
}

func TestGet_NotFound(t *testing.T) {
	srv := newTestServer(t, demoSet(), Options{})

	for _, path := range []string{"/api/analyses/1", "/api/analyses/0", "/api/analyses/-4", "/api/analyses/abc"} {
		rec := srv.do(t, http.MethodGet, path, nil, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.JSONEq(t, `{"message":"Analysis not found"}`, rec.Body.String(), path)
	}
}

func TestRecentAndSummary(t *testing.T) {
	srv := newTestServer(t, demoSet(), Options{})
	for i := 0; i < 3; i++ {
		rec := srv.analyze(t, upload{field: "file", name: "demo.mp4", contentType: "video/mp4", body: mp4Body(256)})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := srv.do(t, http.MethodGet, "/api/analyses/recent?limit=2", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var recent []domain.Analysis
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &recent))
	require.Len(t, recent, 2)
	assert.Equal(t, domain.ID(3), recent[0].ID)

	rec = srv.do(t, http.MethodGet, "/api/summary", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var sum domain.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sum))
	assert.Equal(t, 3, sum.Total)
	assert.Equal(t, 3, sum.ByVerdict[domain.VerdictVerifiedContent])
	assert.Equal(t, 92.0, sum.AverageScore)
}

func TestRateLimitOnAnalyze(t *testing.T) {
	limiter := middleware.NewRateLimiter(1, 1)
	defer limiter.Stop()
	srv := newTestServer(t, demoSet(), Options{RateLimiter: limiter})

	first := srv.analyze(t, upload{field: "file", name: "demo.mp4", contentType: "video/mp4", body: mp4Body(256)})
	assert.Equal(t, http.StatusCreated, first.Code)
	second := srv.analyze(t, upload{field: "file", name: "demo.mp4", contentType: "video/mp4", body: mp4Body(256)})
	assert.Equal(t, http.StatusTooManyRequests, second.Code)

	// reads are not limited
	assert.Equal(t, http.StatusOK, srv.do(t, http.MethodGet, "/api/analyses", nil, "").Code)
	assert.Equal(t, 1, srv.count(t))
}

func TestCustomBasePath(t *testing.T) {
	srv := newTestServer(t, demoSet(), Options{BasePath: "v2/"})
	assert.Equal(t, http.StatusOK, srv.do(t, http.MethodGet, "/v2/analyses", nil, "").Code)
	assert.Equal(t, http.StatusNotFound, srv.do(t, http.MethodGet, "/api/analyses", nil, "").Code)
}

func TestOperationalEndpoints(t *testing.T) {
	srv := newTestServer(t, demoSet(), Options{})

	assert.Equal(t, http.StatusOK, srv.do(t, http.MethodGet, "/health", nil, "").Code)
	assert.Equal(t, http.StatusOK, srv.do(t, http.MethodGet, "/health/live", nil, "").Code)
	assert.Equal(t, http.StatusOK, srv.do(t, http.MethodGet, "/health/ready", nil, "").Code)

	rec := srv.do(t, http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
