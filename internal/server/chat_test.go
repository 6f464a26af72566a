package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mohammad-safakhou/groundchat/internal/pipeline"
	"github.com/mohammad-safakhou/groundchat/internal/ratelimit"
	"github.com/mohammad-safakhou/groundchat/models"
)

type fakeRunner struct {
	resp     pipeline.Response
	err      error
	clientID string
	req      pipeline.Request
	calls    int
}

func (f *fakeRunner) Run(_ context.Context, clientID string, req pipeline.Request) (pipeline.Response, error) {
	f.calls++
	f.clientID = clientID
	f.req = req
	return f.resp, f.err
}

var allowed = ratelimit.Decision{Allowed: true, Limit: 1, Remaining: 0, ResetAfter: 4 * time.Second}

func newTestServer(t *testing.T, runner *fakeRunner) *echo.Echo {
	return New(&ChatHandler{Pipeline: runner, Logger: zaptest.NewLogger(t), Timeout: time.Second},
		Options{Logger: zaptest.NewLogger(t), Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("# metrics"))
		})})
}

func post(e *echo.Echo, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestChatSuccess(t *testing.T) {
	runner := &fakeRunner{resp: pipeline.Response{
		Answer:   models.GroundedAnswer{Response: "It is about tomatoes.", FollowUpQuestions: []string{"When to plant?"}},
		URL:      "https://example.com/garden",
		Decision: allowed,
	}}
	e := newTestServer(t, runner)

	rec := post(e, `{"message":"What is https://example.com/garden about?","history":[{"role":"user","content":"hi"}]}`,
		map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	assert.Equal(t, "https://example.com/garden", body["url"])
	msg := body["message"].(map[string]interface{})
	assert.Equal(t, "It is about tomatoes.", msg["response"])
	assert.Equal(t, []interface{}{"When to plant?"}, msg["followUpQuestions"])

	assert.Equal(t, "203.0.113.9", runner.clientID)
	assert.Equal(t, []models.ConversationTurn{{Role: models.RoleUser, Content: "hi"}}, runner.req.History)
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Empty(t, rec.Header().Get("Retry-After"))
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestChatWithoutURLHasNullURL(t *testing.T) {
	runner := &fakeRunner{resp: pipeline.Response{Answer: models.GroundedAnswer{Response: "hi", FollowUpQuestions: []string{}}, Decision: allowed}}
	rec := post(newTestServer(t, runner), `{"message":"hello"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	v, ok := body["url"]
	assert.True(t, ok)
	assert.Nil(t, v)
	assert.Equal(t, ratelimit.LoopbackIdentity, runner.clientID)
}

func TestChatErrors(t *testing.T) {
	denied := ratelimit.Decision{Allowed: false, Limit: 1, ResetAfter: 2500 * time.Millisecond}
	tests := []struct {
		name    string
		resp    pipeline.Response
		err     error
		code    int
		message string
		url     interface{}
	}{
		{
			name:    "rate limited",
			resp:    pipeline.Response{Decision: denied},
			err:     &pipeline.Error{Kind: pipeline.RateLimited, Err: pipeline.ErrRateLimited},
			code:    http.StatusTooManyRequests,
			message: "rate_limited",
			url:     nil,
		},
		{
			name:    "not found",
			resp:    pipeline.Response{URL: "https://example.com/missing", Decision: allowed},
			err:     &pipeline.Error{Kind: pipeline.ResourceNotFound, URL: "https://example.com/missing", Err: pipeline.ErrPageNotFound},
			code:    http.StatusNotFound,
			message: "404",
			url:     "https://example.com/missing",
		},
		{
			name:    "fetch failed",
			err:     &pipeline.Error{Kind: pipeline.FetchTransientFailure, URL: "https://example.com/slow", Err: errors.New("timeout")},
			code:    http.StatusServiceUnavailable,
			message: "fetch_failed",
			url:     "https://example.com/slow",
		},
		{
			name:    "generation format",
			err:     &pipeline.Error{Kind: pipeline.GenerationFormatError, Err: errors.New("bad json")},
			code:    http.StatusBadGateway,
			message: "generation_format",
			url:     nil,
		},
		{
			name:    "unclassified",
			err:     errors.New("boom"),
			code:    http.StatusInternalServerError,
			message: "internal",
			url:     nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(newTestServer(t, &fakeRunner{resp: tt.resp, err: tt.err}), `{"message":"hi"}`, nil)
			require.Equal(t, tt.code, rec.Code, rec.Body.String())
			body := decode(t, rec)
			assert.Equal(t, tt.message, body["message"])
			assert.Equal(t, tt.url, body["url"])
		})
	}
}

func TestChatFetchFailureHidesCause(t *testing.T) {
	cause := errors.New("net::ERR_CONNECTION_REFUSED at 10.0.0.7:8443")
	runner := &fakeRunner{err: &pipeline.Error{Kind: pipeline.FetchTransientFailure, URL: "https://example.com/slow", Err: cause}}
	rec := post(newTestServer(t, runner), `{"message":"hi"}`, nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "could not fetch the page", body["error"])
	assert.NotContains(t, rec.Body.String(), "10.0.0.7")
}

func TestChatRejectsOversizedBody(t *testing.T) {
	runner := &fakeRunner{resp: pipeline.Response{Decision: allowed}}
	e := New(&ChatHandler{Pipeline: runner, Logger: zaptest.NewLogger(t), Timeout: time.Second},
		Options{Logger: zaptest.NewLogger(t), BodyLimit: "1K"})

	rec := post(e, `{"message":"`+strings.Repeat("a", 2048)+`"}`, nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, 0, runner.calls)

	rec = post(e, `{"message":"hi"}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestChatRateLimitedSetsRetryAfter(t *testing.T) {
	runner := &fakeRunner{
		resp: pipeline.Response{Decision: ratelimit.Decision{Allowed: false, Limit: 1, ResetAfter: 2500 * time.Millisecond}},
		err:  &pipeline.Error{Kind: pipeline.RateLimited, Err: pipeline.ErrRateLimited},
	}
	rec := post(newTestServer(t, runner), `{"message":"hi"}`, nil)
	assert.Equal(t, "3", rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
}

func TestChatBadRequests(t *testing.T) {
	for name, body := range map[string]string{
		"empty body":    ``,
		"not json":      `message=hi`,
		"blank message": `{"message":"   "}`,
		"bad role":      `{"message":"hi","history":[{"role":"system","content":"x"}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			runner := &fakeRunner{}
			rec := post(newTestServer(t, runner), body, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, decode(t, rec), "error")
			assert.Equal(t, 0, runner.calls)
		})
	}
}

func TestHealthAndMetrics(t *testing.T) {
	e := newTestServer(t, &fakeRunner{})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "# metrics", rec.Body.String())
}

func TestDocs(t *testing.T) {
	e := newTestServer(t, &fakeRunner{})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/openapi.yaml", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/api/chat:")

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/docs", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Redoc.init")
}
