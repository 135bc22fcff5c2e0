package routes

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"csv-share-access/internal/crypto"
	"csv-share-access/internal/dataset"
	"csv-share-access/internal/links"
	"csv-share-access/internal/recovery"
	"csv-share-access/internal/storage"
	"csv-share-access/internal/validate"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetErrorStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{validate.LinkName(""), http.StatusBadRequest},
		{ErrInvalidCredentials, http.StatusUnauthorized},
		{fmt.Errorf("view: %w", crypto.ErrDecrypt), http.StatusForbidden},
		{links.ErrLinkNotFound, http.StatusNotFound},
		{links.ErrPasswordAlreadyUsed, http.StatusConflict},
		{links.ErrRequestAlreadyUsed, http.StatusConflict},
		{fmt.Errorf("%w: approved to denied", recovery.ErrInvalidTransition), http.StatusConflict},
		{dataset.ErrTooLarge, http.StatusRequestEntityTooLarge},
		{ErrRateLimited, http.StatusTooManyRequests},
		{unavailable(errors.New("connection refused")), http.StatusServiceUnavailable},
		{unavailable(storage.ErrNotFound), http.StatusNotFound},
		{NewHTTPError(http.StatusTeapot, nil, "tea"), http.StatusTeapot},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.status, GetErrorStatus(tt.err), tt.err.Error())
	}
}

func TestGetErrorInfo(t *testing.T) {
	info := GetErrorInfo(links.ErrPasswordAlreadyUsed)
	assert.Equal(t, []string{"LINK_ALREADY_CLAIMED"}, info.StopCodes)

	info = GetErrorInfo(validate.RecoveryMessage(string(make([]byte, 501))))
	assert.Equal(t, "Message too long", info.Message)

	info = GetErrorInfo(unavailable(errors.New("dial tcp: i/o timeout")))
	assert.Equal(t, "Temporary server issue. Please try again.", info.Message)

	info = GetErrorInfo(storage.ErrDuplicate)
	assert.Equal(t, "That item already exists.", info.Message)
}

func TestMapActionError(t *testing.T) {
	tests := []struct {
		msg  string
		want string
	}{
		{"pq: duplicate key value violates unique constraint", "That item already exists."},
		{"invalid UUID length: 3", "Invalid input. Please check your entries."},
		{"missing file csv/abc.enc", "Requested item was not found."},
		{"bucket unreachable", "Storage service error. Please try again."},
		{"missing env COOKIE_SECRET", "Server configuration error."},
		{"permission denied", "You are not allowed to perform this action."},
		{"fetch failed", "Temporary server issue. Please try again."},
		{"something odd", "fallback"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MapActionError(errors.New(tt.msg), "fallback"), tt.msg)
	}
	assert.Equal(t, "fallback", MapActionError(nil, "fallback"))
}

func TestErrorHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/claimed", func(c *gin.Context) { AbortWithError(c, links.ErrPasswordAlreadyUsed) })
	r.GET("/broken", func(c *gin.Context) { fail(c, errors.New("sql: database is closed")) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/claimed", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, []string{"LINK_ALREADY_CLAIMED"}, body.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/broken", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Temporary server issue. Please try again.", body.Message)
	assert.NotContains(t, rec.Body.String(), "database is closed")
}

// captureLogs routes the default logger into a buffer for the test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func lastLogEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry), buf.String())
	return entry
}

func TestErrorHandler_LogLevels(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		level string
		msg   string
	}{
		{"integrity", fmt.Errorf("file f1: %w", crypto.ErrDecrypt), "ERROR", "Integrity check failed"},
		{"server", unavailable(errors.New("connection refused")), "ERROR", "Request failed"},
		{"denied", ErrUnauthorized, "WARN", "Request failed"},
		{"limited", ErrRateLimited, "WARN", "Request failed"},
		{"missing", links.ErrLinkNotFound, "INFO", "Request failed"},
		{"invalid", validate.LinkName(""), "INFO", "Request failed"},
	}
	gin.SetMode(gin.TestMode)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logs := captureLogs(t)
			r := gin.New()
			r.Use(ErrorHandler())
			r.GET("/", func(c *gin.Context) { AbortWithError(c, tt.err) })

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			entry := lastLogEntry(t, logs)
			assert.Equal(t, tt.level, entry["level"])
			assert.Equal(t, tt.msg, entry["msg"])
			assert.EqualValues(t, rec.Code, entry["status"])
		})
	}
}

func TestErrorHandler_StopCodesOnce(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/", func(c *gin.Context) {
		c.Error(ErrUnauthorized)
		AbortWithHTTPError(c, http.StatusUnauthorized, ErrUnauthorized, "Password required", "AUTH_REQUIRED", "PASSWORD_REQUIRED")
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Password required", body.Message)
	assert.Equal(t, []string{"AUTH_REQUIRED", "PASSWORD_REQUIRED"}, body.Code)
}

func TestSignedCookie(t *testing.T) {
	gin.SetMode(gin.TestMode)
	signer, err := crypto.NewSigner(strings.Repeat("s", 32))
	require.NoError(t, err)
	s := &Server{Signer: signer}

	request := func(cookie *http.Cookie) *gin.Context {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/v/l1", nil)
		if cookie != nil {
			c.Request.AddCookie(cookie)
		}
		return c
	}

	logs := captureLogs(t)
	value, ok := s.signedCookie(request(&http.Cookie{Name: "link_l1", Value: signer.Sign("token-1")}), "link_l1")
	assert.True(t, ok)
	assert.Equal(t, "token-1", value)

	_, ok = s.signedCookie(request(nil), "link_l1")
	assert.False(t, ok)
	assert.Empty(t, logs.String())

	forged := "token-2.c2lnbmF0dXJl"
	_, ok = s.signedCookie(request(&http.Cookie{Name: "link_l1", Value: forged}), "link_l1")
	assert.False(t, ok)

	entry := lastLogEntry(t, logs)
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "link_l1", entry["cookie"])
	assert.NotContains(t, logs.String(), "token-2")
}

func TestCriteriaInput(t *testing.T) {
	var req createLinkRequest
	require.NoError(t, json.Unmarshal([]byte(`{"criteria":"[{\"column\":\"team\",\"op\":\"eq\",\"value\":\"red\"}]"}`), &req))
	assert.Equal(t, criteriaInput{{Column: "team", Op: dataset.OpEq, Value: "red"}}, req.Criteria)

	require.NoError(t, json.Unmarshal([]byte(`{"criteria":[{"column":"a","op":"gt","value":"1"}]}`), &req))
	assert.Len(t, req.Criteria, 1)

	require.NoError(t, json.Unmarshal([]byte(`{"criteria":""}`), &req))
	assert.Empty(t, req.Criteria)

	assert.Error(t, json.Unmarshal([]byte(`{"criteria":"not json"}`), &req))
}
