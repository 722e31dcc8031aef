package respond

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type createBody struct {
	Title   *string   `json:"title" binding:"omitempty,min=1,max=5"`
	Content string    `json:"content" binding:"required,min=3"`
	Mode    string    `json:"mode" binding:"omitempty,oneof=gita quran"`
	Tags    *[]string `json:"tags" binding:"omitempty,min=1,dive,min=1"`
}

func bind(t *testing.T, body string) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	RegisterValidation()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	var dst createBody
	return w, BindJSON(c, &dst)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestBindJSON_Valid(t *testing.T) {
	w, ok := bind(t, `{"content":"hello","mode":"gita","tags":["a"]}`)
	assert.True(t, ok)
	assert.Equal(t, 0, w.Body.Len())
}

func TestBindJSON_FieldDetails(t *testing.T) {
	w, ok := bind(t, `{"title":"","content":"hi","mode":"zen","tags":[]}`)
	require.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	resp := decode(t, w)
	assert.Equal(t, "Invalid input", resp.Error)

	byField := map[string]string{}
	for _, d := range resp.Details {
		byField[d.Field] = d.Message
	}
	assert.Equal(t, "must be at least 1 character(s)", byField["title"])
	assert.Equal(t, "must be at least 3 character(s)", byField["content"])
	assert.Equal(t, "must be one of: gita, quran", byField["mode"])
	assert.Equal(t, "must contain at least 1 item(s)", byField["tags"])
}

func TestBindJSON_Required(t *testing.T) {
	w, ok := bind(t, `{}`)
	require.False(t, ok)
	resp := decode(t, w)
	require.Len(t, resp.Details, 1)
	assert.Equal(t, FieldError{Field: "content", Message: "is required"}, resp.Details[0])
}

func TestBindJSON_Malformed(t *testing.T) {
	w, ok := bind(t, `{"content":`)
	require.False(t, ok)
	resp := decode(t, w)
	require.Len(t, resp.Details, 1)
	assert.Equal(t, "body", resp.Details[0].Field)

	w, ok = bind(t, `{"content": 12}`)
	require.False(t, ok)
	resp = decode(t, w)
	require.Len(t, resp.Details, 1)
	assert.Equal(t, "content", resp.Details[0].Field)
}

func TestDegraded(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/community", nil)

	Degraded(c, slog.New(slog.DiscardHandler), "community", assert.AnError)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "true", w.Header().Get(DegradedHeader))
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestInternal_DoesNotLeak(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	Internal(c, slog.New(slog.DiscardHandler), "boom", assert.AnError)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), assert.AnError.Error())
}
