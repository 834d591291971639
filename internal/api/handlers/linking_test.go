package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"entity-graph/backend/internal/api"
	"entity-graph/backend/internal/linking"
	"entity-graph/backend/internal/store"
)

func newTestContext(t *testing.T) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) api.APIError {
	t.Helper()
	var resp api.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	return *resp.Error
}

func TestRequestUser(t *testing.T) {
	c, _ := newTestContext(t)
	assert.Equal(t, "default", requestUser(c), "missing header falls back to the default identity")

	c, _ = newTestContext(t)
	c.Request.Header.Set("X-User-ID", "alice")
	assert.Equal(t, "alice", requestUser(c))
}

func TestParseUUIDPair(t *testing.T) {
	a, b := uuid.New(), uuid.New()

	c, _ := newTestContext(t)
	gotA, gotB, ok := parseUUIDPair(c, a.String(), b.String(), "item")
	require.True(t, ok)
	assert.Equal(t, a, gotA)
	assert.Equal(t, b, gotB)

	c, w := newTestContext(t)
	_, _, ok = parseUUIDPair(c, "not-a-uuid", b.String(), "item")
	require.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, api.ErrCodeValidation, decodeError(t, w).Code)

	c, w = newTestContext(t)
	_, _, ok = parseUUIDPair(c, a.String(), "not-a-uuid", "entity")
	require.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestParseMergeFields(t *testing.T) {
	h := &DedupHandler{}
	primary, dup := uuid.New(), uuid.New()

	c, _ := newTestContext(t)
	gotPrimary, gotDups, strategy, ok := h.parseMergeFields(c, PreviewMergeRequest{
		PrimaryID:    primary.String(),
		DuplicateIDs: []string{dup.String()},
		Strategy:     "keep_primary",
	})
	require.True(t, ok)
	assert.Equal(t, primary, gotPrimary)
	assert.Equal(t, []uuid.UUID{dup}, gotDups)
	assert.True(t, strategy.Valid())

	c, w := newTestContext(t)
	_, _, _, ok = h.parseMergeFields(c, PreviewMergeRequest{
		PrimaryID:    "bogus",
		DuplicateIDs: []string{dup.String()},
		Strategy:     "keep_primary",
	})
	require.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newTestContext(t)
	_, _, _, ok = h.parseMergeFields(c, PreviewMergeRequest{
		PrimaryID:    primary.String(),
		DuplicateIDs: []string{"bogus"},
		Strategy:     "keep_primary",
	})
	require.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newTestContext(t)
	_, _, _, ok = h.parseMergeFields(c, PreviewMergeRequest{
		PrimaryID:    primary.String(),
		DuplicateIDs: []string{dup.String()},
		Strategy:     "keep_everything",
	})
	require.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRespondServiceError(t *testing.T) {
	c, w := newTestContext(t)
	respondServiceError(c, "Entity", store.ErrNotFound)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, api.ErrCodeNotFound, decodeError(t, w).Code)

	c, w = newTestContext(t)
	respondServiceError(c, "Entity", linking.ValidationError{Field: "reason", Message: "reason is required"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, api.ErrCodeValidation, decodeError(t, w).Code)

	c, w = newTestContext(t)
	respondServiceError(c, "Entity", assert.AnError)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, api.ErrCodeInternal, decodeError(t, w).Code)
}
