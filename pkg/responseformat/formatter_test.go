package responseformat

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

type period struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Error string `json:"error,omitempty"`
}

func TestWriteResponseJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/segments", nil)

	err := NewFormatter().WriteResponse(rec, req, []period{{Start: 1950, End: 1984}}, map[string]string{"X-Periods": "1"})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "1", rec.Header().Get("X-Periods"))
	assert.JSONEq(t, `[{"start":1950,"end":1984}]`, rec.Body.String())
}

func TestWriteResponseMsgPack(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/segments?format=msgpack", nil)

	require.NoError(t, NewFormatter().WriteResponse(rec, req, period{Start: 1985, End: 2020}, nil))
	assert.Equal(t, "application/x-msgpack", rec.Header().Get("Content-Type"))

	var got map[string]any
	require.NoError(t, msgpack.Unmarshal(rec.Body.Bytes(), &got))
	assert.EqualValues(t, 1985, got["start"])
	assert.NotContains(t, got, "error")
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/trend-detection", nil)

	require.NoError(t, NewFormatter().WriteError(rec, req, http.StatusUnprocessableEntity, errors.New("unknown s_estimation")))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var body ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Unprocessable Entity", body.Error)
	assert.Equal(t, "unknown s_estimation", body.Details)
}
