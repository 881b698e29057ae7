package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONOutputCarriesSessionFields(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("LOG_LEVEL", "")
	var buf bytes.Buffer
	log := NewWithOutput(&buf).Component("session").WithSession("s-1", "room-a")
	log.WithError(errors.New("boom")).Warn("knowledge lookup failed")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "session", line["component"])
	assert.Equal(t, "s-1", line["session_id"])
	assert.Equal(t, "room-a", line["room"])
	assert.Equal(t, "boom", line["error"])
	assert.Equal(t, "warning", line["level"])
}

func TestLevelFromEnv(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("LOG_LEVEL", "error")
	var buf bytes.Buffer
	log := NewWithOutput(&buf)
	log.Info("hidden")
	assert.Zero(t, buf.Len())
	log.Error("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestWithRequestGeneratesID(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	var buf bytes.Buffer
	r := httptest.NewRequest("GET", "/knowledge?q=x", nil)
	NewWithOutput(&buf).WithRequest(r).Info("req")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.NotEmpty(t, line["req_id"])
	assert.Equal(t, "/knowledge", line["path"])

	buf.Reset()
	r.Header.Set("X-Request-ID", "abc")
	NewWithOutput(&buf).WithRequest(r).Info("req")
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "abc", line["req_id"])
}

func TestWithErrorNil(t *testing.T) {
	log := NewWithOutput(&bytes.Buffer{})
	assert.Same(t, log.Entry, log.WithError(nil))
}
