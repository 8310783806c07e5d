package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(New(&buf, "info", "json"))

	Debug("hidden", "k", "v")
	Info("shown", "email", "a@b.co")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "shown", rec["msg"])
	assert.Equal(t, "info", rec["level"])
	assert.Equal(t, "a@b.co", rec["email"])
	assert.NotEmpty(t, rec["ts"])
}

func TestNew_Logfmt(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(New(&buf, "debug", "logfmt"))

	Warn("upload skipped", "key", "signature")

	out := buf.String()
	assert.Contains(t, out, "level=warn")
	assert.Contains(t, out, `msg="upload skipped"`)
	assert.Contains(t, out, "key=signature")
}
