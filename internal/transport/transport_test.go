package transport

import (
	"bytes"
	"encoding/json"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterReader_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	require.NoError(t, w.Notify("textDocument/publishDiagnostics", map[string]any{"uri": "file:///a.fs"}))
	require.NoError(t, w.Respond(json.RawMessage(`1`), map[string]any{"ok": true}))

	r := NewReader(&buf)

	msg1, err := r.Read()
	require.NoError(t, err)
	assert.Equal(t, "textDocument/publishDiagnostics", msg1.Method)
	assert.True(t, msg1.IsNotification())

	msg2, err := r.Read()
	require.NoError(t, err)
	assert.False(t, msg2.IsNotification())
	assert.Equal(t, json.RawMessage("1"), msg2.ID)
}

func TestReader_MissingContentLength(t *testing.T) {
	r := NewReader(bytes.NewBufferString("\r\n{}"))
	_, err := r.Read()
	assert.Error(t, err)
}

func TestReader_EOFOnCleanClose(t *testing.T) {
	r := NewReader(bytes.NewBuffer(nil))
	_, err := r.Read()
	assert.ErrorIs(t, err, io.EOF)
}

func TestWriter_RespondError(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.RespondError(json.RawMessage(`2`), ErrMethodNotFound, "unsupported method"))

	r := NewReader(&buf)
	msg, err := r.Read()
	require.NoError(t, err)
	require.NotNil(t, msg.Error)
	assert.Equal(t, ErrMethodNotFound, msg.Error.Code)
	assert.Equal(t, "unsupported method", msg.Error.Message)
}
