package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestRequestID(t *testing.T) {
	assert.Equal(t, "unknown", RequestID(context.Background()))

	ctx := WithRequestID(context.Background(), "req-42")
	assert.Equal(t, "req-42", RequestID(ctx))
}

func TestInitializeWithWriterTeesJSON(t *testing.T) {
	prev := Log
	t.Cleanup(func() {
		Log = prev
		zap.ReplaceGlobals(prev)
	})

	var sink bytes.Buffer
	InitializeWithWriter("production", &sink)

	Error(WithRequestID(context.Background(), "req-7"), "order create failed", errors.New("boom"))
	Sync()

	out := sink.String()
	assert.Contains(t, out, `"msg":"order create failed"`)
	assert.Contains(t, out, `"request_id":"req-7"`)
	assert.Contains(t, out, `"error":"boom"`)
}
