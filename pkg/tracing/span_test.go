package tracing

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChildSpansAttachToRoot(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "rank", "req-1")
	childCtx, scan := StartChildSpan(ctx, "scan")
	_, reduce := StartChildSpan(childCtx, "reduce")
	reduce.SetAttr("entries", 3)
	reduce.End()
	scan.End()
	root.End()

	assert.Equal(t, 3, root.Count())
	assert.Equal(t, "req-1", reduce.TraceID)

	var buf bytes.Buffer
	root.Log(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	assert.Equal(t, 3, strings.Count(buf.String(), "span="))
	assert.Contains(t, buf.String(), "entries=3")
}

func TestChildWithoutRootIsNoop(t *testing.T) {
	ctx, span := StartChildSpan(context.Background(), "scan")
	assert.Nil(t, span)
	assert.Nil(t, SpanFromContext(ctx))

	span.SetAttr("k", "v")
	span.End()
	span.Log(slog.Default())
	assert.Equal(t, 0, span.Count())
}
