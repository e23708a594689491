package build

import (
	"context"
	"log/slog"
	"testing"

	"github.com/btcsuite/btclog"
	btclogv2 "github.com/btcsuite/btclog/v2"
	"github.com/stretchr/testify/require"
)

// recordingHandler is a minimal btclogv2.Handler that just remembers the
// records it was asked to handle, so tests can assert on what HandlerSet
// stamped onto them before fan-out.
type recordingHandler struct {
	level   btclog.Level
	prefix  string
	records []slog.Record
}

func (r *recordingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (r *recordingHandler) Handle(_ context.Context, record slog.Record) error {
	r.records = append(r.records, record)
	return nil
}

func (r *recordingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return r
}

func (r *recordingHandler) WithGroup(string) slog.Handler { return r }

func (r *recordingHandler) SubSystem(tag string) btclogv2.Handler {
	return &recordingHandler{level: r.level, prefix: r.prefix}
}

func (r *recordingHandler) SetLevel(level btclog.Level) { r.level = level }

func (r *recordingHandler) Level() btclog.Level { return r.level }

func (r *recordingHandler) WithPrefix(prefix string) btclogv2.Handler {
	return &recordingHandler{level: r.level, prefix: prefix}
}

func attrValue(record slog.Record, key string) (string, bool) {
	var (
		found bool
		val   string
	)
	record.Attrs(func(a slog.Attr) bool {
		if a.Key == key {
			val = a.Value.String()
			found = true
			return false
		}
		return true
	})
	return val, found
}

// TestHandlerSetStampsOriginSilo asserts that every record handled by a
// HandlerSet constructed with a non-empty originSilo carries a "silo"
// attribute by the time it reaches the underlying handlers.
func TestHandlerSetStampsOriginSilo(t *testing.T) {
	rec := &recordingHandler{}
	set := NewHandlerSet("silo-7", rec)

	err := set.Handle(context.Background(), slog.Record{Message: "hello"})
	require.NoError(t, err)
	require.Len(t, rec.records, 1)

	val, ok := attrValue(rec.records[0], "silo")
	require.True(t, ok, "expected a silo attribute on the handled record")
	require.Equal(t, "silo-7", val)
}

// TestHandlerSetNoOriginSiloLeavesRecordUnstamped confirms the empty
// originSilo case (single-process tools like quarkctl) skips tagging
// entirely rather than stamping an empty "silo" attribute.
func TestHandlerSetNoOriginSiloLeavesRecordUnstamped(t *testing.T) {
	rec := &recordingHandler{}
	set := NewHandlerSet("", rec)

	err := set.Handle(context.Background(), slog.Record{Message: "hello"})
	require.NoError(t, err)
	require.Len(t, rec.records, 1)

	_, ok := attrValue(rec.records[0], "silo")
	require.False(t, ok)
}

// TestHandlerSetPropagatesOriginSiloThroughDerivation checks that the
// per-package sub-loggers produced by SubSystem and WithPrefix (the chain
// UseLogger actually drives) still carry the parent's originSilo, since a
// naive copy that forgets the field would silently drop silo tagging on
// every subsystem logger.
func TestHandlerSetPropagatesOriginSiloThroughDerivation(t *testing.T) {
	rec := &recordingHandler{}
	set := NewHandlerSet("silo-7", rec)

	sub := set.SubSystem("ACTR")
	withPrefix := set.WithPrefix("HOST")

	subSet, ok := sub.(*HandlerSet)
	require.True(t, ok)
	require.Equal(t, "silo-7", subSet.originSilo)

	prefixSet, ok := withPrefix.(*HandlerSet)
	require.True(t, ok)
	require.Equal(t, "silo-7", prefixSet.originSilo)
}
