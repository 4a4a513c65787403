package temporal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapAdapterFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewZapAdapter(zap.New(core))

	l.Info("started", "workflow_id", "interplay-1", "attempt", 2, 42, "ignored", "dangling")
	l.With("run", "r1").Warn("slow", "fn", func() {}, "nothing", nil)

	entries := logs.All()
	require.Len(t, entries, 2)
	info := entries[0].ContextMap()
	assert.Equal(t, "interplay-1", info["workflow_id"])
	assert.EqualValues(t, 2, info["attempt"])
	assert.Len(t, info, 2)

	warn := entries[1].ContextMap()
	assert.Equal(t, "r1", warn["run"])
	assert.Equal(t, "<func()>", warn["fn"])
	assert.Equal(t, "<nil>", warn["nothing"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
}

func TestDialHonorsContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()
	// Reserved TEST-NET address: nothing listens there.
	_, err := Dial(ctx, Config{HostPort: "192.0.2.1:7233"}, nil)
	require.Error(t, err)
}
