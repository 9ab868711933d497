package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"voterfield/internal/testutil"
)

func TestLogAndEmitPersistAndMirror(t *testing.T) {
	store := testutil.NewStore()
	core, logs := observer.New(zapcore.InfoLevel)
	trail := New(store, zap.New(core))

	trail.Log(context.Background(), "voter.create", "user-1", "org-1", map[string]any{"voter_id": "v1"})
	trail.Emit(context.Background(), "list.created", "org-1", "user-1", map[string]any{"count": 3})

	require.Len(t, store.Audits(), 1)
	assert.Equal(t, "voter.create", store.Audits()[0].Action)
	assert.Equal(t, "org-1", store.Audits()[0].TargetOrgID)
	assert.NotEmpty(t, store.Audits()[0].ID)
	require.Len(t, store.Events(), 1)
	assert.Equal(t, "list.created", store.Events()[0].EventType)

	assert.Equal(t, 1, logs.FilterField(zap.Bool("audit", true)).Len())
	assert.Equal(t, 1, logs.FilterField(zap.Bool("event", true)).Len())
}

func TestFailuresAreLoggedNotReturned(t *testing.T) {
	store := testutil.NewStore()
	store.FailTrail = true
	core, logs := observer.New(zapcore.InfoLevel)
	trail := New(store, zap.New(core))

	assert.NotPanics(t, func() {
		trail.Log(context.Background(), "voter.update", "u", "o", nil)
		trail.Emit(context.Background(), "import.failed", "o", "", nil)
	})
	assert.Empty(t, store.Audits())
	assert.Equal(t, 2, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
}

func TestCancelledContextStillRecords(t *testing.T) {
	store := testutil.NewStore()
	trail := New(store, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	trail.Log(ctx, "user.invite", "u", "o", nil)
	assert.Len(t, store.Audits(), 1)
}

func TestNilTrailIsNoop(t *testing.T) {
	var trail *Trail
	assert.NotPanics(t, func() {
		trail.Log(context.Background(), "a", "u", "o", nil)
		trail.Emit(context.Background(), "e", "o", "u", nil)
	})
}
