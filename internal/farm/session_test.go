package farm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionAck(t *testing.T) {
	s := NewSession(1)
	ctx := context.Background()

	// nothing armed, nothing to wait for
	assert.True(t, s.WaitAck(ctx, 10*time.Millisecond))

	s.ArmAck()
	go func() {
		time.Sleep(5 * time.Millisecond)
		s.SignalAck()
	}()
	assert.True(t, s.WaitAck(ctx, time.Second))

	// signal resolved the slot; a second wait has nothing outstanding
	assert.True(t, s.WaitAck(ctx, 10*time.Millisecond))

	s.ArmAck()
	assert.False(t, s.WaitAck(ctx, 10*time.Millisecond), "expected timeout with no signal")

	// repeated signals must not panic
	s.SignalAck()
	s.SignalAck()
}

func TestSessionWaitAckCanceled(t *testing.T) {
	s := NewSession(1)
	s.ArmAck()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.False(t, s.WaitAck(ctx, time.Second))
}

func TestSessionAllowExplore(t *testing.T) {
	s := NewSession(1)
	now := time.Now()
	cooldown := time.Second

	assert.True(t, s.AllowExplore(now, cooldown))
	assert.False(t, s.AllowExplore(now.Add(500*time.Millisecond), cooldown))
	assert.False(t, s.AllowExplore(now.Add(time.Second), cooldown))
	assert.True(t, s.AllowExplore(now.Add(1100*time.Millisecond), cooldown))
}

func TestSessionMarkProcessed(t *testing.T) {
	s := NewSession(1)

	assert.True(t, s.MarkProcessed(10, true))
	assert.False(t, s.MarkProcessed(10, true), "edit redelivery of the same message")
	assert.True(t, s.MarkProcessed(11, true))

	// without dedup every delivery goes through
	assert.True(t, s.MarkProcessed(11, false))
	assert.True(t, s.MarkProcessed(11, false))
}

func TestSessionMarkContinue(t *testing.T) {
	s := NewSession(1)

	assert.True(t, s.MarkContinue(20))
	assert.False(t, s.MarkContinue(20))
	assert.True(t, s.MarkContinue(21))
}

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry()

	require.Nil(t, r.Get(7))

	s := r.GetOrCreate(7)
	require.NotNil(t, s)
	assert.False(t, s.Enabled(), "new sessions start with farming off")
	assert.Same(t, s, r.GetOrCreate(7))
	assert.Same(t, s, r.Get(7))
	assert.Equal(t, 1, r.Len())

	r.GetOrCreate(8)
	assert.Equal(t, 2, r.Len())
	assert.Len(t, r.Snapshot(), 2)

	r.Remove(7)
	assert.Nil(t, r.Get(7))
	assert.Equal(t, 1, r.Len())
}
