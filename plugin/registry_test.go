package plugin

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/treasury/budget"
	"github.com/xraph/treasury/id"
)

type lockSpy struct {
	mu     sync.Mutex
	name   string
	locked []int64
	err    error
}

func (s *lockSpy) Name() string { return s.name }

func (s *lockSpy) OnBudgetLocked(_ context.Context, r *budget.LockResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locked = append(s.locked, r.MovedCents)
	return s.err
}

type slowPlugin struct{}

func (slowPlugin) Name() string { return "slow" }

func (slowPlugin) OnCampaignAutoPaused(ctx context.Context, _ id.CampaignID) error {
	select {
	case <-time.After(time.Second):
	case <-ctx.Done():
	}
	return nil
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&lockSpy{name: "spy"}))
	assert.Error(t, r.Register(&lockSpy{name: "spy"}))
	assert.Equal(t, 1, r.Count())
	assert.NotNil(t, r.Get("spy"))
	assert.Nil(t, r.Get("missing"))
}

func TestEmitDispatchesToImplementers(t *testing.T) {
	r := NewRegistry()
	ok := &lockSpy{name: "ok"}
	failing := &lockSpy{name: "failing", err: errors.New("nope")}
	require.NoError(t, r.Register(ok))
	require.NoError(t, r.Register(failing))
	require.NoError(t, r.Register(slowPlugin{}))

	r.EmitBudgetLocked(context.Background(), &budget.LockResult{MovedCents: 500})

	assert.Equal(t, []int64{500}, ok.locked)
	assert.Equal(t, []int64{500}, failing.locked, "a failing plugin does not stop dispatch")
}

func TestEmitTimesOut(t *testing.T) {
	r := NewRegistry().WithTimeout(20 * time.Millisecond)
	require.NoError(t, r.Register(slowPlugin{}))

	start := time.Now()
	r.EmitCampaignAutoPaused(context.Background(), id.NewCampaignID())
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}
