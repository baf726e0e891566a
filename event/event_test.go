package event_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/treasury/event"
	"github.com/xraph/treasury/id"
)

func TestKey(t *testing.T) {
	cmp := id.NewCampaignID()
	crt := id.NewCreatorID()
	wal := id.NewWalletID()

	e := event.New(event.TypeReserveLocked, time.Now())
	e.CampaignID, e.CreatorID, e.WalletID = cmp, crt, wal
	assert.Equal(t, cmp.String(), e.Key())

	e.CampaignID = id.Nil
	assert.Equal(t, crt.String(), e.Key())

	e.CreatorID = id.Nil
	assert.Equal(t, wal.String(), e.Key())
}

func TestMultiJoinsErrors(t *testing.T) {
	rec := &event.Recorder{}
	boom := errors.New("boom")
	failing := event.DispatcherFunc(func(context.Context, ...event.Event) error { return boom })

	m := event.Multi{rec, failing}
	err := m.Dispatch(context.Background(), event.New(event.TypeWalletCredited, time.Now()))
	require.ErrorIs(t, err, boom)
	assert.Len(t, rec.Events(), 1, "healthy dispatchers still receive the event")
}

func TestRecorderOfType(t *testing.T) {
	rec := &event.Recorder{}
	ctx := context.Background()
	require.NoError(t, rec.Dispatch(ctx,
		event.New(event.TypeReserveLocked, time.Now()),
		event.New(event.TypeReserveReleased, time.Now()),
		event.New(event.TypeReserveLocked, time.Now()),
	))
	assert.Len(t, rec.OfType(event.TypeReserveLocked), 2)
	assert.Len(t, rec.OfType(event.TypeCampaignAutoPaused), 0)
}
