package pubsub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/xraph/treasury/event"
	"github.com/xraph/treasury/id"
)

func newTestClient(t *testing.T) (*pubsub.Client, *pstest.Server) {
	t.Helper()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	client, err := pubsub.NewClient(context.Background(), "treasury-test", option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, srv
}

func TestDispatchPublishesEvents(t *testing.T) {
	ctx := context.Background()
	client, srv := newTestClient(t)
	_, err := client.CreateTopic(ctx, "treasury-events")
	require.NoError(t, err)

	d, err := New(client, "treasury-events")
	require.NoError(t, err)
	defer d.Close()

	e := event.New(event.TypeCampaignAutoPaused, time.Now())
	e.CampaignID = id.NewCampaignID()
	require.NoError(t, d.Dispatch(ctx, e))

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "CAMPAIGN_AUTO_PAUSED", msgs[0].Attributes["type"])
	assert.Equal(t, e.ID.String(), msgs[0].Attributes["event_id"])
	assert.Equal(t, e.CampaignID.String(), msgs[0].OrderingKey)

	var decoded event.Event
	require.NoError(t, json.Unmarshal(msgs[0].Data, &decoded))
	assert.Equal(t, e.CampaignID.String(), decoded.CampaignID.String())
}

func TestNewValidates(t *testing.T) {
	_, err := New(nil, "t")
	assert.Error(t, err)

	client, _ := newTestClient(t)
	_, err = New(client, "")
	assert.Error(t, err)
}
