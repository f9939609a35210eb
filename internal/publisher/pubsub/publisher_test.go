package pubsub

import (
	"context"
	"encoding/json"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func newTestPublisher(t *testing.T) (*Publisher, *pstest.Server) {
	t.Helper()
	ctx := context.Background()

	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	client, err := pubsub.NewClient(ctx, "test-project", option.WithGRPCConn(conn))
	require.NoError(t, err)

	_, err = client.CreateTopic(ctx, "paths")
	require.NoError(t, err)

	pub := NewWithClient(client)
	t.Cleanup(func() { _ = pub.Close() })
	return pub, srv
}

func TestPublishSendsJSON(t *testing.T) {
	t.Parallel()

	pub, srv := newTestPublisher(t)
	payload := map[string]any{"storage_id": "42", "steps": 3}

	id, err := pub.Publish(context.Background(), "paths", payload)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "application/json", msgs[0].Attributes["content_type"])

	var got map[string]any
	require.NoError(t, json.Unmarshal(msgs[0].Data, &got))
	assert.Equal(t, "42", got["storage_id"])
	assert.InDelta(t, 3, got["steps"], 0)
}

func TestPublishUnknownTopic(t *testing.T) {
	t.Parallel()

	pub, _ := newTestPublisher(t)
	_, err := pub.Publish(context.Background(), "missing", "x")
	require.ErrorContains(t, err, "publish message")
}

func TestPublishRejectsBadInput(t *testing.T) {
	t.Parallel()

	pub, _ := newTestPublisher(t)
	_, err := pub.Publish(context.Background(), "", "x")
	require.ErrorContains(t, err, "topic is required")

	_, err = pub.Publish(context.Background(), "paths", make(chan int))
	require.ErrorContains(t, err, "marshal payload")

	var nilPub *Publisher
	_, err = nilPub.Publish(context.Background(), "paths", "x")
	require.ErrorContains(t, err, "not configured")
}

func TestNewRequiresProject(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), "")
	require.ErrorContains(t, err, "project_id is required")
}
