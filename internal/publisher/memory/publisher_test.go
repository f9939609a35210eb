package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/wikipath-crawler/internal/crawler"
)

func TestPublisherRecordsMessages(t *testing.T) {
	t.Parallel()

	pub := New()
	ctx := context.Background()
	event := crawler.PathStoredEvent{StorageID: "1", StartArticle: "Physics", Steps: 2}

	id1, err := pub.Publish(ctx, "paths", event)
	require.NoError(t, err)
	assert.Equal(t, "paths-1", id1)

	id2, err := pub.Publish(ctx, "audit", "payload")
	require.NoError(t, err)
	assert.Equal(t, "audit-2", id2)

	msgs := pub.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "paths", msgs[0].Topic)
	assert.Equal(t, event, msgs[0].Payload)

	assert.Equal(t, []any{event}, pub.Topic("paths"))
	assert.Empty(t, pub.Topic("missing"))

	msgs[0].Topic = "modified"
	assert.Equal(t, "paths", pub.Messages()[0].Topic)
}

func TestPublisherHonoursCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pub := New()
	_, err := pub.Publish(ctx, "paths", "x")
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, pub.Messages())
}
