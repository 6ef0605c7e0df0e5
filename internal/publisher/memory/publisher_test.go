package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisherStoresMessages(t *testing.T) {
	t.Parallel()

	pub := New()
	id1, err := pub.Publish(context.Background(), "topic-a", map[string]string{"k": "v"})
	require.NoError(t, err)
	assert.Equal(t, "memory-1", id1)
	id2, err := pub.Publish(context.Background(), "topic-b", "payload")
	require.NoError(t, err)
	assert.Equal(t, "memory-2", id2)

	msgs := pub.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "topic-a", msgs[0].Topic)
	assert.Equal(t, "topic-b", msgs[1].Topic)

	msgs[0].Topic = "modified"
	assert.Equal(t, "topic-a", pub.Messages()[0].Topic, "Messages returns a copy")
}

func TestPublisherTopicAndFailure(t *testing.T) {
	t.Parallel()

	pub := New()
	_, _ = pub.Publish(context.Background(), "a", 1)
	_, _ = pub.Publish(context.Background(), "b", 2)
	_, _ = pub.Publish(context.Background(), "a", 3)
	assert.Equal(t, []any{1, 3}, pub.Topic("a"))
	assert.Empty(t, pub.Topic("missing"))

	pub.FailWith(assert.AnError)
	_, err := pub.Publish(context.Background(), "a", 4)
	require.ErrorIs(t, err, assert.AnError)
	assert.Len(t, pub.Messages(), 3)

	pub.FailWith(nil)
	id, err := pub.Publish(context.Background(), "a", 5)
	require.NoError(t, err)
	assert.Equal(t, "memory-4", id)
}
