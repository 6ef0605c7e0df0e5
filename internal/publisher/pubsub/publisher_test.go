package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"cloud.google.com/go/pubsub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResult struct {
	id  string
	err error
}

func (r fakeResult) Get(context.Context) (string, error) { return r.id, r.err }

type fakeTopic struct {
	name     string
	messages []*pubsub.Message
	err      error
	stopped  bool
}

func (f *fakeTopic) Publish(_ context.Context, msg *pubsub.Message) publishResult {
	f.messages = append(f.messages, msg)
	return fakeResult{id: f.name + "-id", err: f.err}
}

func (f *fakeTopic) Stop() { f.stopped = true }

func TestPublishEncodesJSONAndReusesTopics(t *testing.T) {
	t.Parallel()

	opened := map[string]*fakeTopic{}
	p := newPublisher(func(name string) topicPublisher {
		ft := &fakeTopic{name: name}
		opened[name] = ft
		return ft
	})

	id, err := p.Publish(context.Background(), "seeds", map[string]int{"position": 4})
	require.NoError(t, err)
	assert.Equal(t, "seeds-id", id)
	_, err = p.Publish(context.Background(), "seeds", map[string]int{"position": 5})
	require.NoError(t, err)

	require.Len(t, opened, 1)
	msgs := opened["seeds"].messages
	require.Len(t, msgs, 2)
	var decoded map[string]int
	require.NoError(t, json.Unmarshal(msgs[1].Data, &decoded))
	assert.Equal(t, 5, decoded["position"])
	assert.Equal(t, "application/json", msgs[0].Attributes["content_type"])

	require.NoError(t, p.Close())
	assert.True(t, opened["seeds"].stopped)
}

func TestPublishErrors(t *testing.T) {
	t.Parallel()

	p := newPublisher(func(name string) topicPublisher {
		return &fakeTopic{name: name, err: errors.New("unavailable")}
	})

	_, err := p.Publish(context.Background(), "", "x")
	require.ErrorContains(t, err, "topic is required")

	_, err = p.Publish(context.Background(), "seeds", make(chan int))
	require.ErrorContains(t, err, "marshal payload")

	_, err = p.Publish(context.Background(), "seeds", "x")
	require.ErrorContains(t, err, "unavailable")
}

func TestNewRequiresProject(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{})
	require.Error(t, err)
}
