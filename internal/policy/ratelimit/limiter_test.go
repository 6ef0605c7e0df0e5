package ratelimit

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/district-staff-crawler/internal/crawler"
)

func TestLimiterWaitDelaysSameHost(t *testing.T) {
	t.Parallel()

	// 10 RPS with burst 1 means one token every 100ms.
	l := New(Config{DefaultRPS: 10, DefaultBurst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://test.com/a"))

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://test.com/b"))
	if dur := time.Since(start); dur < 80*time.Millisecond {
		t.Errorf("expected wait ~100ms, got %v", dur)
	}
}

func TestLimiterDifferentHosts(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 1, DefaultBurst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://a.com/1"))

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://b.com/1"))
	if time.Since(start) > 50*time.Millisecond {
		t.Errorf("host b blocked unexpectedly")
	}
}

func TestLimiterUnlimitedByDefault(t *testing.T) {
	t.Parallel()

	l := New(Config{})
	start := time.Now()
	for i := 0; i < 50; i++ {
		require.NoError(t, l.Wait(context.Background(), "https://a.com"))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

type countingFetcher struct {
	calls atomic.Int32
}

func (c *countingFetcher) Fetch(_ context.Context, url string) (crawler.Page, error) {
	c.calls.Add(1)
	return crawler.Page{URL: url, StatusCode: 200}, nil
}

func TestWrapDelegatesAndHonorsContext(t *testing.T) {
	t.Parallel()

	next := &countingFetcher{}
	f := New(Config{DefaultRPS: 0.001, DefaultBurst: 1}).Wrap(next)

	page, err := f.Fetch(context.Background(), "https://a.com/staff")
	require.NoError(t, err)
	assert.Equal(t, "https://a.com/staff", page.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = f.Fetch(ctx, "https://a.com/other")
	require.ErrorIs(t, err, crawler.ErrNetwork)
	assert.Equal(t, int32(1), next.calls.Load())
}
