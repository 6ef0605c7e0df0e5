package enrich

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/district-staff-crawler/internal/crawler"
)

type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	calls int
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (crawler.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	body, ok := f.pages[url]
	if !ok {
		return crawler.Page{}, crawler.ErrNetwork
	}
	return crawler.Page{URL: url, StatusCode: 200, Body: []byte(body)}, nil
}

const refURL = "https://en.wikipedia.org/wiki/Autauga_County_School_District"

func seed() crawler.Seed {
	return crawler.Seed{Position: 1, URL: "http://acboe.net", District: "Autauga County", DistrictURL: refURL}
}

func TestEnrichSetsContextAndCaches(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{pages: map[string]string{
		refURL: `<html><body><h1 id="firstHeading"> Autauga County
			School District </h1></body></html>`,
	}}
	e := New(fetcher, "")
	in := []crawler.Record{{FirstName: "Jane", LastName: "Smith"}}

	out, err := e.Enrich(context.Background(), seed(), in)
	require.NoError(t, err)
	_, err = e.Enrich(context.Background(), seed(), in)
	require.NoError(t, err)

	require.Len(t, out, 1)
	assert.Equal(t, "Autauga County", out[0].SchoolDistrict)
	assert.Equal(t, "Autauga County School District", out[0].SchoolName)
	assert.Equal(t, DefaultState, out[0].State)
	assert.Equal(t, "Jane", out[0].FirstName)
	assert.Empty(t, in[0].SchoolName, "input records are not mutated")
	assert.Equal(t, 1, fetcher.calls)
}

func TestEnrichEmptyRecordsSkipsLookup(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{}
	out, err := New(fetcher, "Georgia").Enrich(context.Background(), seed(), nil)

	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Zero(t, fetcher.calls)
}

func TestEnrichFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		pages map[string]string
		seed  crawler.Seed
	}{
		{name: "fetch fails", pages: map[string]string{}, seed: seed()},
		{name: "missing heading", pages: map[string]string{refURL: `<h1>Other</h1>`}, seed: seed()},
		{name: "empty heading", pages: map[string]string{refURL: `<h1 id="firstHeading"> </h1>`}, seed: seed()},
		{name: "no district url", pages: map[string]string{}, seed: crawler.Seed{Position: 9}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := New(&fakeFetcher{pages: tc.pages}, "").
				Enrich(context.Background(), tc.seed, []crawler.Record{{FirstName: "A", LastName: "B"}})
			require.Error(t, err)
			assert.True(t, errors.Is(err, crawler.ErrReferenceLookup), "got %v", err)
		})
	}
}

func TestEnrichUsesConfiguredState(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{pages: map[string]string{refURL: `<h1 id="firstHeading">X</h1>`}}
	out, err := New(fetcher, "Georgia").Enrich(context.Background(), seed(), []crawler.Record{{}})

	require.NoError(t, err)
	assert.Equal(t, "Georgia", out[0].State)
}
