package storage

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/JakeFAU/district-staff-crawler/internal/crawler"
)

// MockSink is a testify mock implementing crawler.Sink.
type MockSink struct {
	mock.Mock
}

// Save is the mock implementation of the Save method.
func (m *MockSink) Save(ctx context.Context, seed crawler.Seed, batches [][]crawler.Record) error {
	args := m.Called(ctx, seed, batches)
	return args.Error(0) //nolint:wrapcheck
}
