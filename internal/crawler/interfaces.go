package crawler

import (
	"context"
)

// Fetcher performs a static HTTP GET and returns the raw page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Page, error)
}

// Renderer loads a URL in a headless browser and returns the post-script DOM.
type Renderer interface {
	Render(ctx context.Context, url string) (Page, error)
}

// Sink persists the record batches produced for one seed.
type Sink interface {
	Save(ctx context.Context, seed Seed, batches [][]Record) error
}

// Resetter is implemented by sinks whose accumulated output can be cleared.
type Resetter interface {
	Reset(ctx context.Context) error
}

// Checkpoint stores the position of the next unprocessed seed.
type Checkpoint interface {
	// Load returns the next position. ErrConfigMissing means no checkpoint exists.
	Load() (int, error)
	// Advance marks position as handled. It never moves the cursor backwards.
	Advance(position int) error
}

// ErrorLog records per-seed failures keyed by position.
type ErrorLog interface {
	Record(rec ErrorRecord) error
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher pushes per-seed completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Queue provides enqueue/dequeue semantics for dispatched seeds.
type Queue interface {
	Enqueue(ctx context.Context, seed Seed) error
	Dequeue(ctx context.Context) (Seed, error)
	Close()
}

// Hasher computes digests used for object keys and identifiers.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
