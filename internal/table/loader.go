package table

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/nlstn/go-datagrid/internal/record"
)

// DefaultSampleSize is the number of products a SampleLoader generates when
// no count is configured.
const DefaultSampleSize = 45

// Loader produces a complete replacement record set for a refresh.
// Implementations should return promptly once ctx is cancelled.
type Loader interface {
	Load(ctx context.Context) ([]record.Product, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context) ([]record.Product, error)

// Load implements Loader.
func (f LoaderFunc) Load(ctx context.Context) ([]record.Product, error) {
	return f(ctx)
}

// SampleLoader generates fresh sample products after an optional simulated
// latency.
type SampleLoader struct {
	Count   int
	Latency time.Duration
	// NewRand returns the generator for one load. Nil uses a randomly seeded PCG.
	NewRand func() *rand.Rand
}

// Load implements Loader.
func (l SampleLoader) Load(ctx context.Context) ([]record.Product, error) {
	if l.Latency > 0 {
		timer := time.NewTimer(l.Latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}

	count := l.Count
	if count <= 0 {
		count = DefaultSampleSize
	}
	var rng *rand.Rand
	if l.NewRand != nil {
		rng = l.NewRand()
	}
	return record.GenerateSample(rng, count), nil
}
