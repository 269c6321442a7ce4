package embed

import "context"

// Noop is the catalog.Embedder for test runs: it accepts every image and
// returns no vector.
type Noop struct {
	Dim int
}

// Embed returns nil without calling anything.
func (n Noop) Embed(_ context.Context, _ []byte) ([]float32, error) {
	return nil, nil
}

// Dimension reports the configured dimension, defaulting like the client.
func (n Noop) Dimension() int {
	if n.Dim > 0 {
		return n.Dim
	}
	return DefaultDimension
}
