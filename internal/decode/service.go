package decode

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/tonylturner/diagdecode/internal/schema"
)

// Value is the decoded form of one output parameter.
type Value struct {
	Param string
	Unit  string
	Text  string
	// Number is set only when HasNumber is true.
	Number    float64
	HasNumber bool
	// OutOfBounds marks a number outside the parameter's valid_bounds.
	// It is informational; the value is still returned.
	OutOfBounds bool
	Err         error
}

// Service decodes every output parameter of svc from one response buffer.
// Failures are reported per parameter.
func Service(svc schema.Service, buf []byte) []Value {
	values := make([]Value, 0, len(svc.OutputParams))
	for _, p := range svc.OutputParams {
		values = append(values, Param(p, buf))
	}
	return values
}

// Param decodes a single parameter into a Value.
func Param(p schema.Parameter, buf []byte) Value {
	v := Value{Param: p.Name, Unit: p.Unit}
	text, err := ToString(p, buf)
	if err != nil {
		v.Err = err
		return v
	}
	v.Text = text
	if p.DataFormat != nil && CanPlot(p.DataFormat) {
		if n, err := ToNumber(p, buf); err == nil {
			v.Number = n
			v.HasNumber = true
			v.OutOfBounds = !p.InBounds(n)
		}
	}
	return v
}

// Batch decodes many response buffers for svc using at most workers
// goroutines. Results keep the order of bufs. Decoding stops early when ctx
// is cancelled.
func Batch(ctx context.Context, svc schema.Service, bufs [][]byte, workers int) ([][]Value, error) {
	if workers <= 0 {
		workers = 1
	}
	out := make([][]Value, len(bufs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, buf := range bufs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = Service(svc, buf)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
