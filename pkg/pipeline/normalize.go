package pipeline

import (
	"context"
	"time"

	"github.com/matzehuels/sensortree/pkg/errors"
	"github.com/matzehuels/sensortree/pkg/normalize"
	"github.com/matzehuels/sensortree/pkg/observability"
	"github.com/matzehuels/sensortree/pkg/tree"
)

// Normalize decodes a payload and builds its forest. Decoding and selector
// failures are reported as invalid input; a payload of unknown shape yields
// an empty forest, not an error.
func Normalize(ctx context.Context, payload []byte, opts Options) (*tree.Forest, normalize.Shape, error) {
	hooks := observability.Pipeline()
	hooks.OnNormalizeStart(ctx, opts.Format, len(payload))
	start := time.Now()

	f, shape, err := normalizePayload(payload, opts)
	nodes := 0
	if f != nil {
		nodes = f.Len()
	}
	hooks.OnNormalizeComplete(ctx, shape.String(), nodes, time.Since(start), err)
	return f, shape, err
}

func normalizePayload(payload []byte, opts Options) (*tree.Forest, normalize.Shape, error) {
	raw, err := normalize.Decode(payload, normalize.Format(opts.Format))
	if err != nil {
		return nil, normalize.ShapeUnknown, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode %s payload", opts.Format)
	}
	if opts.Selector != "" {
		raw, err = normalize.Select(raw, opts.Selector)
		if err != nil {
			return nil, normalize.ShapeUnknown, errors.Wrap(errors.ErrCodeInvalidInput, err, "select %q", opts.Selector)
		}
	}
	f, shape := normalize.NormalizeWithShape(raw)
	return f, shape, nil
}
