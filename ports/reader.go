package ports

import (
	"context"

	"gocausal/domain/causal"
)

// DatasetReader loads an observational dataset using a caller-supplied
// column-role schema. Implementations never infer roles from the data.
type DatasetReader interface {
	Read(ctx context.Context, schema causal.Schema) (*causal.Dataset, error)
}
