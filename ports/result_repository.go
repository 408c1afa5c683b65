package ports

import (
	"context"

	"gocausal/domain/causal"
	"gocausal/domain/core"
)

// ResultRepository persists estimation results. The estimation core has no
// dependency on it; orchestration wires it in when a store is configured.
type ResultRepository interface {
	Save(ctx context.Context, result *causal.ATEResult) error
	Get(ctx context.Context, id core.RunID) (*causal.ATEResult, error)
	List(ctx context.Context, limit int) ([]*causal.ATEResult, error)
}
