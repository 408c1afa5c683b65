package estimator

import (
	"context"
	"math/rand"
	"runtime"

	"gocausal/domain/causal"
	"gocausal/internal/errors"

	"golang.org/x/sync/errgroup"
)

// bootstrap reruns the point estimate on datasets resampled with
// replacement. Each replicate is an independent unit of work with its own
// seeded RNG, so results do not depend on scheduling order. Variance and
// interval summarization are the caller's job.
func (e *ATEEstimator) bootstrap(ctx context.Context, ds *causal.Dataset, cfg causal.EstimateConfig) ([]float64, error) {
	workers := cfg.BootstrapWorkers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	replicates := make([]float64, cfg.BootstrapReplicates)
	failed := make([]bool, cfg.BootstrapReplicates)

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for r := 0; r < cfg.BootstrapReplicates; r++ {
		r := r
		g.Go(func() error {
			rng := rand.New(rand.NewSource(cfg.Seed + int64(r)))
			sample := resample(ds, rng)
			if sample.TreatedCount() == 0 || sample.ControlCount() == 0 {
				// A resample can lose an arm on small data; the replicate is
				// dropped rather than failing the whole run.
				failed[r] = true
				return nil
			}
			point, _, err := e.estimateOnce(sample, cfg)
			if err != nil {
				failed[r] = true
				return nil
			}
			replicates[r] = point
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]float64, 0, cfg.BootstrapReplicates)
	dropped := 0
	for r, v := range replicates {
		if failed[r] {
			dropped++
			continue
		}
		out = append(out, v)
	}
	if dropped > 0 {
		e.logger.Warn("bootstrap: dropped %d of %d replicates", dropped, cfg.BootstrapReplicates)
	}
	if len(out) == 0 {
		return nil, errors.InsufficientData("every bootstrap replicate failed").
			WithDetail("replicates", cfg.BootstrapReplicates)
	}
	return out, nil
}

// resample draws len(ds) units with replacement, reindexing so the sample is
// a self-contained dataset.
func resample(ds *causal.Dataset, rng *rand.Rand) *causal.Dataset {
	n := ds.Len()
	units := make([]causal.Unit, n)
	for i := 0; i < n; i++ {
		u := ds.Units[rng.Intn(n)]
		u.Index = i
		units[i] = u
	}
	return &causal.Dataset{Names: ds.Names, Units: units}
}
