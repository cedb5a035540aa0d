// Package planner turns a listing of objects into the fixed job list of a run.
package planner

import (
	"context"
	"fmt"

	"github.com/getpup/pupsourcing-replay"
	"github.com/getpup/pupsourcing-replay/batch"
	"github.com/getpup/pupsourcing-replay/payload"
	"github.com/getpup/pupsourcing/es"
)

// DefaultMaxBatchBytes is the default batch size cap (about 2MB).
const DefaultMaxBatchBytes int64 = 2_000_000

// Config holds configuration for the Planner.
type Config struct {
	// Functions are the target function identifiers (required).
	// Every batch is replayed against each of them.
	Functions []string

	// MaxBatchBytes caps the total object size per batch (default: 2,000,000).
	MaxBatchBytes int64

	// Logger is for observability (optional).
	Logger es.Logger
}

// Planner builds the job list for a run.
type Planner struct {
	config Config
}

// New creates a new Planner with the given configuration.
// Applies the default MaxBatchBytes if zero.
func New(cfg Config) *Planner {
	if cfg.MaxBatchBytes == 0 {
		cfg.MaxBatchBytes = DefaultMaxBatchBytes
	}

	return &Planner{
		config: cfg,
	}
}

// Plan batches the objects and creates one job per (batch, function) pair.
// Jobs are ordered batch-major: all functions of batch 0 first, then batch 1.
// Job ids are assigned densely from 0 in that order.
// Returns an empty job list for an empty listing.
func (p *Planner) Plan(ctx context.Context, objects []replay.ObjectRef) ([]replay.Job, error) {
	if len(p.config.Functions) == 0 {
		return nil, replay.ErrNoFunctions
	}
	if p.config.MaxBatchBytes < 0 {
		return nil, replay.ErrInvalidBatchSize
	}

	batches := batch.Build(objects, p.config.MaxBatchBytes)
	jobs := make([]replay.Job, 0, len(batches)*len(p.config.Functions))

	for i, b := range batches {
		data, err := payload.Encode(b)
		if err != nil {
			return nil, fmt.Errorf("failed to encode batch %d: %w", i, err)
		}

		for _, fn := range p.config.Functions {
			jobs = append(jobs, replay.Job{
				ID:       len(jobs),
				Function: fn,
				Label:    b.Label(),
				Payload:  data,
			})
		}

		if p.config.Logger != nil {
			p.config.Logger.Debug(ctx, "batch planned",
				"batch", i,
				"objects", len(b.Objects),
				"bytes", b.Size(),
				"jobs", len(jobs))
		}
	}

	if p.config.Logger != nil {
		p.config.Logger.Info(ctx, "all batches created",
			"objects", len(objects),
			"batches", len(batches),
			"functions", len(p.config.Functions),
			"jobs", len(jobs))
	}

	return jobs, nil
}
