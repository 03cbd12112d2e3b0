// Package resolver orchestrates parcel resolution for one request: tokens
// are batched against the Parcels layer, addresses go through the Address
// layer first, and everything is merged into a single deduplicated result.
package resolver

import (
	"context"
	"log/slog"
	"sync"

	"parcel-agent/internal/metrics"
	"parcel-agent/internal/models"
)

// ParcelSource is the upstream lookup contract the resolver drives,
// implemented by the arcgis client.
type ParcelSource interface {
	ResolveAddress(ctx context.Context, q models.AddressQuery, relax bool) ([]models.LotPlan, *models.Point, error)
	FetchParcels(ctx context.Context, tokens []models.LotPlan) ([]models.ParcelFeature, error)
	FetchParcelsAtPoint(ctx context.Context, pt models.Point) ([]models.ParcelFeature, error)
}

// State tags where a resolution run ended up. Transitions are
// pending -> resolving -> merging -> done | partial.
type State int

const (
	StatePending State = iota
	StateResolving
	StateMerging
	StateDone
	StatePartial
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateResolving:
		return "resolving"
	case StateMerging:
		return "merging"
	case StateDone:
		return "done"
	case StatePartial:
		return "partial"
	default:
		return "unknown"
	}
}

const defaultBatchSize = 25

// Resolver resolves token and address requests against a ParcelSource.
// It holds no per-request state; every call gets its own result.
type Resolver struct {
	source    ParcelSource
	batchSize int
	log       *slog.Logger
}

// New creates a Resolver. batchSize bounds how many tokens go into one
// upstream attribute filter; zero selects the default.
func New(source ParcelSource, batchSize int, log *slog.Logger) *Resolver {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{source: source, batchSize: batchSize, log: log}
}

// ResolveTokens fetches parcels for the given tokens, issuing one upstream
// query per batch concurrently and joining before the merge. A batch that
// fails after retries marks only its own tokens as failed; the rest of the
// request proceeds.
func (r *Resolver) ResolveTokens(ctx context.Context, tokens []models.LotPlan) (*models.ResolutionResult, State) {
	result := &models.ResolutionResult{}
	state := StatePending
	if len(tokens) == 0 {
		return result, StateDone
	}

	batches := splitBatches(tokens, r.batchSize)
	state = r.transition(state, StateResolving)

	type batchOutcome struct {
		tokens  []models.LotPlan
		parcels []models.ParcelFeature
		err     error
	}
	outcomes := make([]batchOutcome, len(batches))

	var wg sync.WaitGroup
	for i, batch := range batches {
		wg.Add(1)
		go func(i int, batch []models.LotPlan) {
			defer wg.Done()
			parcels, err := r.source.FetchParcels(ctx, batch)
			outcomes[i] = batchOutcome{tokens: batch, parcels: parcels, err: err}
		}(i, batch)
	}
	wg.Wait()

	state = r.transition(state, StateMerging)
	for _, o := range outcomes {
		if o.err != nil {
			r.log.Warn("batch failed, tokens recorded as unresolved",
				"tokens", len(o.tokens), "error", o.err)
			result.AddFailed(o.tokens...)
			continue
		}
		for _, p := range o.parcels {
			result.Add(p)
		}
	}

	metrics.ParcelsResolvedTotal.Add(float64(len(result.Parcels)))
	metrics.TokensFailedTotal.Add(float64(len(result.Failed)))

	if len(result.Failed) > 0 {
		return result, r.transition(state, StatePartial)
	}
	return result, r.transition(state, StateDone)
}

// ResolveAddress resolves a structured address into parcels: Address layer
// first for lot/plan tokens, then the token path, then a point-intersection
// fallback when the address located coordinates but its lot/plans matched
// no parcels. Zero address matches produce a clean empty result, not an
// error; an Address layer failure fails the whole request since there is
// nothing else to go on.
func (r *Resolver) ResolveAddress(ctx context.Context, q models.AddressQuery, relax bool) (*models.ResolutionResult, State, error) {
	tokens, pt, err := r.source.ResolveAddress(ctx, q, relax)
	if err != nil {
		return nil, StatePending, err
	}
	if len(tokens) == 0 && pt == nil {
		return &models.ResolutionResult{}, StateDone, nil
	}

	result, state := r.ResolveTokens(ctx, tokens)

	if result.Empty() && pt != nil {
		parcels, err := r.source.FetchParcelsAtPoint(ctx, *pt)
		if err != nil {
			r.log.Warn("point fallback failed", "error", err)
		} else {
			for _, p := range parcels {
				result.Add(p)
			}
		}
	}

	return result, state, nil
}

func (r *Resolver) transition(from, to State) State {
	r.log.Debug("resolution state", "from", from.String(), "to", to.String())
	return to
}

// splitBatches chunks tokens so each upstream filter stays within the
// configured batch size.
func splitBatches(tokens []models.LotPlan, size int) [][]models.LotPlan {
	var batches [][]models.LotPlan
	for len(tokens) > size {
		batches = append(batches, tokens[:size])
		tokens = tokens[size:]
	}
	if len(tokens) > 0 {
		batches = append(batches, tokens)
	}
	return batches
}
