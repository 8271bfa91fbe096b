// Package bulk recalculates pricing baselines for every model in a
// manufacturer, a series or an explicit id list, across marketplaces.
package bulk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Simplici0/coverworks/internal/catalog"
	"github.com/Simplici0/coverworks/internal/db"
	"github.com/Simplici0/coverworks/internal/pricing"
	"github.com/Simplici0/coverworks/internal/snapshot"
)

// ErrInvalidScope is returned when a scope lacks the identifier it needs.
var ErrInvalidScope = errors.New("invalid bulk scope")

// Scope selects how models are resolved.
type Scope string

const (
	ScopeManufacturer Scope = "manufacturer"
	ScopeSeries       Scope = "series"
	ScopeModels       Scope = "models"
)

// Request describes one bulk run.
type Request struct {
	Scope          Scope   `json:"scope"`
	ManufacturerID int64   `json:"manufacturer_id,omitempty"`
	SeriesID       int64   `json:"series_id,omitempty"`
	ModelIDs       []int64 `json:"model_ids,omitempty"`
	// Marketplaces defaults to every marketplace.
	Marketplaces []catalog.Marketplace `json:"marketplaces,omitempty"`
	// Variants defaults to all four variant keys.
	Variants []catalog.VariantKey `json:"variant_set,omitempty"`
	DryRun   bool                 `json:"dry_run"`
}

// Failure is one model that did not fully price on a marketplace.
type Failure struct {
	ModelID    int64              `json:"model_id"`
	Error      string             `json:"error"`
	Dependency pricing.Dependency `json:"missing_dependency,omitempty"`
	Variant    catalog.VariantKey `json:"variant_key,omitempty"`
}

// MarketplaceResult groups outcomes for one marketplace.
type MarketplaceResult struct {
	Succeeded []int64   `json:"succeeded"`
	Failed    []Failure `json:"failed"`
}

// Result is the outcome of a bulk run.
type Result struct {
	RunID              string                                    `json:"run_id"`
	ResolvedModelCount int                                       `json:"resolved_model_count"`
	MissingModelIDs    []int64                                   `json:"missing_model_ids,omitempty"`
	DryRun             bool                                      `json:"dry_run"`
	Marketplaces       map[catalog.Marketplace]*MarketplaceResult `json:"marketplaces"`
}

// ModelLister resolves scopes to models.
type ModelLister interface {
	ListModels(ctx context.Context, filter catalog.ModelFilter) ([]catalog.Model, error)
}

// Recalculator prices one model on one marketplace. *snapshot.Manager implements it.
type Recalculator interface {
	RecalculateModel(ctx context.Context, model catalog.Model, mp catalog.Marketplace, opts snapshot.Options) ([]snapshot.VariantResult, error)
}

// Orchestrator fans a bulk request out over a bounded worker pool.
type Orchestrator struct {
	models  ModelLister
	recalc  Recalculator
	workers int
	logger  *slog.Logger
}

// New returns an Orchestrator running at most workers units at once.
func New(models ModelLister, recalc Recalculator, workers int, logger *slog.Logger) *Orchestrator {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{models: models, recalc: recalc, workers: workers, logger: logger}
}

// Run recalculates every resolved model on every requested marketplace.
//
// Setup failures are recorded per model and marketplace and never stop the
// run. A storage failure aborts the run and is returned; units already written
// stay written.
func (o *Orchestrator) Run(ctx context.Context, req Request) (Result, error) {
	filter, err := req.filter()
	if err != nil {
		return Result{}, err
	}

	marketplaces := req.marketplaces()
	runID := uuid.New()
	res := Result{
		RunID:        runID.String(),
		DryRun:       req.DryRun,
		Marketplaces: make(map[catalog.Marketplace]*MarketplaceResult, len(marketplaces)),
	}
	for _, mp := range marketplaces {
		res.Marketplaces[mp] = &MarketplaceResult{Succeeded: []int64{}, Failed: []Failure{}}
	}

	models, err := o.models.ListModels(ctx, filter)
	if err != nil {
		return Result{}, fmt.Errorf("resolve %s scope: %w", req.Scope, err)
	}
	res.ResolvedModelCount = len(models)
	res.MissingModelIDs = missingIDs(req.requestedIDs(), models)

	log := o.logger.With(
		slog.String("run_id", res.RunID),
		slog.String("scope", string(req.Scope)),
		slog.Bool("dry_run", req.DryRun),
	)
	if len(models) == 0 {
		log.Info("bulk recalculation resolved no models")
		return res, nil
	}

	start := time.Now()
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)

	for _, m := range models {
		for _, mp := range marketplaces {
			g.Go(func() error {
				opts := snapshot.Options{Reason: snapshot.ReasonBulk, Variants: req.Variants, DryRun: req.DryRun, RunID: runID}
				results, err := o.recalc.RecalculateModel(gctx, m, mp, opts)
				if err != nil && (db.IsTransport(err) || gctx.Err() != nil) {
					return fmt.Errorf("recalculate model %d on %s: %w", m.ID, mp, err)
				}

				mu.Lock()
				defer mu.Unlock()
				out := res.Marketplaces[mp]
				if f, failed := classify(m.ID, results, err); failed {
					out.Failed = append(out.Failed, f)
					log.Warn("bulk unit failed",
						slog.Int64("model_id", m.ID),
						slog.String("marketplace", string(mp)),
						slog.String("missing", string(f.Dependency)),
						slog.String("err", f.Error),
					)
					return nil
				}
				out.Succeeded = append(out.Succeeded, m.ID)
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		log.Error("bulk recalculation aborted", slog.String("err", err.Error()))
		return res, err
	}

	failed := 0
	for _, out := range res.Marketplaces {
		slices.Sort(out.Succeeded)
		sort.Slice(out.Failed, func(i, j int) bool { return out.Failed[i].ModelID < out.Failed[j].ModelID })
		failed += len(out.Failed)
	}
	log.Info("bulk recalculation finished",
		slog.Int("models", len(models)),
		slog.Int("marketplaces", len(marketplaces)),
		slog.Int("failed_units", failed),
		slog.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

// classify reduces one unit's variant results to a failure, if any variant failed.
func classify(modelID int64, results []snapshot.VariantResult, err error) (Failure, bool) {
	if err != nil {
		return Failure{ModelID: modelID, Error: err.Error()}, true
	}
	for _, r := range results {
		if !r.OK {
			return Failure{ModelID: modelID, Error: r.Error, Dependency: r.Dependency, Variant: r.Variant}, true
		}
	}
	return Failure{}, false
}

func (r Request) filter() (catalog.ModelFilter, error) {
	switch r.Scope {
	case ScopeManufacturer:
		if r.ManufacturerID <= 0 {
			return catalog.ModelFilter{}, fmt.Errorf("%w: manufacturer scope requires manufacturer_id", ErrInvalidScope)
		}
		return catalog.ModelFilter{ManufacturerID: r.ManufacturerID}, nil
	case ScopeSeries:
		if r.SeriesID <= 0 {
			return catalog.ModelFilter{}, fmt.Errorf("%w: series scope requires series_id", ErrInvalidScope)
		}
		return catalog.ModelFilter{SeriesID: r.SeriesID}, nil
	case ScopeModels:
		ids := make([]int64, 0, len(r.ModelIDs))
		for _, id := range r.ModelIDs {
			if id > 0 {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			return catalog.ModelFilter{}, fmt.Errorf("%w: models scope requires model_ids", ErrInvalidScope)
		}
		slices.Sort(ids)
		return catalog.ModelFilter{IDs: slices.Compact(ids)}, nil
	}
	return catalog.ModelFilter{}, fmt.Errorf("%w: unknown scope %q", ErrInvalidScope, r.Scope)
}

// requestedIDs returns the models scope's ids, unique and ascending, including
// non-positive ids that can never resolve.
func (r Request) requestedIDs() []int64 {
	if r.Scope != ScopeModels {
		return nil
	}
	ids := slices.Clone(r.ModelIDs)
	slices.Sort(ids)
	return slices.Compact(ids)
}

func (r Request) marketplaces() []catalog.Marketplace {
	if len(r.Marketplaces) == 0 {
		return catalog.Marketplaces
	}
	seen := map[catalog.Marketplace]bool{}
	out := make([]catalog.Marketplace, 0, len(r.Marketplaces))
	for _, mp := range r.Marketplaces {
		if !seen[mp] {
			seen[mp] = true
			out = append(out, mp)
		}
	}
	return out
}

func missingIDs(requested []int64, found []catalog.Model) []int64 {
	if len(requested) == 0 {
		return nil
	}
	have := make(map[int64]bool, len(found))
	for _, m := range found {
		have[m.ID] = true
	}
	var missing []int64
	for _, id := range requested {
		if !have[id] {
			missing = append(missing, id)
		}
	}
	return missing
}
