package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Simplici0/coverworks/internal/catalog"
	"github.com/Simplici0/coverworks/internal/pricing"
)

// Store persists snapshots and history.
type Store interface {
	// SaveCalculation upserts the current snapshot for rec's key and appends a
	// history row in one transaction. It returns the stored history row.
	SaveCalculation(ctx context.Context, rec Record) (Record, error)
	// GetSnapshot returns catalog.ErrNotFound when the key was never calculated.
	GetSnapshot(ctx context.Context, key Key) (Record, error)
	// ListHistory returns newest first; limit <= 0 returns every row.
	ListHistory(ctx context.Context, key Key, limit int) ([]Record, error)
}

// ModelSource reads catalog models.
type ModelSource interface {
	GetModel(ctx context.Context, id int64) (catalog.Model, error)
}

// Pricer prices one (model, marketplace, variant). *pricing.Calculator implements it.
type Pricer interface {
	Calculate(ctx context.Context, req pricing.Request) (pricing.Result, error)
}

// Options controls one recalculation.
type Options struct {
	Reason Reason
	// Variants defaults to all four variant keys.
	Variants []catalog.VariantKey
	// DryRun calculates without writing snapshot or history rows.
	DryRun bool
	// RunID groups history rows written by one trigger; zero generates one.
	RunID uuid.UUID
}

// VariantResult is the outcome for one variant of a recalculation.
type VariantResult struct {
	Variant    catalog.VariantKey `json:"variant_key"`
	OK         bool               `json:"ok"`
	Written    bool               `json:"written"`
	Record     *Record            `json:"record,omitempty"`
	Error      string             `json:"error,omitempty"`
	Dependency pricing.Dependency `json:"missing_dependency,omitempty"`
	Guidance   string             `json:"guidance,omitempty"`
	Err        error              `json:"-"`
}

// Manager recalculates baselines and reads them back.
type Manager struct {
	pricer Pricer
	store  Store
	models ModelSource
	logger *slog.Logger
	now    func() time.Time
}

// NewManager wires a Manager. A nil logger uses slog.Default().
func NewManager(p Pricer, s Store, models ModelSource, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		pricer: p,
		store:  s,
		models: models,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Recalculate prices every requested variant of a model on a marketplace.
//
// A variant whose configuration is incomplete fails on its own and is reported
// in its VariantResult; the others still run. The returned error is non-nil
// only for failures that are not per-variant: an unknown model or a storage
// error. Variants written before a storage error stay written.
func (m *Manager) Recalculate(ctx context.Context, modelID int64, mp catalog.Marketplace, opts Options) ([]VariantResult, error) {
	model, err := m.models.GetModel(ctx, modelID)
	if err != nil {
		return nil, fmt.Errorf("get model %d: %w", modelID, err)
	}
	return m.RecalculateModel(ctx, model, mp, opts)
}

// RecalculateModel is Recalculate for an already loaded model.
func (m *Manager) RecalculateModel(ctx context.Context, model catalog.Model, mp catalog.Marketplace, opts Options) ([]VariantResult, error) {
	variants := opts.Variants
	if len(variants) == 0 {
		variants = catalog.VariantKeys
	}
	if opts.Reason == "" {
		opts.Reason = ReasonManual
	}
	runID := opts.RunID
	if runID == uuid.Nil {
		runID = uuid.New()
	}
	asOf := m.now()

	results := make([]VariantResult, 0, len(variants))
	for _, v := range variants {
		res, err := m.pricer.Calculate(ctx, pricing.Request{Model: model, Marketplace: mp, Variant: v, AsOf: asOf})
		if err != nil {
			se, ok := pricing.AsSetupError(err)
			if !ok {
				return results, fmt.Errorf("calculate %d/%s/%s: %w", model.ID, mp, v, err)
			}
			m.logger.Warn("pricing setup incomplete",
				slog.Int64("model_id", model.ID),
				slog.String("marketplace", string(mp)),
				slog.String("variant", string(v)),
				slog.String("missing", string(se.Dependency)),
			)
			results = append(results, VariantResult{
				Variant:    v,
				Error:      se.Error(),
				Dependency: se.Dependency,
				Guidance:   se.Guidance(),
				Err:        se,
			})
			continue
		}

		rec := newRecord(Key{ModelID: model.ID, Marketplace: mp, Variant: v}, res)
		rec.Reason = opts.Reason
		rec.RunID = runID.String()
		rec.CalculatedAt = asOf

		if !opts.DryRun {
			saved, err := m.store.SaveCalculation(ctx, rec)
			if err != nil {
				return results, fmt.Errorf("save %s: %w", rec.Key(), err)
			}
			rec = saved
		}
		results = append(results, VariantResult{Variant: v, OK: true, Written: !opts.DryRun, Record: &rec})
	}

	m.logger.Info("recalculated model pricing",
		slog.Int64("model_id", model.ID),
		slog.String("marketplace", string(mp)),
		slog.String("run_id", runID.String()),
		slog.String("reason", string(opts.Reason)),
		slog.Bool("dry_run", opts.DryRun),
		slog.Int("failed", countFailed(results)),
	)
	return results, nil
}

func countFailed(results []VariantResult) int {
	n := 0
	for _, r := range results {
		if !r.OK {
			n++
		}
	}
	return n
}

// GetSnapshot returns the current baseline for key.
func (m *Manager) GetSnapshot(ctx context.Context, key Key) (Record, error) {
	return m.store.GetSnapshot(ctx, key)
}

// GetHistory returns every history row for key, newest first.
func (m *Manager) GetHistory(ctx context.Context, key Key) ([]Record, error) {
	return m.store.ListHistory(ctx, key, 0)
}

// DiffLatest compares the two most recent history rows for key. Fewer than two
// rows yields an empty diff.
func (m *Manager) DiffLatest(ctx context.Context, key Key) ([]FieldDiff, error) {
	rows, err := m.store.ListHistory(ctx, key, 2)
	if err != nil {
		return nil, fmt.Errorf("list history %s: %w", key, err)
	}
	if len(rows) < 2 {
		return []FieldDiff{}, nil
	}
	return Diff(rows[1], rows[0]), nil
}
