package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Simplici0/coverworks/internal/catalog"
)

// StaleResult reports whether a stored baseline still matches a fresh calculation.
type StaleResult struct {
	Variant      catalog.VariantKey `json:"variant_key"`
	Stale        bool               `json:"stale"`
	NoSnapshot   bool               `json:"no_snapshot"`
	Changes      []FieldDiff        `json:"changes"`
	Recalculated bool               `json:"recalculated"`
	Error        string             `json:"error,omitempty"`
}

// CheckStale recalculates every variant in dry-run and compares it with the
// stored snapshot. With apply, stale variants are written with ReasonStaleCheck.
func (m *Manager) CheckStale(ctx context.Context, modelID int64, mp catalog.Marketplace, apply bool) ([]StaleResult, error) {
	model, err := m.models.GetModel(ctx, modelID)
	if err != nil {
		return nil, fmt.Errorf("get model %d: %w", modelID, err)
	}

	fresh, err := m.RecalculateModel(ctx, model, mp, Options{Reason: ReasonStaleCheck, DryRun: true})
	if err != nil {
		return nil, err
	}

	out := make([]StaleResult, 0, len(fresh))
	var stale []catalog.VariantKey
	for _, f := range fresh {
		res := StaleResult{Variant: f.Variant, Changes: []FieldDiff{}}
		if !f.OK {
			res.Error = f.Error
			out = append(out, res)
			continue
		}

		current, err := m.store.GetSnapshot(ctx, f.Record.Key())
		switch {
		case errors.Is(err, catalog.ErrNotFound):
			res.Stale, res.NoSnapshot = true, true
		case err != nil:
			return nil, fmt.Errorf("get snapshot %s: %w", f.Record.Key(), err)
		default:
			res.Changes = Diff(current, *f.Record)
			res.Stale = len(res.Changes) > 0
		}
		if res.Stale {
			stale = append(stale, f.Variant)
		}
		out = append(out, res)
	}

	if apply && len(stale) > 0 {
		written, err := m.RecalculateModel(ctx, model, mp, Options{Reason: ReasonStaleCheck, Variants: stale})
		if err != nil {
			return nil, err
		}
		ok := map[catalog.VariantKey]bool{}
		for _, w := range written {
			ok[w.Variant] = w.OK
		}
		for i := range out {
			out[i].Recalculated = ok[out[i].Variant]
		}
	}

	m.logger.Info("stale check",
		slog.Int64("model_id", modelID),
		slog.String("marketplace", string(mp)),
		slog.Int("stale", len(stale)),
		slog.Bool("apply", apply),
	)
	return out, nil
}
