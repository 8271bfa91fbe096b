package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Simplici0/coverworks/internal/db"
	"github.com/Simplici0/coverworks/internal/variation"
)

// SaveVariations upserts rows by (model_id, sku) in one transaction. An
// existing row keeps its id and created_at.
func (s *Store) SaveVariations(ctx context.Context, rows []variation.Row) (variation.SaveResult, error) {
	res := variation.SaveResult{Rows: make([]variation.Row, 0, len(rows))}
	now := s.now()

	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, r := range rows {
			options, err := json.Marshal(nonNilIDs(r.DesignOptionIDs))
			if err != nil {
				return fmt.Errorf("encode design options for %s: %w", r.SKU, err)
			}

			var (
				id      int64
				created string
			)
			err = tx.QueryRowContext(ctx, `
				SELECT id, created_at FROM ebay_variations WHERE model_id = ? AND sku = ?
			`, r.ModelID, r.SKU).Scan(&id, &created)
			switch {
			case errors.Is(err, sql.ErrNoRows):
				out, err := tx.ExecContext(ctx, `
					INSERT INTO ebay_variations (model_id, sku, role, padded, material_id, material_colour_surcharge_id,
						design_option_ids, created_at, updated_at)
					VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
				`, r.ModelID, r.SKU, r.Role, r.Padded, r.MaterialID, surchargeArg(r.MaterialColourSurchargeID),
					string(options), formatTime(now), formatTime(now))
				if err != nil {
					return db.Transport("insert variation "+r.SKU, err)
				}
				if r.ID, err = out.LastInsertId(); err != nil {
					return db.Transport("insert variation "+r.SKU, err)
				}
				r.CreatedAt = now
				res.Created++
			case err != nil:
				return db.Transport("find variation "+r.SKU, err)
			default:
				_, err := tx.ExecContext(ctx, `
					UPDATE ebay_variations
					SET role = ?, padded = ?, material_id = ?, material_colour_surcharge_id = ?, design_option_ids = ?, updated_at = ?
					WHERE id = ?
				`, r.Role, r.Padded, r.MaterialID, surchargeArg(r.MaterialColourSurchargeID), string(options), formatTime(now), id)
				if err != nil {
					return db.Transport("update variation "+r.SKU, err)
				}
				r.ID = id
				if r.CreatedAt, err = parseTime(created); err != nil {
					return db.Transport("parse variation "+r.SKU, err)
				}
				res.Updated++
			}
			r.UpdatedAt = now
			r.DesignOptionIDs = nonNilIDs(r.DesignOptionIDs)
			res.Rows = append(res.Rows, r)
		}
		return nil
	})
	if err != nil {
		return variation.SaveResult{}, err
	}
	return res, nil
}

// ListVariations returns stored rows for the models ordered by model and SKU.
func (s *Store) ListVariations(ctx context.Context, modelIDs []int64) ([]variation.Row, error) {
	out := []variation.Row{}
	if len(modelIDs) == 0 {
		return out, nil
	}

	ph, args := placeholders(modelIDs)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, model_id, sku, role, padded, material_id, material_colour_surcharge_id, design_option_ids, created_at, updated_at
		FROM ebay_variations WHERE model_id IN (`+ph+`)
		ORDER BY model_id, sku
	`, args...)
	if err != nil {
		return nil, db.Transport("list variations", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			r                variation.Row
			surcharge        sql.NullInt64
			options          string
			created, updated string
		)
		if err := rows.Scan(&r.ID, &r.ModelID, &r.SKU, &r.Role, &r.Padded, &r.MaterialID, &surcharge, &options, &created, &updated); err != nil {
			return nil, db.Transport("scan variation", err)
		}
		if surcharge.Valid {
			id := surcharge.Int64
			r.MaterialColourSurchargeID = &id
		}
		if err := json.Unmarshal([]byte(options), &r.DesignOptionIDs); err != nil {
			return nil, db.Transport("decode variation design options", err)
		}
		r.DesignOptionIDs = nonNilIDs(r.DesignOptionIDs)
		if r.CreatedAt, err = parseTime(created); err != nil {
			return nil, db.Transport("parse variation", err)
		}
		if r.UpdatedAt, err = parseTime(updated); err != nil {
			return nil, db.Transport("parse variation", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Transport("iterate variations", err)
	}
	return out, nil
}

func surchargeArg(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

func nonNilIDs(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
