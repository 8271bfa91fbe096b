package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Simplici0/coverworks/internal/bulk"
	"github.com/Simplici0/coverworks/internal/catalog"
	"github.com/Simplici0/coverworks/internal/db"
	"github.com/Simplici0/coverworks/internal/pricing"
	"github.com/Simplici0/coverworks/internal/snapshot"
	"github.com/Simplici0/coverworks/internal/variation"
)

const maxBodyBytes = 1 << 20

func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encode json response", slog.String("err", err.Error()))
	}
}

func errorResponse(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// writeError maps engine errors to HTTP statuses.
func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if se, ok := pricing.AsSetupError(err); ok {
		jsonResponse(w, http.StatusUnprocessableEntity, map[string]any{
			"error":              se.Error(),
			"missing_dependency": se.Dependency,
			"guidance":           se.Guidance(),
		})
		return
	}

	var verr *variation.ValidationError
	switch {
	case errors.As(err, &verr):
		jsonResponse(w, http.StatusBadRequest, map[string]any{"error": verr.Error(), "issues": verr.Issues})
	case errors.Is(err, bulk.ErrInvalidScope):
		errorResponse(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, catalog.ErrNotFound):
		errorResponse(w, http.StatusNotFound, err.Error())
	case db.IsTransport(err):
		s.logger.Error("storage failure", slog.String("path", r.URL.Path), slog.String("err", err.Error()))
		errorResponse(w, http.StatusServiceUnavailable, "storage unavailable")
	default:
		s.logger.Error("request failed", slog.String("path", r.URL.Path), slog.String("err", err.Error()))
		errorResponse(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeJSON reads an optional JSON body into dst. An empty body leaves dst untouched.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

func parseModelMarketplace(r *http.Request) (int64, catalog.Marketplace, error) {
	modelID, err := strconv.ParseInt(chi.URLParam(r, "modelID"), 10, 64)
	if err != nil || modelID <= 0 {
		return 0, "", fmt.Errorf("invalid model id %q", chi.URLParam(r, "modelID"))
	}
	mp, err := catalog.ParseMarketplace(chi.URLParam(r, "marketplace"))
	if err != nil {
		return 0, "", err
	}
	return modelID, mp, nil
}

func parseKey(r *http.Request) (snapshot.Key, error) {
	modelID, mp, err := parseModelMarketplace(r)
	if err != nil {
		return snapshot.Key{}, err
	}
	v, err := catalog.ParseVariantKey(chi.URLParam(r, "variant"))
	if err != nil {
		return snapshot.Key{}, err
	}
	return snapshot.Key{ModelID: modelID, Marketplace: mp, Variant: v}, nil
}

func parseVariants(raw []string) ([]catalog.VariantKey, error) {
	out := make([]catalog.VariantKey, 0, len(raw))
	for _, v := range raw {
		key, err := catalog.ParseVariantKey(v)
		if err != nil {
			return nil, err
		}
		out = append(out, key)
	}
	return out, nil
}

func parseIDList(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error("health check failed", slog.String("err", err.Error()))
		jsonResponse(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

type recalculateRequest struct {
	Reason   string   `json:"reason"`
	Variants []string `json:"variants"`
	DryRun   bool     `json:"dry_run"`
}

type recalculateResponse struct {
	ModelID     int64                    `json:"model_id"`
	Marketplace catalog.Marketplace      `json:"marketplace"`
	DryRun      bool                     `json:"dry_run"`
	Results     []snapshot.VariantResult `json:"results"`
}

func (s *server) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	modelID, mp, err := parseModelMarketplace(r)
	if err != nil {
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	var req recalculateRequest
	if err := decodeJSON(r, &req); err != nil {
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	variants, err := parseVariants(req.Variants)
	if err != nil {
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	results, err := s.snapshots.Recalculate(r.Context(), modelID, mp, snapshot.Options{
		Reason:   snapshot.ParseReason(req.Reason),
		Variants: variants,
		DryRun:   req.DryRun,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, recalculateResponse{ModelID: modelID, Marketplace: mp, DryRun: req.DryRun, Results: results})
}

func (s *server) handleStaleCheck(w http.ResponseWriter, r *http.Request) {
	modelID, mp, err := parseModelMarketplace(r)
	if err != nil {
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	apply := false
	if raw := r.URL.Query().Get("apply"); raw != "" {
		if apply, err = strconv.ParseBool(raw); err != nil {
			errorResponse(w, http.StatusBadRequest, fmt.Sprintf("invalid apply flag %q", raw))
			return
		}
	}

	results, err := s.snapshots.CheckStale(r.Context(), modelID, mp, apply)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{
		"model_id":    modelID,
		"marketplace": mp,
		"applied":     apply,
		"variants":    results,
	})
}

func (s *server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	key, err := parseKey(r)
	if err != nil {
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	rec, err := s.snapshots.GetSnapshot(r.Context(), key)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, rec)
}

func (s *server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	key, err := parseKey(r)
	if err != nil {
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	rows, err := s.snapshots.GetHistory(r.Context(), key)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if rows == nil {
		rows = []snapshot.Record{}
	}
	jsonResponse(w, http.StatusOK, rows)
}

func (s *server) handleGetDiff(w http.ResponseWriter, r *http.Request) {
	key, err := parseKey(r)
	if err != nil {
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	diffs, err := s.snapshots.DiffLatest(r.Context(), key)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, diffs)
}

type bulkRequest struct {
	Scope          bulk.Scope `json:"scope"`
	ManufacturerID int64      `json:"manufacturer_id"`
	SeriesID       int64      `json:"series_id"`
	ModelIDs       []int64    `json:"model_ids"`
	Marketplaces   []string   `json:"marketplaces"`
	Variants       []string   `json:"variant_set"`
	DryRun         bool       `json:"dry_run"`
}

func (b bulkRequest) toRequest() (bulk.Request, error) {
	req := bulk.Request{
		Scope:          bulk.Scope(strings.ToLower(strings.TrimSpace(string(b.Scope)))),
		ManufacturerID: b.ManufacturerID,
		SeriesID:       b.SeriesID,
		ModelIDs:       b.ModelIDs,
		DryRun:         b.DryRun,
	}
	for _, raw := range b.Marketplaces {
		mp, err := catalog.ParseMarketplace(raw)
		if err != nil {
			return bulk.Request{}, err
		}
		req.Marketplaces = append(req.Marketplaces, mp)
	}
	variants, err := parseVariants(b.Variants)
	if err != nil {
		return bulk.Request{}, err
	}
	req.Variants = variants
	return req, nil
}

func (s *server) handleBulkRecalculate(w http.ResponseWriter, r *http.Request) {
	var body bulkRequest
	if err := decodeJSON(r, &body); err != nil {
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	req, err := body.toRequest()
	if err != nil {
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.bulk.Run(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, res)
}

func (s *server) handleGenerateVariations(w http.ResponseWriter, r *http.Request) {
	var req variation.Request
	if err := decodeJSON(r, &req); err != nil {
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.variations.Generate(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, res)
}

func (s *server) handleListVariations(w http.ResponseWriter, r *http.Request) {
	ids, err := parseIDList(r.URL.Query().Get("model_ids"))
	if err != nil {
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(ids) == 0 {
		errorResponse(w, http.StatusBadRequest, "model_ids is required")
		return
	}

	rows, err := s.variations.Existing(r.Context(), ids)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{"rows": rows})
}

func (s *server) handleInvalidateRates(w http.ResponseWriter, r *http.Request) {
	s.rates.Invalidate()
	s.logger.Info("rate cache invalidated")
	jsonResponse(w, http.StatusOK, map[string]bool{"invalidated": true})
}
