package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Simplici0/coverworks/internal/catalog"
	"github.com/Simplici0/coverworks/internal/config"
	"github.com/Simplici0/coverworks/internal/store"
	"github.com/Simplici0/coverworks/internal/store/storetest"
)

const testAdminKey = "test-admin-key"

type testServer struct {
	handler http.Handler
	store   *store.Store
	fixture storetest.Fixture
}

func newTestServer(t *testing.T) testServer {
	t.Helper()

	s, database := storetest.Open(t)
	f := storetest.Seed(t, s)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := newServer(database, config.Config{AdminAPIKey: testAdminKey, BulkWorkers: 2}, logger)
	return testServer{handler: srv.routes(), store: s, fixture: f}
}

func (ts testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(adminKeyHeader, testAdminKey)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()

	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func (ts testServer) pricingPath(modelID int64, mp catalog.Marketplace, suffix string) string {
	return fmt.Sprintf("/api/pricing/models/%d/marketplaces/%s%s", modelID, mp, suffix)
}

func TestHealthzSkipsAdminKey(t *testing.T) {
	ts := newTestServer(t)

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAPIRejectsMissingOrWrongAdminKey(t *testing.T) {
	ts := newTestServer(t)

	for _, key := range []string{"", "wrong"} {
		req := httptest.NewRequest(http.MethodPost, "/api/rates/cache/invalidate", nil)
		if key != "" {
			req.Header.Set(adminKeyHeader, key)
		}
		rec := httptest.NewRecorder()
		ts.handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("key %q: expected 401, got %d", key, rec.Code)
		}
	}
}

func TestValidAdminKeyRejectsUnsetKey(t *testing.T) {
	if validAdminKey("", "") {
		t.Fatalf("expected empty configured key to reject an empty header")
	}
	if validAdminKey("", "anything") {
		t.Fatalf("expected empty configured key to reject every header")
	}
	if !validAdminKey("secret", " secret ") {
		t.Fatalf("expected matching key to pass")
	}
}

func TestRecalculateThenReadSnapshotHistoryAndDiff(t *testing.T) {
	ts := newTestServer(t)
	modelID := ts.fixture.ModelIDs[0]

	rec := ts.do(t, http.MethodPost, ts.pricingPath(modelID, catalog.Ebay, "/recalculate"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("recalculate: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var recalc recalculateResponse
	decodeBody(t, rec, &recalc)
	if len(recalc.Results) != 4 {
		t.Fatalf("expected 4 variant results, got %d", len(recalc.Results))
	}
	for _, r := range recalc.Results {
		if !r.OK || !r.Written {
			t.Fatalf("variant %s not written: %+v", r.Variant, r)
		}
	}

	snapPath := ts.pricingPath(modelID, catalog.Ebay, "/variants/choice_no_padding")
	rec = ts.do(t, http.MethodGet, snapPath, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get snapshot: expected 200, got %d", rec.Code)
	}
	var snap struct {
		RetailPriceCents int64  `json:"retail_price_cents"`
		BaseCostCents    int64  `json:"base_cost_cents"`
		Reason           string `json:"reason"`
	}
	decodeBody(t, rec, &snap)
	if snap.RetailPriceCents != 4254 || snap.BaseCostCents != 2490 || snap.Reason != "manual" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	rec = ts.do(t, http.MethodGet, snapPath+"/diff", nil)
	var diffs []map[string]any
	decodeBody(t, rec, &diffs)
	if len(diffs) != 0 {
		t.Fatalf("expected empty diff after one calculation, got %+v", diffs)
	}

	if err := ts.store.UpdateMaterialCost(t.Context(), ts.fixture.Materials[catalog.RoleChoiceFabric], 0.5); err != nil {
		t.Fatalf("update material cost: %v", err)
	}
	body := map[string]any{"variants": []string{"choice_no_padding"}, "reason": "manual"}
	if rec = ts.do(t, http.MethodPost, ts.pricingPath(modelID, catalog.Ebay, "/recalculate"), body); rec.Code != http.StatusOK {
		t.Fatalf("second recalculate: expected 200, got %d", rec.Code)
	}

	rec = ts.do(t, http.MethodGet, snapPath+"/history", nil)
	var history []map[string]any
	decodeBody(t, rec, &history)
	if len(history) != 2 {
		t.Fatalf("expected 2 history rows, got %d", len(history))
	}
	if history[0]["retail_price_cents"].(float64) != 4380 {
		t.Fatalf("expected newest history row first, got %+v", history[0])
	}

	rec = ts.do(t, http.MethodGet, snapPath+"/diff", nil)
	decodeBody(t, rec, &diffs)
	found := false
	for _, d := range diffs {
		if d["field_name"] == "retail_price_cents" {
			found = true
			if d["direction"] != "increase" {
				t.Fatalf("expected increase, got %+v", d)
			}
		}
	}
	if !found {
		t.Fatalf("expected retail_price_cents in diff, got %+v", diffs)
	}
}

func TestPricingErrorStatuses(t *testing.T) {
	ts := newTestServer(t)
	modelID := ts.fixture.ModelIDs[0]

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"unknown marketplace", http.MethodPost, fmt.Sprintf("/api/pricing/models/%d/marketplaces/walmart/recalculate", modelID), nil, http.StatusBadRequest},
		{"bad model id", http.MethodPost, "/api/pricing/models/abc/marketplaces/ebay/recalculate", nil, http.StatusBadRequest},
		{"unknown variant", http.MethodGet, ts.pricingPath(modelID, catalog.Ebay, "/variants/deluxe"), nil, http.StatusBadRequest},
		{"unknown model", http.MethodPost, ts.pricingPath(9999, catalog.Ebay, "/recalculate"), nil, http.StatusNotFound},
		{"missing snapshot", http.MethodGet, ts.pricingPath(modelID, catalog.Etsy, "/variants/premium_padded"), nil, http.StatusNotFound},
		{"bad stale flag", http.MethodPost, ts.pricingPath(modelID, catalog.Ebay, "/stale-check?apply=maybe"), nil, http.StatusBadRequest},
		{"unknown body field", http.MethodPost, ts.pricingPath(modelID, catalog.Ebay, "/recalculate"), map[string]any{"variantz": []string{}}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		rec := ts.do(t, tc.method, tc.path, tc.body)
		if rec.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d: %s", tc.name, tc.want, rec.Code, rec.Body.String())
		}
	}
}

func TestStaleCheckApply(t *testing.T) {
	ts := newTestServer(t)
	modelID := ts.fixture.ModelIDs[1]

	if rec := ts.do(t, http.MethodPost, ts.pricingPath(modelID, catalog.Amazon, "/recalculate"), nil); rec.Code != http.StatusOK {
		t.Fatalf("recalculate: expected 200, got %d", rec.Code)
	}
	if err := ts.store.UpdateMaterialCost(t.Context(), ts.fixture.Materials[catalog.RolePremiumFabric], 1.2); err != nil {
		t.Fatalf("update material cost: %v", err)
	}

	rec := ts.do(t, http.MethodPost, ts.pricingPath(modelID, catalog.Amazon, "/stale-check?apply=true"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stale-check: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var out struct {
		Applied  bool `json:"applied"`
		Variants []struct {
			Variant      string `json:"variant_key"`
			Stale        bool   `json:"stale"`
			Recalculated bool   `json:"recalculated"`
		} `json:"variants"`
	}
	decodeBody(t, rec, &out)
	if !out.Applied || len(out.Variants) != 4 {
		t.Fatalf("unexpected stale-check response: %+v", out)
	}
	for _, v := range out.Variants {
		premium := v.Variant == "premium_no_padding" || v.Variant == "premium_padded"
		if v.Stale != premium || v.Recalculated != premium {
			t.Fatalf("variant %s: stale=%v recalculated=%v", v.Variant, v.Stale, v.Recalculated)
		}
	}
}

func TestBulkEndpoint(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/pricing/bulk", map[string]any{"scope": "manufacturer"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing manufacturer_id: expected 400, got %d", rec.Code)
	}

	rec = ts.do(t, http.MethodPost, "/api/pricing/bulk", map[string]any{"scope": "series", "series_id": ts.fixture.SeriesID, "marketplaces": []string{"ebay", "walmart"}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown marketplace: expected 400, got %d", rec.Code)
	}

	rec = ts.do(t, http.MethodPost, "/api/pricing/bulk", map[string]any{
		"scope":        "series",
		"series_id":    ts.fixture.SeriesID,
		"marketplaces": []string{"reverb"},
		"variant_set":  []string{"choice_no_padding", "choice_padded"},
		"dry_run":      true,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("bulk: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var res struct {
		ResolvedModelCount int  `json:"resolved_model_count"`
		DryRun             bool `json:"dry_run"`
		Marketplaces       map[string]struct {
			Succeeded []int64 `json:"succeeded"`
			Failed    []any   `json:"failed"`
		} `json:"marketplaces"`
	}
	decodeBody(t, rec, &res)
	if res.ResolvedModelCount != 3 || !res.DryRun {
		t.Fatalf("unexpected bulk result: %+v", res)
	}
	if got := res.Marketplaces["reverb"]; len(got.Succeeded) != 3 || len(got.Failed) != 0 {
		t.Fatalf("unexpected reverb outcome: %+v", got)
	}
}

func TestVariationEndpoints(t *testing.T) {
	ts := newTestServer(t)
	f := ts.fixture

	rec := ts.do(t, http.MethodPost, "/api/variations/generate", map[string]any{
		"model_ids":  []int64{f.ModelIDs[0]},
		"roles":      []string{catalog.RoleChoiceFabric},
		"colour_ids": map[string][]int64{catalog.RoleChoiceFabric: {f.DisabledColourID}},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid colour: expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	var invalid struct {
		Issues []struct {
			Code string `json:"code"`
			ID   int64  `json:"id"`
		} `json:"issues"`
	}
	decodeBody(t, rec, &invalid)
	if len(invalid.Issues) != 1 || invalid.Issues[0].Code != "invalid_color_id" || invalid.Issues[0].ID != f.DisabledColourID {
		t.Fatalf("unexpected issues: %+v", invalid.Issues)
	}

	req := map[string]any{
		"model_ids":         []int64{f.ModelIDs[0]},
		"roles":             []string{catalog.RoleChoiceFabric},
		"colour_ids":        map[string][]int64{catalog.RoleChoiceFabric: f.Colours[catalog.RoleChoiceFabric]},
		"design_option_ids": f.OptionIDs,
	}
	rec = ts.do(t, http.MethodPost, "/api/variations/generate", req)
	if rec.Code != http.StatusOK {
		t.Fatalf("generate: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var gen struct {
		Created int `json:"created"`
		Updated int `json:"updated"`
	}
	decodeBody(t, rec, &gen)
	if gen.Created != 4 || gen.Updated != 0 {
		t.Fatalf("unexpected first generation: %+v", gen)
	}

	rec = ts.do(t, http.MethodPost, "/api/variations/generate", req)
	decodeBody(t, rec, &gen)
	if gen.Created != 0 || gen.Updated != 4 {
		t.Fatalf("unexpected second generation: %+v", gen)
	}

	rec = ts.do(t, http.MethodGet, fmt.Sprintf("/api/variations?model_ids=%d,%d", f.ModelIDs[0], f.ModelIDs[1]), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list variations: expected 200, got %d", rec.Code)
	}
	var list struct {
		Rows []struct {
			SKU string `json:"sku"`
		} `json:"rows"`
	}
	decodeBody(t, rec, &list)
	if len(list.Rows) != 4 || list.Rows[0].SKU != "FEN-HRD-CW-BLK-HO-ZP" {
		t.Fatalf("unexpected variation rows: %+v", list.Rows)
	}

	if rec = ts.do(t, http.MethodGet, "/api/variations", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing model_ids: expected 400, got %d", rec.Code)
	}
}

func TestInvalidateRateCache(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/rates/cache/invalidate", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
