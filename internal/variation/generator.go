// Package variation expands material roles, colours and design options into
// eBay SKU variation rows and upserts them by SKU.
package variation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/Simplici0/coverworks/internal/catalog"
	"github.com/Simplici0/coverworks/internal/rates"
)

// Row is one generated SKU variation of a model.
type Row struct {
	ID                        int64     `json:"id,omitempty"`
	ModelID                   int64     `json:"model_id"`
	SKU                       string    `json:"sku"`
	Role                      string    `json:"role"`
	Padded                    bool      `json:"padded"`
	MaterialID                int64     `json:"material_id"`
	MaterialColourSurchargeID *int64    `json:"material_colour_surcharge_id,omitempty"`
	DesignOptionIDs           []int64   `json:"design_option_ids"`
	CreatedAt                 time.Time `json:"created_at"`
	UpdatedAt                 time.Time `json:"updated_at"`
}

// SaveResult reports how many rows were inserted versus updated.
type SaveResult struct {
	Created int
	Updated int
	Rows    []Row
}

// Store persists variation rows keyed by (model_id, sku).
type Store interface {
	// SaveVariations upserts rows in one transaction.
	SaveVariations(ctx context.Context, rows []Row) (SaveResult, error)
	ListVariations(ctx context.Context, modelIDs []int64) ([]Row, error)
}

// Catalog is the catalog read API the generator validates against. Missing
// rows are reported with catalog.ErrNotFound or simply left out of list results.
type Catalog interface {
	ListModels(ctx context.Context, filter catalog.ModelFilter) ([]catalog.Model, error)
	GetMaterialRoleConfig(ctx context.Context, role string) (catalog.MaterialRoleConfig, error)
	GetMaterial(ctx context.Context, id int64) (catalog.Material, error)
	ListColourSurcharges(ctx context.Context, ids []int64) ([]catalog.MaterialColourSurcharge, error)
	ListDesignOptions(ctx context.Context, ids []int64) ([]catalog.DesignOption, error)
}

// MaterialResolver finds the material assigned to a role. *rates.Resolver implements it.
type MaterialResolver interface {
	ActiveMaterial(ctx context.Context, role string, asOf time.Time) (catalog.MaterialRoleAssignment, catalog.Material, error)
}

// Request selects what to generate.
type Request struct {
	ModelIDs []int64 `json:"model_ids"`
	Roles    []string `json:"roles"`
	// ColourIDs holds the selected material_colour_surcharge ids per role.
	ColourIDs map[string][]int64 `json:"colour_ids"`
	// MaterialIDs optionally pins a role to a material instead of its active assignment.
	MaterialIDs     map[string]int64 `json:"material_ids,omitempty"`
	DesignOptionIDs []int64          `json:"design_option_ids"`
}

// Result is the outcome of a generation run.
type Result struct {
	Created         int     `json:"created"`
	Updated         int     `json:"updated"`
	Rows            []Row   `json:"rows"`
	SkippedModelIDs []int64 `json:"skipped_model_ids"`
}

// Generator validates requests and writes variation rows.
type Generator struct {
	catalog   Catalog
	materials MaterialResolver
	store     Store
	logger    *slog.Logger
	now       func() time.Time
}

// NewGenerator wires a Generator. A nil logger uses slog.Default().
func NewGenerator(c Catalog, materials MaterialResolver, s Store, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		catalog:   c,
		materials: materials,
		store:     s,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

type roleSelection struct {
	config   catalog.MaterialRoleConfig
	material catalog.Material
	colours  []catalog.MaterialColourSurcharge
}

type plan struct {
	models  []catalog.Model
	skipped []int64
	roles   []roleSelection
	options []catalog.DesignOption
}

// Generate validates req in full, then upserts one row per model × role ×
// colour × padding choice. Invalid requests write nothing.
func (g *Generator) Generate(ctx context.Context, req Request) (Result, error) {
	p, err := g.validate(ctx, req)
	if err != nil {
		return Result{}, err
	}

	rows := dedupeBySKU(p.expand())
	saved, err := g.store.SaveVariations(ctx, rows)
	if err != nil {
		return Result{}, fmt.Errorf("save variations: %w", err)
	}

	g.logger.Info("generated ebay variations",
		slog.Int("models", len(p.models)),
		slog.Int("roles", len(p.roles)),
		slog.Int("rows", len(saved.Rows)),
		slog.Int("created", saved.Created),
		slog.Int("updated", saved.Updated),
	)
	return Result{Created: saved.Created, Updated: saved.Updated, Rows: saved.Rows, SkippedModelIDs: p.skipped}, nil
}

// Existing returns rows already generated for the models, without generating.
func (g *Generator) Existing(ctx context.Context, modelIDs []int64) ([]Row, error) {
	rows, err := g.store.ListVariations(ctx, uniqueSorted(modelIDs))
	if err != nil {
		return nil, fmt.Errorf("list variations: %w", err)
	}
	return rows, nil
}

func (g *Generator) validate(ctx context.Context, req Request) (plan, error) {
	var (
		p    plan
		errs issues
	)

	modelIDs := uniqueSorted(req.ModelIDs)
	if len(modelIDs) == 0 {
		errs.add(CodeMissingModelIDs, "", 0, "at least one model id is required")
	}
	roles := uniqueRoles(req.Roles)
	if len(roles) == 0 {
		errs.add(CodeMissingRoles, "", 0, "at least one material role is required")
	}

	if len(modelIDs) > 0 {
		models, err := g.catalog.ListModels(ctx, catalog.ModelFilter{IDs: modelIDs})
		if err != nil {
			return p, fmt.Errorf("list models: %w", err)
		}
		byID := make(map[int64]catalog.Model, len(models))
		for _, m := range models {
			byID[m.ID] = m
		}
		for _, id := range modelIDs {
			m, ok := byID[id]
			switch {
			case !ok:
				errs.add(CodeInvalidModelID, "", id, "model %d does not exist", id)
			case m.ExcludedFrom(catalog.Ebay):
				p.skipped = append(p.skipped, id)
			default:
				p.models = append(p.models, m)
			}
		}
	}

	asOf := g.now()
	for _, role := range roles {
		sel, ok, err := g.validateRole(ctx, role, req, asOf, &errs)
		if err != nil {
			return p, err
		}
		if ok {
			p.roles = append(p.roles, sel)
		}
	}

	options, err := g.validateOptions(ctx, req.DesignOptionIDs, &errs)
	if err != nil {
		return p, err
	}
	p.options = options

	if p.skipped == nil {
		p.skipped = []int64{}
	}
	return p, errs.err()
}

func (g *Generator) validateRole(ctx context.Context, role string, req Request, asOf time.Time, errs *issues) (roleSelection, bool, error) {
	sel := roleSelection{}
	valid := true

	cfg, err := g.catalog.GetMaterialRoleConfig(ctx, role)
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		errs.add(CodeMissingRoleConfig, role, 0, "role %s has no role config", role)
		valid = false
	case err != nil:
		return sel, false, fmt.Errorf("get role config %s: %w", role, err)
	default:
		if !cfg.EbayVariationEnabled {
			errs.add(CodeRoleNotEbayEnabled, role, 0, "role %s is not enabled for eBay variations", role)
			valid = false
		}
		if strings.TrimSpace(cfg.SKUAbbrevNoPadding) == "" {
			errs.add(CodeMissingAbbrevNoPadding, role, 0, "role %s has no no-padding SKU abbreviation", role)
			valid = false
		}
		if strings.TrimSpace(cfg.SKUAbbrevWithPadding) == "" {
			errs.add(CodeMissingAbbrevPadding, role, 0, "role %s has no with-padding SKU abbreviation", role)
			valid = false
		}
	}
	sel.config = cfg

	material, ok, err := g.roleMaterial(ctx, role, req.MaterialIDs[role], asOf, errs)
	if err != nil {
		return sel, false, err
	}
	if !ok {
		valid = false
	}
	sel.material = material

	colourIDs := uniqueSorted(req.ColourIDs[role])
	if len(colourIDs) == 0 {
		errs.add(CodeMissingColorIDs, role, 0, "role %s has no colours selected", role)
		return sel, false, nil
	}

	colours, err := g.catalog.ListColourSurcharges(ctx, colourIDs)
	if err != nil {
		return sel, false, fmt.Errorf("list colours: %w", err)
	}
	byID := make(map[int64]catalog.MaterialColourSurcharge, len(colours))
	for _, c := range colours {
		byID[c.ID] = c
	}
	for _, id := range colourIDs {
		c, found := byID[id]
		switch {
		case !found:
			errs.add(CodeInvalidColorID, role, id, "colour %d does not exist", id)
		case !c.EbayVariationEnabled:
			errs.add(CodeInvalidColorID, role, id, "colour %d is not enabled for eBay variations", id)
		case strings.TrimSpace(c.SKUAbbreviation) == "":
			errs.add(CodeInvalidColorID, role, id, "colour %d has no SKU abbreviation", id)
		case ok && c.MaterialID != material.ID:
			errs.add(CodeInvalidColorID, role, id, "colour %d belongs to material %d, not %d", id, c.MaterialID, material.ID)
		default:
			sel.colours = append(sel.colours, c)
			continue
		}
		valid = false
	}
	return sel, valid, nil
}

func (g *Generator) roleMaterial(ctx context.Context, role string, pinned int64, asOf time.Time, errs *issues) (catalog.Material, bool, error) {
	if pinned != 0 {
		m, err := g.catalog.GetMaterial(ctx, pinned)
		switch {
		case errors.Is(err, catalog.ErrNotFound):
			errs.add(CodeInvalidMaterialID, role, pinned, "material %d does not exist", pinned)
			return m, false, nil
		case err != nil:
			return m, false, fmt.Errorf("get material %d: %w", pinned, err)
		}
		return m, true, nil
	}

	_, m, err := g.materials.ActiveMaterial(ctx, role, asOf)
	switch {
	case errors.Is(err, catalog.ErrNotFound) || errors.Is(err, rates.ErrNotConfigured):
		errs.add(CodeInvalidMaterialID, role, 0, "role %s has no active material assignment", role)
		return m, false, nil
	case err != nil:
		return m, false, fmt.Errorf("resolve material for %s: %w", role, err)
	}
	return m, true, nil
}

func (g *Generator) validateOptions(ctx context.Context, ids []int64, errs *issues) ([]catalog.DesignOption, error) {
	optionIDs := uniqueSorted(ids)
	if len(optionIDs) == 0 {
		return nil, nil
	}

	options, err := g.catalog.ListDesignOptions(ctx, optionIDs)
	if err != nil {
		return nil, fmt.Errorf("list design options: %w", err)
	}
	byID := make(map[int64]catalog.DesignOption, len(options))
	for _, o := range options {
		byID[o.ID] = o
	}

	var (
		valid   []catalog.DesignOption
		invalid []int64
	)
	for _, id := range optionIDs {
		o, ok := byID[id]
		if !ok || !o.EbayEligible() || strings.TrimSpace(o.SKUAbbreviation) == "" {
			invalid = append(invalid, id)
			continue
		}
		valid = append(valid, o)
	}
	if len(invalid) > 0 {
		*errs = append(*errs, Issue{
			Code:    CodeInvalidDesignOptionIDs,
			IDs:     invalid,
			Message: fmt.Sprintf("design options %v are missing, not eBay-eligible or have no SKU abbreviation", invalid),
		})
	}
	return valid, nil
}

// expand walks roles in key order, colours by ascending id, then models by
// ascending id, each with the no-padding row before the padded one.
func (p plan) expand() []Row {
	optionIDs := make([]int64, 0, len(p.options))
	optionAbbrevs := make([]string, 0, len(p.options))
	for _, o := range p.options {
		optionIDs = append(optionIDs, o.ID)
		optionAbbrevs = append(optionAbbrevs, strings.TrimSpace(o.SKUAbbreviation))
	}
	sort.Strings(optionAbbrevs)

	var rows []Row
	for _, sel := range p.roles {
		for _, colour := range sel.colours {
			colourID := colour.ID
			for _, m := range p.models {
				for _, padded := range []bool{false, true} {
					rows = append(rows, Row{
						ModelID:                   m.ID,
						SKU:                       ComposeSKU(m.BaseSKU, sel.config.Abbrev(padded), colour.SKUAbbreviation, optionAbbrevs),
						Role:                      sel.config.Role,
						Padded:                    padded,
						MaterialID:                sel.material.ID,
						MaterialColourSurchargeID: &colourID,
						DesignOptionIDs:           slices.Clone(optionIDs),
					})
				}
			}
		}
	}
	return rows
}

// ComposeSKU joins the base SKU, role, colour and design-option abbreviations
// with dashes in upper case. Option abbreviations must already be sorted.
func ComposeSKU(base, roleAbbrev, colourAbbrev string, optionAbbrevs []string) string {
	parts := []string{strings.TrimSpace(base), strings.TrimSpace(roleAbbrev), strings.TrimSpace(colourAbbrev)}
	parts = append(parts, optionAbbrevs...)

	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.ToUpper(strings.Join(kept, "-"))
}

// dedupeBySKU keeps one row per (model, SKU). A later row replaces an earlier
// one but keeps the earlier row's position.
func dedupeBySKU(rows []Row) []Row {
	type key struct {
		model int64
		sku   string
	}
	index := make(map[key]int, len(rows))
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		k := key{r.ModelID, r.SKU}
		if i, ok := index[k]; ok {
			out[i] = r
			continue
		}
		index[k] = len(out)
		out = append(out, r)
	}
	return out
}

// uniqueSorted keeps non-positive ids so the existence checks report them.
func uniqueSorted(ids []int64) []int64 {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}

func uniqueRoles(roles []string) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	sort.Strings(out)
	return slices.Compact(out)
}
