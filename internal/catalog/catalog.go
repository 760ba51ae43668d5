// Package catalog holds the immutable table of model categories and the
// keyword routing rules that point into it.
package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fairyhunter13/chat-dispatch/internal/domain"
)

// ErrInvalidCatalog is returned when a catalog breaks a structural invariant.
var ErrInvalidCatalog = errors.New("invalid catalog")

// FamilyRule widens reverse lookup for model ids that appear in no tier.
// Token must occur in the requested id. When Category is empty the first
// category holding a tier that also contains Token wins.
type FamilyRule struct {
	Token    string   `yaml:"token"`
	AnyOf    []string `yaml:"any_of"`
	AllOf    []string `yaml:"all_of"`
	Category string   `yaml:"category"`
}

// Options names the categories with special routing roles.
type Options struct {
	DocumentCategory     string
	SpeedCategory        string
	UnknownCategory      string
	UnknownContextWindow int
	Families             []FamilyRule
}

// MatchKind describes how a model id was resolved by Lookup.
type MatchKind string

const (
	MatchExact   MatchKind = "exact"
	MatchFamily  MatchKind = "family"
	MatchDefault MatchKind = "default"
)

// ModelInfo is the capability metadata resolved for an arbitrary model id.
type ModelInfo struct {
	Category               string
	Tier                   int
	Match                  MatchKind
	SupportsNativeDocument bool
	ContextWindow          int
	Description            string
}

// Catalog is safe for concurrent reads; nothing mutates it after New.
type Catalog struct {
	categories map[string]domain.Category
	order      []string
	rules      []domain.RoutingRule
	def        domain.RoutingRule
	opts       Options
}

// New validates and freezes a catalog.
func New(categories []domain.Category, rules []domain.RoutingRule, opts Options) (*Catalog, error) {
	c := &Catalog{categories: make(map[string]domain.Category, len(categories))}
	for _, cat := range categories {
		if cat.ID == "" {
			return nil, fmt.Errorf("%w: category with empty id", ErrInvalidCatalog)
		}
		if _, dup := c.categories[cat.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate category %q", ErrInvalidCatalog, cat.ID)
		}
		for i, m := range cat.Tiers {
			if strings.TrimSpace(m) == "" {
				return nil, fmt.Errorf("%w: category %q has empty %s tier", ErrInvalidCatalog, cat.ID, domain.TierNames[i])
			}
		}
		if cat.ContextWindow <= 0 {
			return nil, fmt.Errorf("%w: category %q has non-positive context window", ErrInvalidCatalog, cat.ID)
		}
		c.categories[cat.ID] = cat
		c.order = append(c.order, cat.ID)
	}
	if len(c.order) == 0 {
		return nil, fmt.Errorf("%w: no categories", ErrInvalidCatalog)
	}

	defaults := 0
	for _, r := range rules {
		if _, ok := c.categories[r.Category]; !ok {
			return nil, fmt.Errorf("%w: rule %q targets unknown category %q", ErrInvalidCatalog, r.ID, r.Category)
		}
		r.Keywords = normalizeKeywords(r.Keywords)
		if r.IsDefault() {
			defaults++
			c.def = r
		}
		c.rules = append(c.rules, r)
	}
	if defaults != 1 {
		return nil, fmt.Errorf("%w: want exactly one default rule, got %d", ErrInvalidCatalog, defaults)
	}

	for _, id := range []string{opts.DocumentCategory, opts.SpeedCategory, opts.UnknownCategory} {
		if _, ok := c.categories[id]; !ok {
			return nil, fmt.Errorf("%w: option references unknown category %q", ErrInvalidCatalog, id)
		}
	}
	for _, f := range opts.Families {
		if f.Token == "" {
			return nil, fmt.Errorf("%w: family rule with empty token", ErrInvalidCatalog)
		}
		if f.Category != "" {
			if _, ok := c.categories[f.Category]; !ok {
				return nil, fmt.Errorf("%w: family %q targets unknown category %q", ErrInvalidCatalog, f.Token, f.Category)
			}
		}
	}
	if opts.UnknownContextWindow <= 0 {
		opts.UnknownContextWindow = c.categories[opts.UnknownCategory].ContextWindow
	}
	c.opts = opts
	return c, nil
}

// normalizeKeywords lower-cases, trims and de-duplicates keywords.
func normalizeKeywords(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, k := range in {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// Category returns the category with the given id.
func (c *Catalog) Category(id string) (domain.Category, bool) {
	cat, ok := c.categories[id]
	return cat, ok
}

// Categories returns all categories in declaration order.
func (c *Catalog) Categories() []domain.Category {
	out := make([]domain.Category, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.categories[id])
	}
	return out
}

// Rules returns the routing rules in declaration order.
func (c *Catalog) Rules() []domain.RoutingRule {
	out := make([]domain.RoutingRule, len(c.rules))
	copy(out, c.rules)
	return out
}

func (c *Catalog) DefaultRule() domain.RoutingRule { return c.def }

func (c *Catalog) DocumentCategory() domain.Category { return c.categories[c.opts.DocumentCategory] }

func (c *Catalog) SpeedCategory() domain.Category { return c.categories[c.opts.SpeedCategory] }

// Lookup resolves capability metadata for a model id: exact tier match first,
// then family rules, then the unknown-model defaults.
//
// Family matching is substring based and can claim an unrelated model whose
// id happens to contain a family token. That imprecision is kept on purpose
// so manual selections keep resolving the way operators expect.
func (c *Catalog) Lookup(model string) ModelInfo {
	for _, id := range c.order {
		cat := c.categories[id]
		for tier, m := range cat.Tiers {
			if m == model {
				return infoFor(cat, tier, MatchExact)
			}
		}
	}

	lower := strings.ToLower(model)
	for _, f := range c.opts.Families {
		if !familyMatches(f, lower) {
			continue
		}
		if f.Category != "" {
			return infoFor(c.categories[f.Category], -1, MatchFamily)
		}
		token := strings.ToLower(f.Token)
		for _, id := range c.order {
			cat := c.categories[id]
			for _, m := range cat.Tiers {
				if strings.Contains(strings.ToLower(m), token) {
					return infoFor(cat, -1, MatchFamily)
				}
			}
		}
	}

	return ModelInfo{
		Category:      c.opts.UnknownCategory,
		Tier:          -1,
		Match:         MatchDefault,
		ContextWindow: c.opts.UnknownContextWindow,
		Description:   "Unknown model, using " + c.opts.UnknownCategory + " defaults",
	}
}

func familyMatches(f FamilyRule, lower string) bool {
	if !strings.Contains(lower, strings.ToLower(f.Token)) {
		return false
	}
	for _, s := range f.AllOf {
		if !strings.Contains(lower, strings.ToLower(s)) {
			return false
		}
	}
	if len(f.AnyOf) == 0 {
		return true
	}
	for _, s := range f.AnyOf {
		if strings.Contains(lower, strings.ToLower(s)) {
			return true
		}
	}
	return false
}

func infoFor(cat domain.Category, tier int, kind MatchKind) ModelInfo {
	return ModelInfo{
		Category:               cat.ID,
		Tier:                   tier,
		Match:                  kind,
		SupportsNativeDocument: cat.SupportsNativeDocument,
		ContextWindow:          cat.ContextWindow,
		Description:            cat.Description,
	}
}
