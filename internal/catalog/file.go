package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/fairyhunter13/chat-dispatch/internal/domain"
)

// fileCatalog is the on-disk YAML layout of a catalog override.
type fileCatalog struct {
	Categories []struct {
		ID                     string `yaml:"id"`
		Primary                string `yaml:"primary"`
		Secondary              string `yaml:"secondary"`
		Fallback               string `yaml:"fallback"`
		SupportsNativeDocument bool   `yaml:"supports_native_document"`
		ContextWindow          int    `yaml:"context_window"`
		Description            string `yaml:"description"`
	} `yaml:"categories"`
	Rules []struct {
		ID          string   `yaml:"id"`
		Keywords    []string `yaml:"keywords"`
		Category    string   `yaml:"category"`
		Description string   `yaml:"description"`
	} `yaml:"rules"`
	DocumentCategory string `yaml:"document_category"`
	SpeedCategory    string `yaml:"speed_category"`
	UnknownModel     struct {
		Category      string `yaml:"category"`
		ContextWindow int    `yaml:"context_window"`
	} `yaml:"unknown_model"`
	Families []FamilyRule `yaml:"families"`
}

// Load reads a YAML catalog from path. An empty path yields Default.
// Omitted sections (rules, special categories, families) fall back to the
// built-in values; categories are mandatory.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	// #nosec G304 -- operator supplied configuration path
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("op=catalog.Load: %w", err)
	}
	c, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("op=catalog.Load path=%s: %w", path, err)
	}
	return c, nil
}

// Parse builds a catalog from YAML bytes. Environment variables in the
// document are expanded before decoding.
func Parse(b []byte) (*Catalog, error) {
	var fc fileCatalog
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(b))), &fc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}

	cats := make([]domain.Category, 0, len(fc.Categories))
	for _, fcat := range fc.Categories {
		cats = append(cats, domain.Category{
			ID:                     fcat.ID,
			Tiers:                  [domain.TierCount]string{fcat.Primary, fcat.Secondary, fcat.Fallback},
			SupportsNativeDocument: fcat.SupportsNativeDocument,
			ContextWindow:          fcat.ContextWindow,
			Description:            fcat.Description,
		})
	}

	rules := defaultRules()
	if len(fc.Rules) > 0 {
		rules = make([]domain.RoutingRule, 0, len(fc.Rules))
		for _, fr := range fc.Rules {
			rules = append(rules, domain.RoutingRule{ID: fr.ID, Keywords: fr.Keywords, Category: fr.Category, Description: fr.Description})
		}
	}

	opts := defaultOptions()
	if fc.DocumentCategory != "" {
		opts.DocumentCategory = fc.DocumentCategory
	}
	if fc.SpeedCategory != "" {
		opts.SpeedCategory = fc.SpeedCategory
	}
	if fc.UnknownModel.Category != "" {
		opts.UnknownCategory = fc.UnknownModel.Category
	}
	if fc.UnknownModel.ContextWindow > 0 {
		opts.UnknownContextWindow = fc.UnknownModel.ContextWindow
	}
	if fc.Families != nil {
		opts.Families = fc.Families
	}
	return New(cats, rules, opts)
}
