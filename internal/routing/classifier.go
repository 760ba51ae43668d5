// Package routing picks a category and a tiered model for an inbound chat
// turn. Everything here is pure computation over an immutable catalog.
package routing

import (
	"strings"

	"github.com/fairyhunter13/chat-dispatch/internal/catalog"
)

// Confidence is a coarse banding of keyword match counts.
type Confidence string

const (
	ConfidenceVeryHigh Confidence = "very_high"
	ConfidenceHigh     Confidence = "high"
	ConfidenceMedium   Confidence = "medium"
	ConfidenceLow      Confidence = "low"
)

// ConfidenceFor bands a match count.
func ConfidenceFor(matches int) Confidence {
	switch {
	case matches >= 3:
		return ConfidenceVeryHigh
	case matches == 2:
		return ConfidenceHigh
	case matches == 1:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// Classification is the result of scoring a text against the routing rules.
type Classification struct {
	Category   string     `json:"category"`
	Rule       string     `json:"rule"`
	Confidence Confidence `json:"confidence"`
	MatchCount int        `json:"keyword_matches"`
	Matched    []string   `json:"matched_keywords"`
}

// Classifier scores free text against the catalog's routing rules.
type Classifier struct {
	cat *catalog.Catalog
}

func NewClassifier(cat *catalog.Catalog) *Classifier { return &Classifier{cat: cat} }

// Classify returns the category of the rule with the strictly greatest
// keyword hit count; ties go to the first declared rule. With no hits the
// default rule wins.
func (c *Classifier) Classify(text string) Classification {
	lower := strings.ToLower(text)
	var (
		best    string
		bestCat string
		bestN   int
		bestHit []string
	)
	if lower != "" {
		for _, r := range c.cat.Rules() {
			if r.IsDefault() {
				continue
			}
			var hits []string
			for _, k := range r.Keywords {
				if strings.Contains(lower, k) {
					hits = append(hits, k)
				}
			}
			if len(hits) > bestN {
				best, bestCat, bestN, bestHit = r.ID, r.Category, len(hits), hits
			}
		}
	}
	if bestN == 0 {
		def := c.cat.DefaultRule()
		return Classification{Category: def.Category, Rule: def.ID, Confidence: ConfidenceLow}
	}
	return Classification{
		Category:   bestCat,
		Rule:       best,
		Confidence: ConfidenceFor(bestN),
		MatchCount: bestN,
		Matched:    bestHit,
	}
}
