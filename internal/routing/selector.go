package routing

import (
	"github.com/fairyhunter13/chat-dispatch/internal/catalog"
	"github.com/fairyhunter13/chat-dispatch/internal/domain"
)

// Method records which precedence rule picked the category.
type Method string

const (
	MethodManual      Method = "manual"
	MethodDocument    Method = "document_detected"
	MethodSpeed       Method = "speed_optimized"
	MethodIntelligent Method = "intelligent"
)

// Request carries the routing inputs of one chat turn.
type Request struct {
	Message        string
	RequestedModel string
	HasDocuments   bool
	PreferSpeed    bool
}

// Manual reports whether the caller pinned a model.
func (r Request) Manual() bool {
	return r.RequestedModel != "" && r.RequestedModel != domain.AutoModel
}

// Route is the category decision for a request, made once and reused for
// every attempt.
type Route struct {
	Method                 Method
	Category               string
	ManualModel            string
	Confidence             Confidence
	MatchCount             int
	Matched                []string
	SupportsNativeDocument bool
	ContextWindow          int
	Description            string
}

// Selection is the model chosen for a single attempt.
type Selection struct {
	Model                  string     `json:"model"`
	Category               string     `json:"category"`
	Tier                   string     `json:"tier"`
	Attempt                int        `json:"attempt"`
	Method                 Method     `json:"routing_method"`
	Confidence             Confidence `json:"confidence"`
	MatchCount             int        `json:"keyword_matches"`
	SupportsNativeDocument bool       `json:"supports_native_document"`
	ContextWindow          int        `json:"context_window"`
	Description            string     `json:"description"`
}

// ClampAttempt bounds an attempt index to the tier triple.
func ClampAttempt(attempt int) int {
	if attempt < 0 {
		return 0
	}
	if attempt > domain.TierCount-1 {
		return domain.TierCount - 1
	}
	return attempt
}

// Selector resolves routes and tiered models.
type Selector struct {
	cat        *catalog.Catalog
	classifier *Classifier
}

func NewSelector(cat *catalog.Catalog, classifier *Classifier) *Selector {
	if classifier == nil {
		classifier = NewClassifier(cat)
	}
	return &Selector{cat: cat, classifier: classifier}
}

// Resolve applies the precedence manual > document > speed > keywords.
func (s *Selector) Resolve(req Request) Route {
	if req.Manual() {
		info := s.cat.Lookup(req.RequestedModel)
		return Route{
			Method:                 MethodManual,
			Category:               info.Category,
			ManualModel:            req.RequestedModel,
			Confidence:             ConfidenceVeryHigh,
			SupportsNativeDocument: info.SupportsNativeDocument,
			ContextWindow:          info.ContextWindow,
			Description:            "User selected: " + info.Description,
		}
	}
	if req.HasDocuments {
		return s.forced(s.cat.DocumentCategory(), MethodDocument, ConfidenceVeryHigh)
	}
	if req.PreferSpeed {
		return s.forced(s.cat.SpeedCategory(), MethodSpeed, ConfidenceHigh)
	}
	cl := s.classifier.Classify(req.Message)
	cat, _ := s.cat.Category(cl.Category)
	return Route{
		Method:                 MethodIntelligent,
		Category:               cat.ID,
		Confidence:             cl.Confidence,
		MatchCount:             cl.MatchCount,
		Matched:                cl.Matched,
		SupportsNativeDocument: cat.SupportsNativeDocument,
		ContextWindow:          cat.ContextWindow,
		Description:            cat.Description,
	}
}

func (s *Selector) forced(cat domain.Category, m Method, conf Confidence) Route {
	return Route{
		Method:                 m,
		Category:               cat.ID,
		Confidence:             conf,
		SupportsNativeDocument: cat.SupportsNativeDocument,
		ContextWindow:          cat.ContextWindow,
		Description:            cat.Description,
	}
}

// Select returns the model for attempt under route. Attempts past the
// fallback tier reuse the fallback. A manual route always yields the pinned
// model.
func (s *Selector) Select(route Route, attempt int) Selection {
	attempt = ClampAttempt(attempt)
	sel := Selection{
		Category:               route.Category,
		Attempt:                attempt,
		Method:                 route.Method,
		Confidence:             route.Confidence,
		MatchCount:             route.MatchCount,
		SupportsNativeDocument: route.SupportsNativeDocument,
		ContextWindow:          route.ContextWindow,
		Description:            route.Description,
	}
	if route.Method == MethodManual {
		sel.Model = route.ManualModel
		sel.Tier = domain.TierManual
		return sel
	}
	cat, _ := s.cat.Category(route.Category)
	sel.Model = cat.Tiers[attempt]
	sel.Tier = domain.TierNames[attempt]
	return sel
}

// SelectFor resolves and selects in one step.
func (s *Selector) SelectFor(req Request, attempt int) Selection {
	return s.Select(s.Resolve(req), attempt)
}
