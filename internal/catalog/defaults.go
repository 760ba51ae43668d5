package catalog

import "github.com/fairyhunter13/chat-dispatch/internal/domain"

// Category ids of the built-in catalog.
const (
	PDFAnalysis  = "pdf_analysis"
	GeneralChat  = "general_chat"
	Reasoning    = "reasoning"
	Coding       = "coding"
	Multimodal   = "multimodal"
	FastResponse = "fast_response"
)

func defaultCategories() []domain.Category {
	return []domain.Category{
		{
			ID:                     PDFAnalysis,
			Tiers:                  [3]string{"provider-8/qwen2.5-vl-32b-instruct", "provider-8/qwen3-next-80b-a3b-instruct", "provider-1/qwen3-next-80b-a3b-instruct"},
			SupportsNativeDocument: true,
			ContextWindow:          128000,
			Description:            "Document analysis with native multi-file support",
		},
		{
			ID:            GeneralChat,
			Tiers:         [3]string{"provider-8/kimi-k2", "provider-8/gemini-2.0-flash", "provider-8/mistral-small-3.2-24b-instruct"},
			ContextWindow: 128000,
			Description:   "General conversation and analysis",
		},
		{
			ID:            Reasoning,
			Tiers:         [3]string{"provider-2/deepseek-r1-0528", "provider-8/deepseek-r1-distill-llama-70b", "provider-8/qwen3-32b"},
			ContextWindow: 128000,
			Description:   "Step-by-step reasoning and proofs",
		},
		{
			ID:            Coding,
			Tiers:         [3]string{"provider-8/gpt-oss-120b", "provider-8/gpt-oss-20b", "provider-8/hermes-4-14b"},
			ContextWindow: 128000,
			Description:   "Code generation, review and debugging",
		},
		{
			ID:            Multimodal,
			Tiers:         [3]string{"provider-3/gemma-3-27b-it", "provider-3/gemma-3-12b-it", "provider-3/gemma-3-4b-it"},
			ContextWindow: 8192,
			Description:   "Image and diagram oriented questions",
		},
		{
			ID:            FastResponse,
			Tiers:         [3]string{"provider-6/mimo-v2-flash", "provider-8/deepseek-v3", "provider-8/llama-4-scout"},
			ContextWindow: 32000,
			Description:   "Quick answers with low latency",
		},
	}
}

func defaultRules() []domain.RoutingRule {
	return []domain.RoutingRule{
		{
			ID:          "pdf_document",
			Keywords:    []string{"pdf", "document", "file", "page", "chapter", "section", "summarize", "extract", "upload"},
			Category:    PDFAnalysis,
			Description: "Questions about uploaded documents",
		},
		{
			ID:          "vision_image",
			Keywords:    []string{"image", "picture", "photo", "visual", "screenshot", "diagram", "chart", "graph"},
			Category:    Multimodal,
			Description: "Questions about images and visuals",
		},
		{
			ID:          "step_by_step_reasoning",
			Keywords:    []string{"prove", "derive", "demonstrate", "step by step", "reasoning", "therefore", "hence", "conclude", "logic", "explain why"},
			Category:    Reasoning,
			Description: "Proofs and multi-step reasoning",
		},
		{
			ID:          "coding",
			Keywords:    []string{"code", "bug", "implement", "function", "class", "refactor", "compile", "error", "debug", "programming", "syntax", "algorithm", "script"},
			Category:    Coding,
			Description: "Programming tasks",
		},
		{
			ID:          "complex_analysis",
			Keywords:    []string{"analyze", "compare", "evaluate", "assess", "review", "critique", "examine", "detailed", "comprehensive"},
			Category:    GeneralChat,
			Description: "Open-ended analysis",
		},
		{
			ID:          "quick_question",
			Keywords:    []string{"quick", "simple", "brief", "short", "what is", "define", "meaning"},
			Category:    FastResponse,
			Description: "Short factual questions",
		},
		{
			ID:          "general_chat",
			Category:    GeneralChat,
			Description: "Default conversation",
		},
	}
}

func defaultOptions() Options {
	return Options{
		DocumentCategory:     PDFAnalysis,
		SpeedCategory:        FastResponse,
		UnknownCategory:      GeneralChat,
		UnknownContextWindow: 15000,
		Families: []FamilyRule{
			{Token: "deepseek"},
			{Token: "gemma", AnyOf: []string{"27b", "12b"}, Category: Multimodal},
			{Token: "llama", AllOf: []string{"11b", "instruct"}, Category: Multimodal},
		},
	}
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := New(defaultCategories(), defaultRules(), defaultOptions())
	if err != nil {
		panic(err)
	}
	return c
}
