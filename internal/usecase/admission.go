package usecase

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fairyhunter13/chat-dispatch/internal/adapter/observability"
	"github.com/fairyhunter13/chat-dispatch/internal/catalog"
	"github.com/fairyhunter13/chat-dispatch/internal/domain"
)

// Admission rejection and success reasons.
const (
	ReasonPassed          = "validation_passed"
	ReasonTypeUnsupported = "file_type_not_supported"
	ReasonTotalExceeded   = "total_limit_exceeded"
	ReasonCountExceeded   = "count_limit_exceeded"
	ReasonSizeExceeded    = "file_size_exceeded"
)

// Validation tiers.
const (
	TierDocumentNative = "pdf_analysis"
	TierGeneral        = "general"
)

// DefaultSizeLimitMB applies to file types without an explicit ceiling.
const DefaultSizeLimitMB = 25

var sizeLimitsMB = map[domain.FileType]int{
	domain.FileTypePDF:   50,
	domain.FileTypeImage: 10,
	domain.FileTypeDOCX:  25,
	domain.FileTypePPTX:  50,
}

// UploadLimits are the ceilings of one validation tier.
type UploadLimits struct {
	Tier       string                  `json:"tier"`
	TotalFiles int                     `json:"total_files"`
	PerType    map[domain.FileType]int `json:"per_type"`
	SizeMB     map[domain.FileType]int `json:"size_mb"`
}

func (l UploadLimits) allowance(ft domain.FileType) int { return l.PerType[ft] }

var tierLimits = map[string]UploadLimits{
	TierDocumentNative: {
		Tier:       TierDocumentNative,
		TotalFiles: 3,
		PerType:    map[domain.FileType]int{domain.FileTypePDF: 3, domain.FileTypeDOCX: 3, domain.FileTypePPTX: 3, domain.FileTypeImage: 0},
	},
	TierGeneral: {
		Tier:       TierGeneral,
		TotalFiles: 1,
		PerType:    map[domain.FileType]int{domain.FileTypePDF: 1, domain.FileTypeDOCX: 1, domain.FileTypePPTX: 1, domain.FileTypeImage: 0},
	},
}

// SizeLimitMB returns the size ceiling for ft.
func SizeLimitMB(ft domain.FileType) int {
	if n, ok := sizeLimitsMB[ft]; ok {
		return n
	}
	return DefaultSizeLimitMB
}

// AdmissionResult is the outcome of one upload admission check.
type AdmissionResult struct {
	Valid          bool                    `json:"is_valid"`
	Reason         string                  `json:"reason"`
	Message        string                  `json:"message"`
	Tier           string                  `json:"tier"`
	MaxAllowed     int                     `json:"max_allowed"`
	CurrentCount   int                     `json:"current_count"`
	RemainingSlots int                     `json:"remaining_slots"`
	FileBreakdown  map[domain.FileType]int `json:"file_breakdown,omitempty"`
}

// Err returns a *domain.RejectedError for a refusal and nil otherwise.
func (r AdmissionResult) Err() error {
	if r.Valid {
		return nil
	}
	return &domain.RejectedError{Reason: r.Reason, Message: r.Message}
}

// UploadAdmission decides whether one more file may be attached to a
// conversation whose model belongs to a given category. Categories with
// native document support map to the document tier; all others to general.
type UploadAdmission struct {
	Catalog *catalog.Catalog
}

func NewUploadAdmission(cat *catalog.Catalog) UploadAdmission {
	return UploadAdmission{Catalog: cat}
}

// TierFor maps a category id onto its validation tier.
func (a UploadAdmission) TierFor(categoryID string) string {
	if c, ok := a.Catalog.Category(categoryID); ok && c.SupportsNativeDocument {
		return TierDocumentNative
	}
	return TierGeneral
}

// Limits reports the ceilings that apply to categoryID.
func (a UploadAdmission) Limits(categoryID string) UploadLimits {
	l := tierLimits[a.TierFor(categoryID)]
	out := UploadLimits{Tier: l.Tier, TotalFiles: l.TotalFiles, PerType: make(map[domain.FileType]int, len(l.PerType)), SizeMB: make(map[domain.FileType]int, len(sizeLimitsMB))}
	for k, v := range l.PerType {
		out.PerType[k] = v
	}
	for k, v := range sizeLimitsMB {
		out.SizeMB[k] = v
	}
	return out
}

// Validate runs the admission checks in order and stops at the first failure:
// unsupported type, combined document ceiling (document tier), per-type
// ceiling, combined ceiling (general tier), then size.
func (a UploadAdmission) Validate(ft domain.FileType, counts map[domain.FileType]int, categoryID string, sizeMB float64) AdmissionResult {
	res := a.validate(ft, counts, categoryID, sizeMB)
	observability.ObserveUploadDecision(res.Reason)
	return res
}

func (a UploadAdmission) validate(ft domain.FileType, counts map[domain.FileType]int, categoryID string, sizeMB float64) AdmissionResult {
	tier := a.TierFor(categoryID)
	limits := tierLimits[tier]
	maxAllowed := limits.allowance(ft)
	current := counts[ft]
	total := documentTotal(counts)
	res := AdmissionResult{Tier: tier, MaxAllowed: maxAllowed, CurrentCount: current}

	if maxAllowed == 0 {
		res.Reason = ReasonTypeUnsupported
		res.Message = fmt.Sprintf("%s files not supported with current model", strings.ToUpper(string(ft)))
		return res
	}
	if tier == TierDocumentNative && total >= limits.TotalFiles {
		res.Reason = ReasonTotalExceeded
		res.Message = fmt.Sprintf("Maximum %d files allowed (any mix of PDF/DOCX/PPTX)", limits.TotalFiles)
		res.MaxAllowed = limits.TotalFiles
		res.CurrentCount = total
		res.FileBreakdown = copyCounts(counts)
		return res
	}
	if current >= maxAllowed {
		res.Reason = ReasonCountExceeded
		res.Message = fmt.Sprintf("Cannot upload more %s files. Limit: %d", strings.ToUpper(string(ft)), maxAllowed)
		return res
	}
	if tier == TierGeneral && total >= limits.TotalFiles {
		res.Reason = ReasonTotalExceeded
		res.Message = fmt.Sprintf("Maximum %d file allowed with current model", limits.TotalFiles)
		res.MaxAllowed = limits.TotalFiles
		res.CurrentCount = total
		res.FileBreakdown = copyCounts(counts)
		return res
	}
	if limit := SizeLimitMB(ft); sizeMB > float64(limit) {
		res.Reason = ReasonSizeExceeded
		res.Message = fmt.Sprintf("File too large (%sMB). Max: %dMB", formatMB(sizeMB), limit)
		return res
	}
	res.Valid = true
	res.Reason = ReasonPassed
	res.Message = "File upload allowed"
	res.RemainingSlots = maxAllowed - current
	return res
}

func documentTotal(counts map[domain.FileType]int) int {
	n := 0
	for _, ft := range domain.DocumentFileTypes {
		n += counts[ft]
	}
	return n
}

func copyCounts(in map[domain.FileType]int) map[domain.FileType]int {
	out := make(map[domain.FileType]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func formatMB(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}

// BatchFile describes one file of a batch admission request.
type BatchFile struct {
	Filename string          `json:"filename" validate:"required"`
	Type     domain.FileType `json:"file_type" validate:"required,oneof=pdf docx pptx image"`
	SizeMB   float64         `json:"file_size_mb" validate:"gte=0"`
}

type BatchItem struct {
	Filename string `json:"filename"`
	Valid    bool   `json:"is_valid"`
	Reason   string `json:"reason"`
	Message  string `json:"message"`
}

type BatchSummary struct {
	Total   int `json:"total_files"`
	Valid   int `json:"valid_files"`
	Invalid int `json:"invalid_files"`
}

type BatchResult struct {
	AllValid bool         `json:"all_valid"`
	Results  []BatchItem  `json:"results"`
	Summary  BatchSummary `json:"summary"`
}

// AdmitBatch validates files in order; each admitted file counts against the
// ones after it.
func (a UploadAdmission) AdmitBatch(files []BatchFile, counts map[domain.FileType]int, categoryID string) BatchResult {
	running := copyCounts(counts)
	out := BatchResult{AllValid: true, Results: make([]BatchItem, 0, len(files))}
	for _, f := range files {
		r := a.Validate(f.Type, running, categoryID, f.SizeMB)
		name := f.Filename
		if name == "" {
			name = "unknown"
		}
		out.Results = append(out.Results, BatchItem{Filename: name, Valid: r.Valid, Reason: r.Reason, Message: r.Message})
		if r.Valid {
			running[f.Type]++
			out.Summary.Valid++
		} else {
			out.AllValid = false
			out.Summary.Invalid++
		}
	}
	out.Summary.Total = len(files)
	return out
}

// DetectFileType classifies a filename by extension.
func DetectFileType(filename string) (domain.FileType, bool) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return domain.FileTypePDF, true
	case ".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp":
		return domain.FileTypeImage, true
	case ".doc", ".docx":
		return domain.FileTypeDOCX, true
	case ".ppt", ".pptx":
		return domain.FileTypePPTX, true
	}
	return "", false
}

// FileTypeFromMIME classifies a sniffed content type.
func FileTypeFromMIME(mime string) (domain.FileType, bool) {
	mime = strings.ToLower(mime)
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	switch {
	case mime == "application/pdf":
		return domain.FileTypePDF, true
	case strings.HasPrefix(mime, "image/"):
		return domain.FileTypeImage, true
	case mime == "application/msword",
		mime == "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return domain.FileTypeDOCX, true
	case mime == "application/vnd.ms-powerpoint",
		mime == "application/vnd.openxmlformats-officedocument.presentationml.presentation":
		return domain.FileTypePPTX, true
	}
	return "", false
}
