package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/fairyhunter13/chat-dispatch/internal/domain"
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult represents the result of validation
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

var (
	vldOnce sync.Once
	vld     *validator.Validate

	validID = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() {
		vld = validator.New()
		vld.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return vld
}

// ValidateID checks a path identifier (conversation or file id).
func ValidateID(field, id string) ValidationResult {
	switch {
	case id == "":
		return invalid(field, "REQUIRED", field+" is required")
	case len(id) > 100:
		return invalid(field, "TOO_LONG", field+" is too long (max 100 characters)")
	case !validID.MatchString(id):
		return invalid(field, "INVALID_FORMAT", field+" contains invalid characters")
	}
	return ValidationResult{Valid: true}
}

// ParseLimit reads an optional 1..100 limit, returning def when empty.
func ParseLimit(raw string, def int) (int, ValidationResult) {
	if raw == "" {
		return def, ValidationResult{Valid: true}
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > 100 {
		return 0, invalid("limit", "INVALID_FORMAT", "Limit must be between 1 and 100")
	}
	return n, ValidationResult{Valid: true}
}

func invalid(field, code, msg string) ValidationResult {
	return ValidationResult{Valid: false, Errors: []ValidationError{{Field: field, Code: code, Message: msg}}}
}

// Err converts a failed result into an ErrInvalidArgument.
func (v ValidationResult) Err() error {
	if v.Valid || len(v.Errors) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", domain.ErrInvalidArgument, v.Errors[0].Message)
}

// decodeJSON reads a capped JSON body into dst and runs struct validation.
// On failure it writes the error response and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, r, fmt.Errorf("%w: invalid json", domain.ErrInvalidArgument), nil)
		return false
	}
	if err := getValidator().Struct(dst); err != nil {
		verrs := map[string]string{}
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			for _, fe := range ve {
				verrs[fe.Field()] = fe.Tag()
			}
		}
		writeError(w, r, fmt.Errorf("%w: validation failed", domain.ErrInvalidArgument), verrs)
		return false
	}
	return true
}
