// Package validation provides input validation for dashboard requests.
package validation

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
)

// MaxRequestSize is the maximum request body size (64KB). Auth payloads are
// tiny; anything larger is not a legitimate request.
const MaxRequestSize = 64 << 10

// MaxStringLength is the maximum length for string fields
const MaxStringLength = 1000

var (
	// emailRegex is a permissive shape check; the analytics API is the
	// authority on deliverability.
	emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	// areaCodeRegex validates ONS area codes (e.g. E09000007)
	areaCodeRegex = regexp.MustCompile(`^[EWSN]\d{8}$`)
)

// RequestSizeMiddleware limits request body size
func RequestSizeMiddleware(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

// IsValidEmail checks if a string looks like an email address
func IsValidEmail(s string) bool {
	return len(s) <= 254 && emailRegex.MatchString(s)
}

// IsValidAreaCode checks if a string is a well-formed ONS area code
func IsValidAreaCode(s string) bool {
	return areaCodeRegex.MatchString(s)
}

// SanitizeString removes dangerous characters and limits length
func SanitizeString(s string, maxLen int) string {
	s = strings.TrimSpace(s)

	if len(s) > maxLen {
		s = s[:maxLen]
	}

	// Remove null bytes
	s = strings.ReplaceAll(s, "\x00", "")

	return s
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	return e[0].Field + ": " + e[0].Message
}

// Validate validates a request and returns errors
func Validate(validators ...func() *ValidationError) ValidationErrors {
	var errors ValidationErrors
	for _, v := range validators {
		if err := v(); err != nil {
			errors = append(errors, *err)
		}
	}
	return errors
}

// Required checks if a field is non-empty
func Required(field, value string) func() *ValidationError {
	return func() *ValidationError {
		if strings.TrimSpace(value) == "" {
			return &ValidationError{Field: field, Message: "is required"}
		}
		return nil
	}
}

// ValidEmail checks if a field is a well-formed email address
func ValidEmail(field, value string) func() *ValidationError {
	return func() *ValidationError {
		if value == "" {
			return nil // Use Required for required fields
		}
		if !IsValidEmail(value) {
			return &ValidationError{Field: field, Message: "must be a valid email address"}
		}
		return nil
	}
}

// MinLength checks if a field meets a minimum length
func MinLength(field, value string, min int) func() *ValidationError {
	return func() *ValidationError {
		if value != "" && len(value) < min {
			return &ValidationError{Field: field, Message: "is too short"}
		}
		return nil
	}
}

// MaxLength checks if a field exceeds max length
func MaxLength(field, value string, max int) func() *ValidationError {
	return func() *ValidationError {
		if len(value) > max {
			return &ValidationError{Field: field, Message: "exceeds maximum length"}
		}
		return nil
	}
}

// Matches checks that two fields carry the same value. Used for the
// password-confirmation check, which never leaves the server.
func Matches(field, value, other string) func() *ValidationError {
	return func() *ValidationError {
		if value != other {
			return &ValidationError{Field: field, Message: "does not match"}
		}
		return nil
	}
}

// AreaParamMiddleware validates the :area URL parameter on routes that use it.
// Apply to route groups that include :area params to reject malformed codes early.
func AreaParamMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		area := c.Param("area")
		if area != "" && !IsValidAreaCode(area) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_area",
				"message": "area must be an ONS area code (letter + 8 digits)",
			})
			return
		}
		c.Next()
	}
}
