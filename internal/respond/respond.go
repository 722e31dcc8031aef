// Package respond holds the JSON error and validation helpers shared by the route handlers.
package respond

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// DegradedHeader marks a listing that was served empty because the backend failed.
const DegradedHeader = "X-Degraded"

// FieldError is one entry of a validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error   string       `json:"error"`
	Details []FieldError `json:"details,omitempty"`
	Code    string       `json:"code,omitempty"`
}

// Error writes {error: msg} with status.
func Error(c *gin.Context, status int, msg string) {
	c.JSON(status, ErrorResponse{Error: msg})
}

// Abort writes {error: msg} and stops the handler chain.
func Abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: msg})
}

// Internal logs err and writes a 500 without leaking it.
func Internal(c *gin.Context, logger *slog.Logger, msg string, err error) {
	logger.ErrorContext(c.Request.Context(), msg, "error", err, "path", c.Request.URL.Path)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
}

// Degraded serves an empty list flagged with X-Degraded after a backend failure.
func Degraded(c *gin.Context, logger *slog.Logger, what string, err error) {
	logger.WarnContext(c.Request.Context(), "serving degraded empty listing", "listing", what, "error", err)
	c.Header(DegradedHeader, "true")
	c.JSON(http.StatusOK, []struct{}{})
}

// BindJSON decodes and validates the request body into dst. On failure it writes a 400
// with field-level details and returns false.
func BindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid input",
			Details: Details(err),
		})
		return false
	}
	return true
}

// Details translates a binding error into field-level messages.
func Details(err error) []FieldError {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		out := make([]FieldError, 0, len(verrs))
		for _, fe := range verrs {
			out = append(out, FieldError{Field: fe.Field(), Message: message(fe)})
		}
		return out
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return []FieldError{{Field: typeErr.Field, Message: "must be of type " + typeErr.Type.String()}}
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return []FieldError{{Field: "body", Message: "must be valid JSON"}}
	}
	return []FieldError{{Field: "body", Message: err.Error()}}
}

func message(fe validator.FieldError) string {
	isList := fe.Kind() == reflect.Slice || fe.Kind() == reflect.Array
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if isList {
			return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
		}
		return fmt.Sprintf("must be at least %s character(s)", fe.Param())
	case "max":
		if isList {
			return fmt.Sprintf("must contain at most %s item(s)", fe.Param())
		}
		return fmt.Sprintf("must be at most %s character(s)", fe.Param())
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "url":
		return "must be a valid URL"
	default:
		return "is invalid"
	}
}

var registerOnce sync.Once

// RegisterValidation makes validation errors report JSON field names.
func RegisterValidation() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
	})
}
