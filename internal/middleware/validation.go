package middleware

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apierrors "covidqc/internal/errors"
)

const defaultMaxBodySize = 1 << 20

// RequestValidator decodes request bodies and checks them against their
// validate struct tags.
type RequestValidator struct {
	validator   *validator.Validate
	logger      *slog.Logger
	maxBodySize int64
}

// NewRequestValidator creates a validator reporting fields by JSON name
func NewRequestValidator(logger *slog.Logger) *RequestValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &RequestValidator{
		validator:   v,
		logger:      logger.With(slog.String("component", "request_validator")),
		maxBodySize: defaultMaxBodySize,
	}
}

// Decode reads a JSON body into v and validates it. An empty body leaves v
// at its zero value, which must itself be valid.
func (m *RequestValidator) Decode(r *http.Request, v any) error {
	if r.ContentLength > m.maxBodySize {
		return apierrors.NewAppValidationError(fmt.Sprintf("request body exceeds %d bytes", m.maxBodySize))
	}
	if r.Body != nil {
		r.Body = http.MaxBytesReader(nil, r.Body, m.maxBodySize)
		if err := render.DecodeJSON(r.Body, v); err != nil && !errors.Is(err, io.EOF) {
			m.logger.DebugContext(r.Context(), "invalid request body", slog.String("error", err.Error()))
			return apierrors.NewAppValidationError("request body contains invalid JSON")
		}
	}
	return m.Validate(v)
}

// Validate checks v against its struct tags
func (m *RequestValidator) Validate(v any) error {
	err := m.validator.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apierrors.NewAppValidationError(err.Error())
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, formatValidationError(fe))
	}
	return apierrors.NewAppValidationError(strings.Join(msgs, "; "))
}

func formatValidationError(err validator.FieldError) string {
	field := err.Field()
	param := err.Param()

	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, param)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(param, " ", ", "))
	case "uuid":
		return fmt.Sprintf("%s must be a valid UUID", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, err.Tag())
	}
}

// QueryInt parses an integer query parameter within [min, max]. A missing
// parameter yields def.
func QueryInt(r *http.Request, param string, min, max, def int) (int, error) {
	value := r.URL.Query().Get(param)
	if value == "" {
		return def, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, apierrors.NewAppValidationError(fmt.Sprintf("%s must be a valid integer", param))
	}
	if n < min || n > max {
		return 0, apierrors.NewAppValidationError(fmt.Sprintf("%s must be between %d and %d", param, min, max))
	}
	return n, nil
}
