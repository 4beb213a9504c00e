package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/VishnuMK2006/invent-consolt/internal/store"
)

const (
	codeValidation          = "VALIDATION_ERROR"
	codeNotFound            = "NOT_FOUND"
	codeUnavailableProducts = "UNAVAILABLE_PRODUCTS"
	codeInsufficientStock   = "INSUFFICIENT_STOCK"
	codeStockConflict       = "STOCK_CONFLICT"
	codeConflict            = "CONFLICT"
	codeInternal            = "INTERNAL_ERROR"
	codeMethodNotAllowed    = "METHOD_NOT_ALLOWED"
	codeTooLarge            = "PAYLOAD_TOO_LARGE"
	codeUnavailable         = "UNAVAILABLE"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	return v
}

var errBodyTooLarge = errors.New("request body too large")

// decodeJSON decodes a single JSON object and runs struct validation.
func decodeJSON(r *http.Request, dest any) error {
	defer func() {
		_, _ = io.Copy(io.Discard, r.Body)
	}()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return errBodyTooLarge
		}
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body is empty", store.ErrInvalidInput)
		}
		return fmt.Errorf("%w: invalid request body: %v", store.ErrInvalidInput, err)
	}
	if decoder.More() {
		return fmt.Errorf("%w: request body must contain a single JSON object", store.ErrInvalidInput)
	}
	if err := validate.Struct(dest); err != nil {
		return validationError(err)
	}
	return nil
}

func validationError(err error) error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return fmt.Errorf("%w: %v", store.ErrInvalidInput, err)
	}
	msgs := make([]string, 0, len(errs))
	for _, fe := range errs {
		msgs = append(msgs, fmt.Sprintf("%s %s", fieldPath(fe), validationMessage(fe)))
	}
	sort.Strings(msgs)
	return fmt.Errorf("%w: %s", store.ErrInvalidInput, strings.Join(msgs, "; "))
}

// fieldPath drops the top-level struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.Index(ns, "."); idx >= 0 {
		return ns[idx+1:]
	}
	return fe.Field()
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must have at least %s entries", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "email":
		return "must be a valid email"
	case "url":
		return "must be a valid URL"
	}
	return "is invalid"
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, errBodyTooLarge):
		return http.StatusRequestEntityTooLarge, codeTooLarge
	case errors.Is(err, store.ErrInvalidInput):
		return http.StatusBadRequest, codeValidation
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, store.ErrUnavailableProducts):
		return http.StatusUnprocessableEntity, codeUnavailableProducts
	case errors.Is(err, store.ErrInsufficientStock):
		return http.StatusConflict, codeInsufficientStock
	case errors.Is(err, store.ErrStockConflict):
		return http.StatusConflict, codeStockConflict
	case errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict, codeConflict
	default:
		return http.StatusInternalServerError, codeInternal
	}
}

// writeError maps err to a status. 5xx bodies stay generic and the cause is
// logged instead.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)
	msg := err.Error()
	if status >= 500 {
		a.log.Error(r.Context(), "request failed", err, map[string]any{"status": status})
		msg = "internal server error"
	}
	writeMessage(w, status, code, msg)
}

func writeMessage(w http.ResponseWriter, status int, code string, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
		"code":  code,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}
