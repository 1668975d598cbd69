package api

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/steemit/bulletin/internal/apierr"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// parsePage returns the requested page; anything unparsable or below 1 is page 1
func parsePage(raw string) int {
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// parseLimit returns the requested page size clamped to 1..maxLimit
func parseLimit(raw string) int {
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

func parseID(raw, what string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, apierr.Validation("invalid "+what+" id", apierr.FieldError{Field: "id", Message: "must be a positive integer"})
	}
	return id, nil
}

// trimmedText trims s and checks its length in characters
func trimmedText(field, s string, min, max int) (string, *apierr.FieldError) {
	s = strings.TrimSpace(s)
	n := utf8.RuneCountInString(s)
	switch {
	case n < min && min <= 1:
		return s, &apierr.FieldError{Field: field, Message: "is required"}
	case n < min:
		return s, &apierr.FieldError{Field: field, Message: "must be at least " + strconv.Itoa(min) + " characters"}
	case max > 0 && n > max:
		return s, &apierr.FieldError{Field: field, Message: "must be at most " + strconv.Itoa(max) + " characters"}
	}
	return s, nil
}

// collect turns the non-nil field errors into a validation error, or nil
func collect(fields ...*apierr.FieldError) error {
	var out []apierr.FieldError
	for _, f := range fields {
		if f != nil {
			out = append(out, *f)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return apierr.Validation("validation failed", out...)
}
