package pagination

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	// DefaultPageSize defines the fallback number of items returned when the client omits pageSize.
	DefaultPageSize = 50
	// DefaultMaxPageSize caps the supported pageSize to prevent unbounded queries.
	DefaultMaxPageSize = 100

	maxFilterValueLength = 256
)

// Order describes a single order-by clause.
type Order struct {
	Field string
	Desc  bool
}

// Filter captures an equality predicate parsed from the query string.
type Filter struct {
	Field string
	Value string
}

// Cursor represents the Firestore pagination cursor payload.
type Cursor struct {
	StartAfter []any `json:"startAfter,omitempty"`
}

// IsZero reports whether the cursor carries no position.
func (c Cursor) IsZero() bool {
	return len(c.StartAfter) == 0
}

// Params bundles pagination, sorting, and filtering values extracted from a request.
type Params struct {
	PageSize  int
	PageToken string
	Cursor    Cursor
	Order     Order
	Filters   []Filter
}

// Options control how Parse behaves for a given handler.
type Options struct {
	DefaultPageSize     int
	MaxPageSize         int
	DefaultOrder        Order
	AllowedOrderFields  []string
	AllowedFilterFields []string
}

var (
	ErrInvalidPageSize  = errors.New("pagination: invalid pageSize")
	ErrInvalidOrderBy   = errors.New("pagination: invalid orderBy")
	ErrInvalidFilter    = errors.New("pagination: invalid filter")
	ErrInvalidPageToken = errors.New("pagination: invalid pageToken")
)

// FromRequest parses the supported query parameters from the supplied request.
func FromRequest(r *http.Request, opts Options) (Params, error) {
	if r == nil {
		return Params{}, errors.New("pagination: nil request")
	}
	return Parse(r.URL.Query(), opts)
}

// Parse consumes the provided query values and returns the normalised Params representation.
func Parse(values url.Values, opts Options) (Params, error) {
	if values == nil {
		values = url.Values{}
	}

	pageSize, err := parsePageSize(values.Get("pageSize"), opts)
	if err != nil {
		return Params{}, err
	}

	params := Params{PageSize: pageSize, Order: opts.DefaultOrder}

	rawToken := strings.TrimSpace(values.Get("pageToken"))
	if rawToken != "" {
		cursor, err := DecodeToken(rawToken)
		if err != nil {
			return Params{}, err
		}
		params.PageToken = rawToken
		params.Cursor = cursor
	}

	if raw := strings.TrimSpace(values.Get("orderBy")); raw != "" {
		order, err := parseOrder(raw, opts.AllowedOrderFields)
		if err != nil {
			return Params{}, err
		}
		params.Order = order
	}

	filters, err := parseFilters(values["filter"], opts.AllowedFilterFields)
	if err != nil {
		return Params{}, err
	}
	params.Filters = filters

	return params, nil
}

func parsePageSize(raw string, opts Options) (int, error) {
	maxPageSize := opts.MaxPageSize
	if maxPageSize <= 0 {
		maxPageSize = DefaultMaxPageSize
	}

	defaultPageSize := opts.DefaultPageSize
	if defaultPageSize <= 0 {
		defaultPageSize = DefaultPageSize
	}
	if defaultPageSize > maxPageSize {
		defaultPageSize = maxPageSize
	}

	if strings.TrimSpace(raw) == "" {
		return defaultPageSize, nil
	}

	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: must be an integer", ErrInvalidPageSize)
	}
	if value <= 0 {
		return 0, fmt.Errorf("%w: must be greater than zero", ErrInvalidPageSize)
	}
	if value > maxPageSize {
		value = maxPageSize
	}
	return value, nil
}

// parseOrder accepts "field", "field:desc", or "field desc" forms.
func parseOrder(raw string, allowed []string) (Order, error) {
	if len(allowed) == 0 {
		return Order{}, fmt.Errorf("%w: ordering not supported", ErrInvalidOrderBy)
	}

	if strings.Contains(raw, ":") && !strings.Contains(raw, " ") {
		raw = strings.ReplaceAll(raw, ":", " ")
	}
	segments := strings.Fields(raw)
	if len(segments) == 0 || len(segments) > 2 {
		return Order{}, fmt.Errorf("%w: invalid orderBy format %q", ErrInvalidOrderBy, raw)
	}

	field := segments[0]
	if !isAllowedFieldName(field) {
		return Order{}, fmt.Errorf("%w: invalid field %q", ErrInvalidOrderBy, field)
	}
	if !containsField(allowed, field) {
		return Order{}, fmt.Errorf("%w: field %q is not allowed", ErrInvalidOrderBy, field)
	}

	desc := false
	if len(segments) == 2 {
		switch strings.ToLower(segments[1]) {
		case "asc":
		case "desc":
			desc = true
		default:
			return Order{}, fmt.Errorf("%w: invalid direction %q", ErrInvalidOrderBy, segments[1])
		}
	}

	return Order{Field: field, Desc: desc}, nil
}

// parseFilters accepts repeated "filter=field==value" query values.
func parseFilters(values []string, allowed []string) ([]Filter, error) {
	if len(values) == 0 {
		return nil, nil
	}
	if len(allowed) == 0 {
		return nil, fmt.Errorf("%w: filtering not supported", ErrInvalidFilter)
	}

	filters := make([]Filter, 0, len(values))
	for _, raw := range values {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}

		idx := strings.Index(raw, "==")
		if idx <= 0 {
			return nil, fmt.Errorf("%w: missing operator in %q", ErrInvalidFilter, raw)
		}
		field := strings.TrimSpace(raw[:idx])
		value := sanitizeFilterValue(raw[idx+2:])
		if !isAllowedFieldName(field) {
			return nil, fmt.Errorf("%w: invalid field %q", ErrInvalidFilter, field)
		}
		if !containsField(allowed, field) {
			return nil, fmt.Errorf("%w: field %q is not allowed", ErrInvalidFilter, field)
		}
		if value == "" {
			return nil, fmt.Errorf("%w: empty value for field %q", ErrInvalidFilter, field)
		}
		filters = append(filters, Filter{Field: field, Value: value})
	}

	return filters, nil
}

func sanitizeFilterValue(value string) string {
	value = strings.TrimSpace(value)
	value = strings.Trim(value, "\"'")
	value = strings.ReplaceAll(value, "\n", " ")
	value = strings.ReplaceAll(value, "\r", " ")
	value = strings.TrimSpace(value)
	if len(value) > maxFilterValueLength {
		value = value[:maxFilterValueLength]
	}
	return value
}

func containsField(allowed []string, field string) bool {
	for _, candidate := range allowed {
		if candidate == field {
			return true
		}
	}
	return false
}

func isAllowedFieldName(field string) bool {
	if field == "" {
		return false
	}
	for _, r := range field {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_' || r == '.':
		default:
			return false
		}
	}
	return true
}
