package pagination

import (
	"errors"
	"net/url"
	"testing"
)

func TestParseDefaults(t *testing.T) {
	params, err := Parse(url.Values{}, Options{
		DefaultPageSize: 25,
		DefaultOrder:    Order{Field: "createdAt", Desc: true},
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if params.PageSize != 25 {
		t.Fatalf("expected default page size 25, got %d", params.PageSize)
	}
	if params.Order.Field != "createdAt" || !params.Order.Desc {
		t.Fatalf("expected default order applied, got %+v", params.Order)
	}
	if !params.Cursor.IsZero() {
		t.Fatalf("expected empty cursor")
	}
}

func TestParsePageSize(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		want    int
		wantErr error
	}{
		{name: "explicit", raw: "10", want: 10},
		{name: "capped to max", raw: "500", want: DefaultMaxPageSize},
		{name: "zero rejected", raw: "0", wantErr: ErrInvalidPageSize},
		{name: "negative rejected", raw: "-3", wantErr: ErrInvalidPageSize},
		{name: "non numeric rejected", raw: "ten", wantErr: ErrInvalidPageSize},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			values := url.Values{"pageSize": []string{tc.raw}}
			params, err := Parse(values, Options{})
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if params.PageSize != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, params.PageSize)
			}
		})
	}
}

func TestParseOrderBy(t *testing.T) {
	opts := Options{AllowedOrderFields: []string{"createdAt", "value"}}

	params, err := Parse(url.Values{"orderBy": []string{"createdAt:desc"}}, opts)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if params.Order.Field != "createdAt" || !params.Order.Desc {
		t.Fatalf("unexpected order %+v", params.Order)
	}

	if _, err := Parse(url.Values{"orderBy": []string{"secret:desc"}}, opts); !errors.Is(err, ErrInvalidOrderBy) {
		t.Fatalf("disallowed field must fail, got %v", err)
	}
	if _, err := Parse(url.Values{"orderBy": []string{"createdAt sideways"}}, opts); !errors.Is(err, ErrInvalidOrderBy) {
		t.Fatalf("bad direction must fail, got %v", err)
	}
}

func TestParseFilters(t *testing.T) {
	opts := Options{AllowedFilterFields: []string{"value"}}

	params, err := Parse(url.Values{"filter": []string{`value=="yes"`}}, opts)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(params.Filters) != 1 || params.Filters[0].Field != "value" || params.Filters[0].Value != "yes" {
		t.Fatalf("unexpected filters %+v", params.Filters)
	}

	if _, err := Parse(url.Values{"filter": []string{"orderId==x"}}, opts); !errors.Is(err, ErrInvalidFilter) {
		t.Fatalf("disallowed field must fail, got %v", err)
	}
	if _, err := Parse(url.Values{"filter": []string{"value"}}, opts); !errors.Is(err, ErrInvalidFilter) {
		t.Fatalf("missing operator must fail, got %v", err)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	cursor := Cursor{StartAfter: []any{"2025-03-01T10:00:00Z", "ord-9"}}

	token, err := EncodeToken(cursor)
	if err != nil {
		t.Fatalf("EncodeToken: %v", err)
	}
	if token == "" {
		t.Fatalf("expected non-empty token")
	}

	decoded, err := DecodeToken(token)
	if err != nil {
		t.Fatalf("DecodeToken: %v", err)
	}
	if len(decoded.StartAfter) != 2 || decoded.StartAfter[1] != "ord-9" {
		t.Fatalf("unexpected cursor %+v", decoded)
	}

	if _, err := DecodeToken("%%%not-base64%%%"); !errors.Is(err, ErrInvalidPageToken) {
		t.Fatalf("expected ErrInvalidPageToken, got %v", err)
	}
}

func TestEncodeTokenEmptyCursor(t *testing.T) {
	token, err := EncodeToken(Cursor{})
	if err != nil || token != "" {
		t.Fatalf("empty cursor must encode to empty token, got %q err %v", token, err)
	}
}
