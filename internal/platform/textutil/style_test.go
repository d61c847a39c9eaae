package textutil

import (
	"strings"
	"testing"
)

func TestStyleSanitizerStripsMarkup(t *testing.T) {
	s := NewStyleSanitizer()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "plain css untouched",
			in:   ".eva-gift-wrap{color:#b00}",
			want: ".eva-gift-wrap{color:#b00}",
		},
		{
			name: "script tag removed",
			in:   "<script>alert(1)</script>.x{color:red}",
			want: ".x{color:red}",
		},
		{
			name: "style close tag removed",
			in:   ".x{color:red}</style><img src=x>",
			want: ".x{color:red}",
		},
		{
			name: "child combinator survives",
			in:   ".eva-gift-wrap > label{font-size:14px}",
			want: ".eva-gift-wrap > label{font-size:14px}",
		},
		{
			name: "quoted content survives",
			in:   `.x::after{content:"regalo"}`,
			want: `.x::after{content:"regalo"}`,
		},
		{
			name: "empty",
			in:   "   ",
			want: "",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := s.Sanitize(tc.in); got != tc.want {
				t.Fatalf("Sanitize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestStylesheetAppendsCustomRules(t *testing.T) {
	s := NewStyleSanitizer()

	got := s.Stylesheet(".eva-gift-wrap{background:#fafafa}")
	if !strings.HasPrefix(got, BaseStylesheet) {
		t.Fatalf("base stylesheet must come first: %q", got)
	}
	if !strings.HasSuffix(got, ".eva-gift-wrap{background:#fafafa}") {
		t.Fatalf("custom rules must come last: %q", got)
	}
}

func TestStylesheetWithoutCustomRules(t *testing.T) {
	s := NewStyleSanitizer()
	if got := s.Stylesheet("<script>boom()</script>"); got != BaseStylesheet {
		t.Fatalf("expected bare base stylesheet, got %q", got)
	}
}
