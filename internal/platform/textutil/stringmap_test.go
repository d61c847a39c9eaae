package textutil

import (
	"reflect"
	"testing"
)

func TestNormalizeRecord(t *testing.T) {
	t.Run("trims and lowercases keys, trims values", func(t *testing.T) {
		input := map[string]string{
			" Enabled ":     " true ",
			"section_title": " Extra ",
			"custom_style":  " ",
			" ":             "ignored",
			"":              "ignored",
		}

		expected := map[string]string{
			"enabled":       "true",
			"section_title": "Extra",
			"custom_style":  "",
		}

		actual := NormalizeRecord(input)
		if !reflect.DeepEqual(actual, expected) {
			t.Fatalf("expected %#v got %#v", expected, actual)
		}
	})

	t.Run("returns nil for nil or empty input", func(t *testing.T) {
		if NormalizeRecord(nil) != nil {
			t.Fatalf("expected nil for nil input")
		}
		if NormalizeRecord(map[string]string{}) != nil {
			t.Fatalf("expected nil for empty map")
		}
	})
}
