package textutil

import "strings"

// NormalizeRecord cleans a flat settings record for persistence. Keys are
// trimmed and lowercased so hand-edited variants like " Enabled " land on the
// canonical snake_case key; values are trimmed, and entries without a key are
// dropped.
func NormalizeRecord(values map[string]string) map[string]string {
	if len(values) == 0 {
		return nil
	}
	result := make(map[string]string, len(values))
	for key, value := range values {
		normalizedKey := strings.ToLower(strings.TrimSpace(key))
		if normalizedKey == "" {
			continue
		}
		result[normalizedKey] = strings.TrimSpace(value)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
