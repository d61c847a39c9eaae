package domain

// Signal is a tri-state boolean carried by host update payloads. It keeps the
// distinction between a field that was sent with an explicit false and a field
// that was not sent at all, which the reconciliation precedence depends on.
type Signal struct {
	present bool
	value   bool
}

// AbsentSignal returns a signal that was not present in the payload.
func AbsentSignal() Signal {
	return Signal{}
}

// PresentSignal returns a signal carrying an explicit boolean value.
func PresentSignal(value bool) Signal {
	return Signal{present: true, value: value}
}

// Present reports whether the signal was sent, regardless of its value.
func (s Signal) Present() bool {
	return s.present
}

// Value returns the carried boolean. It is only meaningful when Present is true.
func (s Signal) Value() bool {
	return s.present && s.value
}

// Or returns the carried value when present, otherwise the fallback.
func (s Signal) Or(fallback bool) bool {
	if s.present {
		return s.value
	}
	return fallback
}

// UpdateSignals bundles the two write signals a cart or checkout update may carry.
type UpdateSignals struct {
	// Field is the structured additional checkout field value.
	Field Signal
	// Extension is the free-form extension-data value under the reserved namespace.
	Extension Signal
}

// Empty reports whether neither signal was sent.
func (u UpdateSignals) Empty() bool {
	return !u.Field.Present() && !u.Extension.Present()
}

// Choose resolves the authoritative value: the structured field wins whenever it
// was explicitly sent (including explicit false), then the extension value, then
// the provided fallback. The boolean result reports whether either signal chose.
func (u UpdateSignals) Choose(fallback bool) (bool, bool) {
	if u.Field.Present() {
		return u.Field.Value(), true
	}
	if u.Extension.Present() {
		return u.Extension.Value(), true
	}
	return fallback, false
}
