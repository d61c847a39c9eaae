package domain

import (
	"time"
)

const (
	// OrderMetaKey is the durable order metadata key holding the gift wrap snapshot.
	OrderMetaKey = "_eva_gift_wrap"
	// SessionKey is the per-session storage key for the gift wrap preference.
	SessionKey = "gift_wrap"
	// ExtensionNamespace is the reserved namespace for extension-data payloads.
	ExtensionNamespace = "eva"
	// CheckoutFieldID identifies the additional checkout field registered with the host.
	CheckoutFieldID = "eva/gift-wrap"
	// FeeName uniquely identifies the gift wrap fee line within a totals pass.
	FeeName = "eva_gift_wrap_fee"

	// OrderMetaYes and OrderMetaNo are the only values ever written to OrderMetaKey.
	OrderMetaYes = "yes"
	OrderMetaNo  = "no"
)

// Settings is the effective gift wrap configuration after defaults and coercion.
type Settings struct {
	Enabled      bool
	SectionTitle string
	Label        string
	FeeAmount    Money
	CustomStyle  string
}

// Default configuration values applied when stored settings are missing or malformed.
const (
	DefaultSectionTitle = "Extra"
	DefaultLabel        = "Confezione regalo"
	DefaultCurrency     = "EUR"
	DefaultFeeMinor     = 150
)

// DefaultSettings returns the documented configuration defaults.
func DefaultSettings() Settings {
	return Settings{
		Enabled:      true,
		SectionTitle: DefaultSectionTitle,
		Label:        DefaultLabel,
		FeeAmount:    Money{Amount: DefaultFeeMinor, Currency: DefaultCurrency},
		CustomStyle:  "",
	}
}

// SettingsRecord is the raw flat key-value configuration record as persisted.
// Values stay untyped strings so malformed entries survive to the coercion layer.
type SettingsRecord map[string]string

// Keys used within a SettingsRecord.
const (
	SettingEnabled      = "enabled"
	SettingSectionTitle = "section_title"
	SettingLabel        = "label"
	SettingFeeAmount    = "fee_amount"
	SettingCustomStyle  = "custom_style"
)

// FeeLine is a derived, non-persisted monetary addition to cart totals.
type FeeLine struct {
	Name    string
	Label   string
	Amount  Money
	Taxable bool
}

// CalcContext describes the execution context of a totals calculation pass.
type CalcContext string

const (
	// CalcContextStorefront is a customer-facing request.
	CalcContextStorefront CalcContext = "storefront"
	// CalcContextAdmin is an administrative request; fees are not applied there.
	CalcContextAdmin CalcContext = "admin"
	// CalcContextBackground is an asynchronous recomputation triggered by a customer action.
	CalcContextBackground CalcContext = "background"
)

// ParseCalcContext maps a wire value onto a CalcContext, defaulting to storefront.
func ParseCalcContext(value string) CalcContext {
	switch CalcContext(value) {
	case CalcContextAdmin:
		return CalcContextAdmin
	case CalcContextBackground:
		return CalcContextBackground
	default:
		return CalcContextStorefront
	}
}

// SessionRecord holds the per-session gift wrap preference.
type SessionRecord struct {
	ID        string
	GiftWrap  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrderSnapshot is the write-once durable copy of the preference attached to an order.
type OrderSnapshot struct {
	OrderID   string
	Value     string
	CreatedAt time.Time
}

// Wrapped reports whether the snapshot recorded an active gift wrap choice.
func (s OrderSnapshot) Wrapped() bool {
	return s.Value == OrderMetaYes
}

// SnapshotValue converts a boolean preference into its durable representation.
func SnapshotValue(wrapped bool) string {
	if wrapped {
		return OrderMetaYes
	}
	return OrderMetaNo
}
