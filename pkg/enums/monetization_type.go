package enums

import "fmt"

// MonetizationType maps to the monetization_type enum in Postgres and
// describes the commercial model of a streaming offer.
type MonetizationType string

const (
	MonetizationFlatrate MonetizationType = "flatrate"
	MonetizationRent     MonetizationType = "rent"
	MonetizationBuy      MonetizationType = "buy"
	MonetizationAds      MonetizationType = "ads"
	MonetizationFree     MonetizationType = "free"
)

var validMonetizationTypes = []MonetizationType{
	MonetizationFlatrate,
	MonetizationRent,
	MonetizationBuy,
	MonetizationAds,
	MonetizationFree,
}

// String implements fmt.Stringer.
func (m MonetizationType) String() string {
	return string(m)
}

// IsValid reports whether the value matches the canonical monetization_type enum.
func (m MonetizationType) IsValid() bool {
	for _, candidate := range validMonetizationTypes {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseMonetizationType converts raw input into MonetizationType.
func ParseMonetizationType(value string) (MonetizationType, error) {
	for _, candidate := range validMonetizationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid monetization type %q", value)
}
