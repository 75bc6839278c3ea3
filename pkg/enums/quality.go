package enums

// Quality is the presentation tier reported for a streaming offer. Upstream
// vocab is open-ended, so unrecognized tiers collapse to QualityUnknown
// instead of failing normalization.
type Quality string

const (
	QualitySD      Quality = "SD"
	QualityHD      Quality = "HD"
	QualityUHD     Quality = "UHD"
	Quality4K      Quality = "4K"
	QualityUnknown Quality = "unknown"
)

var validQualities = []Quality{
	QualitySD,
	QualityHD,
	QualityUHD,
	Quality4K,
	QualityUnknown,
}

// String implements fmt.Stringer.
func (q Quality) String() string {
	return string(q)
}

// IsValid reports whether the value is a recognized tier.
func (q Quality) IsValid() bool {
	for _, candidate := range validQualities {
		if candidate == q {
			return true
		}
	}
	return false
}

// NormalizeQuality maps arbitrary provider input onto the canonical tiers.
func NormalizeQuality(value string) Quality {
	q := Quality(value)
	if q.IsValid() {
		return q
	}
	return QualityUnknown
}
