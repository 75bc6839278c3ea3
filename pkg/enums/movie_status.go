package enums

import "fmt"

// MovieStatus maps to the movie_status enum in Postgres.
type MovieStatus string

const (
	MovieStatusRumored        MovieStatus = "rumored"
	MovieStatusPlanned        MovieStatus = "planned"
	MovieStatusInProduction   MovieStatus = "in_production"
	MovieStatusPostProduction MovieStatus = "post_production"
	MovieStatusReleased       MovieStatus = "released"
	MovieStatusCanceled       MovieStatus = "canceled"
)

var validMovieStatuses = []MovieStatus{
	MovieStatusRumored,
	MovieStatusPlanned,
	MovieStatusInProduction,
	MovieStatusPostProduction,
	MovieStatusReleased,
	MovieStatusCanceled,
}

// String implements fmt.Stringer.
func (s MovieStatus) String() string {
	return string(s)
}

// IsValid reports whether the value matches the canonical movie_status enum.
func (s MovieStatus) IsValid() bool {
	for _, candidate := range validMovieStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseMovieStatus converts raw input into MovieStatus.
func ParseMovieStatus(value string) (MovieStatus, error) {
	for _, candidate := range validMovieStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid movie status %q", value)
}
