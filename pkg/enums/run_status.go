package enums

// RunStatus records the outcome of the most recent pipeline run.
type RunStatus string

const (
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
)

// String implements fmt.Stringer.
func (r RunStatus) String() string {
	return string(r)
}
