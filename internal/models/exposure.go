package models

// ExposureState is the per-slot-instance measurement state. HasFired flips
// from false to true at most once while the instance is mounted and never
// resets; a new mount starts from a zero ExposureState.
type ExposureState struct {
	ContentID string
	HasFired  bool
	IsLoading bool
	LastError error
}
