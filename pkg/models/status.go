package models

// TaskStatus represents the lifecycle state of a download task
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"   // Task planned but not started
	TaskStatusRunning   TaskStatus = "running"   // Task picked up by a worker
	TaskStatusSucceeded TaskStatus = "succeeded" // Asset obtained (network or local copy)
	TaskStatusFailed    TaskStatus = "failed"    // Terminal failure after retries
	TaskStatusCancelled TaskStatus = "cancelled" // Run cancelled before/during the task
)

// String implements fmt.Stringer for logging
func (s TaskStatus) String() string {
	if s == "" {
		return "unset"
	}
	return string(s)
}

// IsValid returns true if the status is a known operational value
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusPending, TaskStatusRunning, TaskStatusSucceeded, TaskStatusFailed, TaskStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether a task in this status can never transition again
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusSucceeded, TaskStatusFailed, TaskStatusCancelled:
		return true
	}
	return false
}

// AssetType identifies which kind of asset a task fetches
type AssetType string

const (
	AssetTypeImage AssetType = "image"
	AssetTypePDF   AssetType = "pdf"
)

// String implements fmt.Stringer for logging
func (a AssetType) String() string { return string(a) }

// IsValid returns true if the asset type is known
func (a AssetType) IsValid() bool {
	return a == AssetTypeImage || a == AssetTypePDF
}
