package storage

import "time"

// Change types recorded in catalog_changes.
const (
	ChangeAdded   = "added"
	ChangeUpdated = "updated"
	ChangeRemoved = "removed"
)

// Change captures a single change between two consecutive builds. Version is
// empty for changes to the template itself.
type Change struct {
	OccurredAt time.Time `json:"occurred_at"`
	BuildID    int64     `json:"build_id"`
	TemplateID string    `json:"template_id"`
	Name       string    `json:"name"`
	Version    string    `json:"version,omitempty"`
	ChangeType string    `json:"change_type"` // added | updated | removed
	Detail     string    `json:"detail,omitempty"`
}

// Build is one persisted catalog build.
type Build struct {
	ID            int64     `json:"id"`
	GeneratedAt   time.Time `json:"generated_at"`
	RecordedAt    time.Time `json:"recorded_at"`
	TemplateCount int       `json:"template_count"`
	VersionCount  int       `json:"version_count"`
	GitCommit     string    `json:"git_commit,omitempty"`
	ToolVersion   string    `json:"tool_version,omitempty"`
}

// Template is the current stored state of one template.
type Template struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	IDTANumber    string    `json:"idta_number,omitempty"`
	Status        string    `json:"status"`
	RawStatus     string    `json:"raw_status,omitempty"`
	Description   string    `json:"description,omitempty"`
	LatestVersion string    `json:"latest_version,omitempty"`
	VersionCount  int       `json:"version_count"`
	FirstSeenAt   time.Time `json:"first_seen_at"`
	LastSeenAt    time.Time `json:"last_seen_at"`
}

// UpsertResult is the outcome of recording a catalog.
type UpsertResult struct {
	BuildID    int64
	IsFirstRun bool
	Changes    []Change
}
