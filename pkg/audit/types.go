package audit

import (
	"encoding/json"
	"time"
)

// EventType represents the category of audit event
type EventType string

const (
	// Authentication events
	EventTypeAuthLogin       EventType = "auth.login"
	EventTypeAuthLogout      EventType = "auth.logout"
	EventTypeAuthLoginFailed EventType = "auth.login_failed"

	// Authorization events
	EventTypeAccessDenied EventType = "authz.access_denied"
	EventTypeRoleAssign   EventType = "authz.role_assign"
	EventTypeRoleRemove   EventType = "authz.role_remove"

	// Folder events
	EventTypeFolderCreate     EventType = "folder.create"
	EventTypeFolderDeactivate EventType = "folder.deactivate"

	// Grant events
	EventTypeGrantUpsert EventType = "grant.upsert"
	EventTypeGrantRevoke EventType = "grant.revoke"

	// Secret events
	EventTypeSecretCreate     EventType = "secret.create"
	EventTypeSecretReveal     EventType = "secret.reveal"
	EventTypeSecretDeactivate EventType = "secret.deactivate"

	// Admin events
	EventTypeAdminUserView EventType = "admin.user_view"

	// Configuration events
	EventTypeConfigPolicyReload EventType = "config.policy_reload"
	EventTypeConfigCertReload   EventType = "config.cert_reload"

	// Generic HTTP request record (middleware)
	EventTypeHTTPRequest EventType = "http.request"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// ResourceType represents the type of resource being accessed
type ResourceType string

const (
	ResourceTypeUser    ResourceType = "user"
	ResourceTypeFolder  ResourceType = "folder"
	ResourceTypeSecret  ResourceType = "secret"
	ResourceTypeGrant   ResourceType = "grant"
	ResourceTypeSession ResourceType = "session"
	ResourceTypeConfig  ResourceType = "config"
)

// AuditEvent represents a single audit log entry. Actors are identified
// by email: the SSO identity provider owns the account namespace, so
// there is no local numeric user ID to track.
type AuditEvent struct {
	// Core fields
	ID        int64       `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// Actor information
	ActorEmail string `json:"actor_email,omitempty"`
	SessionID  string `json:"session_id,omitempty"`

	// Resource information
	ResourceType ResourceType `json:"resource_type,omitempty"`
	ResourceID   string       `json:"resource_id,omitempty"`
	ResourceName string       `json:"resource_name,omitempty"`

	// Request context
	IPAddress  string `json:"ip_address,omitempty"`
	UserAgent  string `json:"user_agent,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
	Method     string `json:"method,omitempty"`
	Path       string `json:"path,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`

	// Additional details. Secret values never appear here; the reveal
	// path records the secret's ID and folder, not its contents.
	Message      string                 `json:"message,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`

	// Changes tracking (before/after for updates)
	Changes *ChangeDetails `json:"changes,omitempty"`
}

// ChangeDetails tracks before/after values for updates
type ChangeDetails struct {
	Before map[string]interface{} `json:"before,omitempty"`
	After  map[string]interface{} `json:"after,omitempty"`
}

// ToJSON converts the audit event to JSON
func (e *AuditEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON parses an audit event from JSON
func FromJSON(data []byte) (*AuditEvent, error) {
	var event AuditEvent
	err := json.Unmarshal(data, &event)
	return &event, err
}

// SearchFilter represents filters for searching audit logs
type SearchFilter struct {
	// Time range
	StartTime *time.Time
	EndTime   *time.Time

	// Actor filters
	ActorEmail string

	// Event filters
	EventTypes []EventType
	Status     *EventStatus

	// Resource filters
	ResourceType ResourceType
	ResourceID   string

	// Request context filters
	IPAddress string
	Method    string
	Path      string

	// Pagination
	Limit  int
	Offset int

	// Sorting
	SortBy    string // field name to sort by
	SortOrder string // "asc" or "desc"
}

// ExportFormat represents the format for exporting audit logs
type ExportFormat string

const (
	ExportFormatJSON   ExportFormat = "json"
	ExportFormatCSV    ExportFormat = "csv"
	ExportFormatNDJSON ExportFormat = "ndjson" // Newline-delimited JSON
)

// AuditStats represents statistics about audit logs
type AuditStats struct {
	TotalEvents      int64                  `json:"total_events"`
	EventsByType     map[EventType]int64    `json:"events_by_type"`
	EventsByStatus   map[EventStatus]int64  `json:"events_by_status"`
	EventsByResource map[ResourceType]int64 `json:"events_by_resource"`
	UniqueActors     int64                  `json:"unique_actors"`
	UniqueIPs        int64                  `json:"unique_ips"`
	FailedLogins     int64                  `json:"failed_logins"`
	AccessDenials    int64                  `json:"access_denials"`
	SecretReveals    int64                  `json:"secret_reveals"`
	TimeRange        *TimeRange             `json:"time_range,omitempty"`
}

// TimeRange represents a time range for statistics
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// RetentionPolicy defines how long audit logs should be kept
type RetentionPolicy struct {
	// RetentionDays is the number of days to keep audit logs
	RetentionDays int

	// ArchiveEnabled determines if old logs should be archived to object
	// storage before deletion
	ArchiveEnabled bool

	// ArchiveBucket is the S3 bucket receiving archived logs
	ArchiveBucket string

	// ArchivePrefix is the key prefix within the bucket
	ArchivePrefix string
}

// DefaultRetentionPolicy returns a default retention policy (90 days)
func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{
		RetentionDays:  90,
		ArchiveEnabled: false,
		ArchivePrefix:  "audit-archive",
	}
}
