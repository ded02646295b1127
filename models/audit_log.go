package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// RoleChange is one row of admin_audit_log. Rows are written once and never
// updated or deleted.
type RoleChange struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	ChangedBy  *uuid.UUID      `json:"changed_by" db:"changed_by"`
	TargetUser *uuid.UUID      `json:"target_user" db:"target_user"`
	OldRole    *string         `json:"old_role" db:"old_role"`
	NewRole    string          `json:"new_role" db:"new_role"`
	Reason     *string         `json:"reason" db:"reason"`
	Details    json.RawMessage `json:"details" db:"details"` // JSONB
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the RoleChange model
func (RoleChange) TableName() string {
	return "admin_audit_log"
}

// NewRoleChange creates a RoleChange for a completed role update.
// CreatedAt is assigned by the database on insert.
func NewRoleChange(changedBy, targetUser uuid.UUID, oldRole Role, newRole Role) *RoleChange {
	rc := &RoleChange{
		ID:         uuid.New(),
		ChangedBy:  &changedBy,
		TargetUser: &targetUser,
		NewRole:    string(newRole),
	}
	if oldRole != "" {
		old := string(oldRole)
		rc.OldRole = &old
	}
	return rc
}

// WithReason sets the free-text reason; blank reasons are stored as null
func (rc *RoleChange) WithReason(reason string) *RoleChange {
	if reason != "" {
		rc.Reason = &reason
	}
	return rc
}

// WithDetails sets the structured detail payload
func (rc *RoleChange) WithDetails(details interface{}) *RoleChange {
	if details == nil {
		return rc
	}
	if data, err := json.Marshal(details); err == nil {
		rc.Details = data
	}
	return rc
}

// AuditEntry is a RoleChange enriched with display names for the console
type AuditEntry struct {
	ID              uuid.UUID       `json:"id"`
	ChangedBy       *uuid.UUID      `json:"changed_by"`
	TargetUser      *uuid.UUID      `json:"target_user"`
	OldRole         *string         `json:"old_role"`
	NewRole         string          `json:"new_role"`
	Reason          *string         `json:"reason"`
	Details         json.RawMessage `json:"details"`
	CreatedAt       time.Time       `json:"created_at"`
	ChangedByName   *string         `json:"changed_by_name"`
	ChangedByEmail  *string         `json:"changed_by_email"`
	TargetUserName  *string         `json:"target_user_name"`
	TargetUserEmail *string         `json:"target_user_email"`
}

// NewAuditEntry copies the stored fields of a RoleChange
func NewAuditEntry(rc *RoleChange) AuditEntry {
	details := rc.Details
	if len(details) == 0 {
		details = json.RawMessage("null")
	}
	return AuditEntry{
		ID:         rc.ID,
		ChangedBy:  rc.ChangedBy,
		TargetUser: rc.TargetUser,
		OldRole:    rc.OldRole,
		NewRole:    rc.NewRole,
		Reason:     rc.Reason,
		Details:    details,
		CreatedAt:  rc.CreatedAt,
	}
}

// AuditPage is the response body of the audit listing endpoint
type AuditPage struct {
	Data       []AuditEntry `json:"data"`
	NextCursor *string      `json:"next_cursor"`
	HasMore    bool         `json:"has_more"`
}

// CursorLayout is the wire format of audit cursors
const CursorLayout = time.RFC3339Nano

// FormatCursor renders a creation timestamp as a page cursor
func FormatCursor(t time.Time) string {
	return t.UTC().Format(CursorLayout)
}

// ParseCursor parses a cursor produced by FormatCursor (or any RFC 3339 time)
func ParseCursor(s string) (time.Time, error) {
	return time.Parse(CursorLayout, s)
}
