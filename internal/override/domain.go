package override

import "time"

// Override is a user-specific grant layered on top of role grants, optionally
// resource-scoped and time-limited.
type Override struct {
	ID           int64      `json:"id"`
	UserID       int64      `json:"user_id"`
	PermissionID int64      `json:"permission_id"`
	GrantedBy    int64      `json:"granted_by"`
	Reason       string     `json:"reason"`
	ResourceType *string    `json:"resource_type,omitempty"`
	ResourceID   *string    `json:"resource_id,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	GrantedAt    time.Time  `json:"granted_at"`
}

// Grant is the resolver-facing view of an override, joined with the
// permission code so decisions need no extra catalog lookup per row.
type Grant struct {
	OverrideID   int64      `json:"override_id"`
	PermissionID int64      `json:"permission_id"`
	Code         string     `json:"code"`
	ResourceType *string    `json:"resource_type,omitempty"`
	ResourceID   *string    `json:"resource_id,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// Live reports whether the grant has not expired at the given instant.
func (g Grant) Live(now time.Time) bool {
	return g.ExpiresAt == nil || g.ExpiresAt.After(now)
}

// MatchesResource reports whether the grant applies to the resource under
// evaluation. A resource-scoped grant only matches the exact resource; an
// unscoped grant matches any.
func (g Grant) MatchesResource(resourceType, resourceID *string) bool {
	if g.ResourceType == nil {
		return true
	}
	if resourceType == nil || resourceID == nil {
		return false
	}
	return *g.ResourceType == *resourceType && g.ResourceID != nil && *g.ResourceID == *resourceID
}
