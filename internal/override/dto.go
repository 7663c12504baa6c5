package override

import "time"

type grantRequest struct {
	PermissionID int64      `json:"permission_id" validate:"required,gt=0"`
	Reason       string     `json:"reason" validate:"required,max=500"`
	ResourceType *string    `json:"resource_type,omitempty" validate:"omitempty,max=100"`
	ResourceID   *string    `json:"resource_id,omitempty" validate:"omitempty,max=100"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

type grantBatchRequest struct {
	Grants []grantRequest `json:"grants" validate:"required,min=1,dive"`
}
