package matrix

type createRoleRequest struct {
	Code        string  `json:"code" validate:"required,max=50"`
	Name        string  `json:"name" validate:"required,max=200"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=500"`
}

type updateRoleRequest struct {
	Name        string  `json:"name" validate:"required,max=200"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=500"`
}

type permissionIDsRequest struct {
	PermissionIDs []int64 `json:"permission_ids" validate:"required"`
}
