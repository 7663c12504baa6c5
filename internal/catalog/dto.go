package catalog

type createPermissionRequest struct {
	Code        string  `json:"code" validate:"required,max=150"`
	Name        string  `json:"name" validate:"required,max=200"`
	Category    string  `json:"category" validate:"required"`
	Scope       string  `json:"scope" validate:"required"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=500"`
}

type updatePermissionRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,max=200"`
	Category    *string `json:"category,omitempty"`
	Scope       *string `json:"scope,omitempty"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=500"`
}
