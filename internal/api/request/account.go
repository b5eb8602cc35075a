package request

type UpdateMe struct {
	DisplayName *string `json:"display_name" validate:"omitempty,min=1,max=100"`
}

type CreateAccount struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
	DisplayName string `json:"display_name" validate:"max=100"`
	IsAdmin     bool   `json:"is_admin"`
}

type UpdateAccount struct {
	DisplayName *string `json:"display_name" validate:"omitempty,min=1,max=100"`
	IsAdmin     *bool   `json:"is_admin"`
}
