package request

type PanelCreateEmail struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
	Quota    int    `json:"quota"`
}

type PanelChangePassword struct {
	Email       string `json:"email" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

type PanelQuota struct {
	Email string `json:"email" validate:"required"`
	Quota int    `json:"quota" validate:"min=0"`
}

type PanelForwarder struct {
	Email       string `json:"email" validate:"required"`
	Destination string `json:"destination" validate:"required,email"`
}
