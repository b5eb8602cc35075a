package request

// CreateMailbox is used by both the user and the admin flows. Storage is the
// quota in megabytes.
type CreateMailbox struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
	Storage  int    `json:"storage"`
}

type AttachMailbox struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type ChangeMailboxPassword struct {
	NewPassword string `json:"new_password" validate:"required"`
}

type DeleteMailbox struct {
	Email string `json:"email" validate:"required"`
}
