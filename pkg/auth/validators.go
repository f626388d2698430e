package auth

type LoginPayload struct {
	Email    string `json:"email" mod:"trim" validate:"required,email"`
	Password string `json:"password" validate:"required,min=1"`
}
