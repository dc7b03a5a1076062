package dto

// RegisterRequest is the multipart form for user registration. The
// profile picture travels as a separate form file named "photo".
type RegisterRequest struct {
	Name     string `form:"name" binding:"required,min=1,max=100"`
	Email    string `form:"email" binding:"required,email"`
	Password string `form:"password" binding:"required,min=8"`
	Bio      string `form:"bio" binding:"max=500"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type TokenResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}
