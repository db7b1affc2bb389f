package domain

// DTOs for API responses

type UserDTO struct {
	ID        uint   `json:"id"`
	Username  string `json:"username"`
	Federated bool   `json:"federated"`
	CreatedAt string `json:"createdAt"` // ISO 8601
}

type PostDTO struct {
	ID        uint   `json:"id"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	Body      string `json:"body"`
	ImageKey  string `json:"imageKey,omitempty"`
	UserID    uint   `json:"userId"`
	CreatedAt string `json:"createdAt"` // ISO 8601
	UpdatedAt string `json:"updatedAt"` // ISO 8601
}

// SavePostResult is the outcome of a post save. Warning carries a non-fatal
// problem (old image could not be removed) that the caller should surface.
type SavePostResult struct {
	Post    PostDTO `json:"post"`
	Warning string  `json:"warning,omitempty"`
}

// SavePostRequest holds the validated text fields of a post submission.
// The optional image travels separately as a multipart file.
type SavePostRequest struct {
	Title  string `json:"title" validate:"required,max=150"`
	Author string `json:"author" validate:"required,max=75"`
	Body   string `json:"body" validate:"required,max=800"`
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

type LoginRequest struct {
	Username   string `json:"username" validate:"required,max=64"`
	Password   string `json:"password" validate:"required"`
	RememberMe bool   `json:"rememberMe"`
}

// LoginPageResponse is returned by GET /auth/login: the Microsoft
// authorization URL for the federated path, alongside the local form.
// Next echoes a sanitized relative return path when the client sent one.
type LoginPageResponse struct {
	AuthURL string `json:"authUrl"`
	Next    string `json:"next,omitempty"`
}

// LoginResponse is returned by a successful local login. Next echoes a
// sanitized relative return path when the client sent one.
type LoginResponse struct {
	User UserDTO `json:"user"`
	Next string  `json:"next,omitempty"`
}

// LogoutResponse carries the provider logout URL for federated sessions so
// the client can end the Microsoft web session too. Empty for local logins.
type LogoutResponse struct {
	LogoutURL string `json:"logoutUrl,omitempty"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}
