package identitytoolkit

// SignInWithPasswordRequest exchanges an email/password pair for tokens.
type SignInWithPasswordRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

// Endpoint implements Request.
func (SignInWithPasswordRequest) Endpoint() string {
	return "/v1/accounts:signInWithPassword"
}

// Body implements Request.
func (r SignInWithPasswordRequest) Body() any {
	return r
}

// SignUpRequest creates a new email/password account.
type SignUpRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

// Endpoint implements Request.
func (SignUpRequest) Endpoint() string {
	return "/v1/accounts:signUp"
}

// Body implements Request.
func (r SignUpRequest) Body() any {
	return r
}

// AuthResponse is the token material returned by sign-in and sign-up calls.
type AuthResponse struct {
	IDToken      string `json:"idToken"`
	Email        string `json:"email"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
	LocalID      string `json:"localId"`
}
