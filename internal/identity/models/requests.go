package models

import (
	"strings"

	dErrors "claimdesk/pkg/domain-errors"
)

const minPasswordLength = 8

// CreateUserRequest adds a staff member to the caller's tenant, or a global
// admin when sent to the platform endpoint (Role is then ignored). TenantID
// is optional; when present it must name the tenant serving the request.
type CreateUserRequest struct {
	TenantID  string `json:"tenant_id,omitempty"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	Phone     string `json:"phone_number"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Password  string `json:"password"`
	Role      string `json:"role"`
}

func (r *CreateUserRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Username = strings.TrimSpace(r.Username)
	r.Phone = strings.TrimSpace(r.Phone)
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Role = strings.TrimSpace(r.Role)
	r.TenantID = strings.TrimSpace(r.TenantID)
}

func (r *CreateUserRequest) Validate() error {
	switch {
	case r.Email == "":
		return dErrors.New(dErrors.CodeValidation, "email is required")
	case r.Username == "":
		return dErrors.New(dErrors.CodeValidation, "username is required")
	case len(r.Username) > maxUsernameLength:
		return dErrors.New(dErrors.CodeValidation, "username must be 30 characters or less")
	case r.Phone == "":
		return dErrors.New(dErrors.CodeValidation, "phone_number is required")
	case len(r.Phone) > maxPhoneLength:
		return dErrors.New(dErrors.CodeValidation, "phone_number must be 15 characters or less")
	case len(r.Password) < minPasswordLength:
		return dErrors.New(dErrors.CodeValidation, "password must be at least 8 characters")
	}
	return nil
}

// LoginRequest exchanges credentials for a bearer token.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *LoginRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}

func (r *LoginRequest) Validate() error {
	if r.Email == "" || r.Password == "" {
		return dErrors.New(dErrors.CodeValidation, "email and password fields are required")
	}
	return nil
}

// TokenResult is returned by a successful login.
type TokenResult struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}
