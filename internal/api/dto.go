package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/jotter/internal/models"
)

// CredentialsRequest is the body of register and login.
type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Validate checks that both fields are present. Trimming and length limits
// are enforced by the credential store.
func (r CredentialsRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

// NoteRequest is the body of note create and update.
type NoteRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// UserResponse wraps the authenticated user.
type UserResponse struct {
	User models.User `json:"user"`
}

// NoteListResponse wraps the caller's notes.
type NoteListResponse struct {
	Notes []models.IndexedNote `json:"notes"`
	Total int                  `json:"total"`
}
