package models

import (
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// User is the backend's profile of the authenticated principal.
type User struct {
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	IdentityID string    `json:"firebaseUid"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Book is a single record in the collection. ID is empty for unsaved drafts.
type Book struct {
	ID          string `json:"id,omitempty"`
	Title       string `json:"title" validate:"required"`
	Author      string `json:"author" validate:"required"`
	Description string `json:"description"`
}

// Saved reports whether the backend has assigned an id.
func (b Book) Saved() bool {
	return b.ID != ""
}

// Validate checks the struct tags of v.
func Validate(v any) error {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate.Struct(v)
}
