// Package models defines the records exchanged with the book collection backend.
//
//   - [User] : read-only projection of the signed-in principal, fetched from /api/user/me
//   - [Book] : a collection entry; the backend assigns [Book.ID] and it never changes afterwards
//
// Required fields are declared with go-playground/validator struct tags and checked through [Validate].
package models
