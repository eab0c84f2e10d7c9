package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestBook(t *testing.T) {
	t.Run("Validate", func(t *testing.T) {
		tc := []struct {
			name    string
			book    Book
			wantErr bool
		}{
			{name: "title and author", book: Book{Title: "Dune", Author: "Frank Herbert"}},
			{name: "description is optional", book: Book{Title: "Dune", Author: "Frank Herbert", Description: ""}},
			{name: "missing title", book: Book{Author: "Frank Herbert"}, wantErr: true},
			{name: "missing author", book: Book{Title: "Dune"}, wantErr: true},
			{name: "empty", book: Book{}, wantErr: true},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				err := Validate(tt.book)
				if (err != nil) != tt.wantErr {
					t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
				}
			})
		}
	})

	t.Run("unsaved drafts omit id", func(t *testing.T) {
		data, err := json.Marshal(Book{Title: "Dune", Author: "Frank Herbert"})
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}
		if strings.Contains(string(data), `"id"`) {
			t.Errorf("expected no id field, got %s", data)
		}
	})

	t.Run("Saved", func(t *testing.T) {
		if (Book{}).Saved() {
			t.Error("draft should not be saved")
		}
		if !(Book{ID: "1"}).Saved() {
			t.Error("book with id should be saved")
		}
	})
}

func TestUserDecode(t *testing.T) {
	payload := `{"name":"Ada","email":"ada@example.com","firebaseUid":"uid-1","createdAt":"2024-01-02T03:04:05Z"}`

	var user User
	if err := json.Unmarshal([]byte(payload), &user); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if user.IdentityID != "uid-1" {
		t.Errorf("expected identity id uid-1, got %s", user.IdentityID)
	}
	if user.CreatedAt.Year() != 2024 {
		t.Errorf("expected createdAt year 2024, got %d", user.CreatedAt.Year())
	}
}
