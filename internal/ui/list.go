package ui

import (
	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/shelf/internal/models"
)

var _ list.Item = bookItem{}

// bookItem wraps [models.Book] to implement [list.Item].
type bookItem struct {
	book models.Book
}

func (i bookItem) FilterValue() string { return i.book.Title }
func (i bookItem) Title() string       { return i.book.Title }
func (i bookItem) Description() string {
	if i.book.Description == "" {
		return i.book.Author
	}
	return i.book.Author + " • " + i.book.Description
}

func bookItems(books []models.Book) []list.Item {
	items := make([]list.Item, len(books))
	for i, b := range books {
		items[i] = bookItem{book: b}
	}
	return items
}
