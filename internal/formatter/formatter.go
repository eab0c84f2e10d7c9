// package formatter renders the book collection as a table, CSV, Markdown, plain text or JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/desertthunder/shelf/internal/models"
	"github.com/desertthunder/shelf/internal/shared"
)

// EmptyMessage is shown in place of an empty collection.
const EmptyMessage = "Your library is empty."

// Format names an output rendering.
type Format string

const (
	Table    Format = "table"
	JSON     Format = "json"
	CSV      Format = "csv"
	Markdown Format = "markdown"
	Text     Format = "txt"
)

// Formats lists the supported formats in help order.
var Formats = []Format{Table, JSON, CSV, Markdown, Text}

// ParseFormat accepts a format name (case-insensitive, "md" and "text" as aliases).
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "table":
		return Table, nil
	case "json":
		return JSON, nil
	case "csv":
		return CSV, nil
	case "markdown", "md":
		return Markdown, nil
	case "txt", "text":
		return Text, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, s)
	}
}

// Library is the collection together with its owner.
type Library struct {
	User  *models.User  `json:"user,omitempty"`
	Books []models.Book `json:"books"`
}

func (l Library) owner() string {
	if l.User == nil {
		return ""
	}
	if l.User.Name != "" {
		return l.User.Name
	}
	return l.User.Email
}

// ExportToCSV converts books to CSV with columns: ID, Title, Author, Description
func ExportToCSV(books []models.Book) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Title", "Author", "Description"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, book := range books {
		record := []string{book.ID, book.Title, book.Author, book.Description}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a library to a Markdown document
func ExportToMarkdown(lib Library) ([]byte, error) {
	var buf bytes.Buffer

	if owner := lib.owner(); owner != "" {
		buf.WriteString(fmt.Sprintf("# %s's Library\n\n", owner))
	} else {
		buf.WriteString("# Library\n\n")
	}

	buf.WriteString(fmt.Sprintf("**Books**: %d\n\n", len(lib.Books)))

	if len(lib.Books) == 0 {
		buf.WriteString(EmptyMessage + "\n")
		return buf.Bytes(), nil
	}

	buf.WriteString("| Title | Author | Description |\n")
	buf.WriteString("| --- | --- | --- |\n")
	for _, book := range lib.Books {
		buf.WriteString(fmt.Sprintf("| %s | %s | %s |\n",
			escapeCell(book.Title), escapeCell(book.Author), escapeCell(book.Description)))
	}

	return buf.Bytes(), nil
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

// ExportToText converts a library to plain text
func ExportToText(lib Library) ([]byte, error) {
	var buf bytes.Buffer

	if owner := lib.owner(); owner != "" {
		buf.WriteString(fmt.Sprintf("Library: %s\n", owner))
	}
	buf.WriteString(fmt.Sprintf("Books: %d\n\n", len(lib.Books)))

	if len(lib.Books) == 0 {
		buf.WriteString(EmptyMessage + "\n")
		return buf.Bytes(), nil
	}

	for i, book := range lib.Books {
		buf.WriteString(fmt.Sprintf("%d. %s - %s\n", i+1, book.Title, book.Author))
		if book.Description != "" {
			buf.WriteString(fmt.Sprintf("   %s\n", book.Description))
		}
	}

	return buf.Bytes(), nil
}

// ExportToJSON converts a library to indented JSON
func ExportToJSON(lib Library) ([]byte, error) {
	if lib.Books == nil {
		lib.Books = []models.Book{}
	}
	data, err := json.MarshalIndent(lib, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return append(data, '\n'), nil
}

// ExportToTable renders books as a bordered table
func ExportToTable(books []models.Book) ([]byte, error) {
	if len(books) == 0 {
		return []byte(EmptyMessage + "\n"), nil
	}

	rows := make([][]string, 0, len(books))
	for _, book := range books {
		rows = append(rows, []string{book.ID, book.Title, book.Author, truncate(book.Description, 48)})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "TITLE", "AUTHOR", "DESCRIPTION").
		Rows(rows...)

	return []byte(t.String() + "\n"), nil
}

func truncate(s string, n int) string {
	r := []rune(strings.ReplaceAll(s, "\n", " "))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-1]) + "…"
}

// Render produces lib in the given format.
func Render(lib Library, format Format) ([]byte, error) {
	switch format {
	case Table:
		return ExportToTable(lib.Books)
	case JSON:
		return ExportToJSON(lib)
	case CSV:
		return ExportToCSV(lib.Books)
	case Markdown:
		return ExportToMarkdown(lib)
	case Text:
		return ExportToText(lib)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, format)
	}
}

// Write renders lib to w.
func Write(w io.Writer, lib Library, format Format) error {
	data, err := Render(lib, format)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// DefaultFilename returns books.{ext} for format.
func DefaultFilename(format Format) string {
	switch format {
	case Markdown:
		return "books.md"
	case Table, Text:
		return "books.txt"
	default:
		return "books." + string(format)
	}
}

// WriteExport renders lib to a file and returns its path.
//
// Defaults to [DefaultFilename] when path is empty.
func WriteExport(lib Library, format Format, path string) (string, error) {
	if path == "" {
		path = DefaultFilename(format)
	}

	data, err := Render(lib, format)
	if err != nil {
		return "", fmt.Errorf("failed to generate %s: %w", format, err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s file: %w", format, err)
	}

	return path, nil
}
