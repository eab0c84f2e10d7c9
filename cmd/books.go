package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/shelf/internal/formatter"
	"github.com/desertthunder/shelf/internal/shared"
	"github.com/urfave/cli/v3"
)

// BooksList loads the collection and prints it in the requested format.
func (r *Runner) BooksList(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	if err := r.requireAuth(); err != nil {
		return err
	}

	board := r.newBoard()
	if err := board.Load(ctx); err != nil && len(board.Books()) == 0 {
		return err
	}

	lib := formatter.Library{User: board.User(), Books: board.Books()}
	if path := cmd.String("output"); path != "" {
		written, err := formatter.WriteExport(lib, format, path)
		if err != nil {
			return err
		}
		r.logger.Info("exported books", "path", written, "count", len(lib.Books))
		return r.writePlain("✓ Wrote %d books to %s\n", len(lib.Books), written)
	}

	return formatter.Write(r.output, lib, format)
}

// BooksAdd creates a book from flags.
func (r *Runner) BooksAdd(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireAuth(); err != nil {
		return err
	}

	board := r.newBoard()
	if err := board.OpenForCreate(); err != nil {
		return err
	}
	if err := board.EditDraft(cmd.String("title"), cmd.String("author"), cmd.String("description")); err != nil {
		return err
	}

	book, err := board.Submit(ctx)
	if err != nil {
		return err
	}
	return r.writePlain("✓ Added %q by %s (id: %s)\n", book.Title, book.Author, book.ID)
}

// BooksEdit updates the fields given as flags, keeping the rest.
func (r *Runner) BooksEdit(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: book id", shared.ErrMissingArgument)
	}
	if !cmd.IsSet("title") && !cmd.IsSet("author") && !cmd.IsSet("description") {
		return fmt.Errorf("%w: nothing to change, pass --title, --author or --description", shared.ErrMissingArgument)
	}
	if err := r.requireAuth(); err != nil {
		return err
	}

	board := r.newBoard()
	if err := board.Load(ctx); err != nil && len(board.Books()) == 0 {
		return err
	}

	book, ok := board.Find(id)
	if !ok {
		return fmt.Errorf("%w: book %s", shared.ErrNotFound, id)
	}
	if err := board.OpenForEdit(book); err != nil {
		return err
	}

	draft := board.Draft()
	if cmd.IsSet("title") {
		draft.Title = cmd.String("title")
	}
	if cmd.IsSet("author") {
		draft.Author = cmd.String("author")
	}
	if cmd.IsSet("description") {
		draft.Description = cmd.String("description")
	}
	if err := board.EditDraft(draft.Title, draft.Author, draft.Description); err != nil {
		return err
	}

	updated, err := board.Submit(ctx)
	if err != nil {
		return err
	}
	return r.writePlain("✓ Updated %q by %s\n", updated.Title, updated.Author)
}

// BooksDelete deletes a book after confirmation unless --yes is given.
func (r *Runner) BooksDelete(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: book id", shared.ErrMissingArgument)
	}
	if err := r.requireAuth(); err != nil {
		return err
	}

	confirmed := false
	confirm := func(prompt string) bool {
		confirmed = cmd.Bool("yes") || r.confirm(prompt)
		return confirmed
	}

	if err := r.newBoard().Delete(ctx, id, confirm); err != nil {
		return err
	}
	if !confirmed {
		return r.writePlain("Cancelled\n")
	}
	return r.writePlain("✓ Deleted %s\n", id)
}
