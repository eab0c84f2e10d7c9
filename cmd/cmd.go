// submodule cmd contains command definitions
package main

import (
	"github.com/desertthunder/shelf/internal/formatter"
	"github.com/urfave/cli/v3"
)

// setupCommand creates the config file and prepares the session database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create config.toml and initialize the session database",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
			&cli.BoolFlag{
				Name:  "reset",
				Usage: "Roll back the latest migration before migrating (drops the stored session)",
			},
		},
		Action: r.Setup,
	}
}

func credentialFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "email",
			Aliases: []string{"e"},
			Usage:   "Account email (prompted when omitted)",
		},
		&cli.BoolFlag{
			Name:  "password-stdin",
			Usage: "Read the password from the first line of stdin",
		},
	}
}

// loginCommand signs in with email and password
func loginCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "login",
		Usage:  "Sign in with email and password",
		Flags:  credentialFlags(),
		Action: r.Login,
	}
}

// signupCommand creates an account and signs in
func signupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "signup",
		Aliases: []string{"register"},
		Usage:   "Create an account and sign in",
		Flags:   credentialFlags(),
		Action:  r.Signup,
	}
}

func logoutCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "logout",
		Usage:  "Sign out and forget the stored session",
		Action: r.Logout,
	}
}

func whoamiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "whoami",
		Usage: "Show the signed-in user's profile",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Whoami,
	}
}

func bookFlags(required bool) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "title",
			Aliases:  []string{"t"},
			Usage:    "Book title",
			Required: required,
		},
		&cli.StringFlag{
			Name:     "author",
			Aliases:  []string{"a"},
			Usage:    "Book author",
			Required: required,
		},
		&cli.StringFlag{
			Name:    "description",
			Aliases: []string{"d"},
			Usage:   "Book description",
		},
	}
}

// booksCommand manages the collection
func booksCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "books",
		Usage: "Manage your book collection",
		Commands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List your books",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format (table, json, csv, markdown, txt)",
						Value:   string(formatter.Table),
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write to a file instead of stdout",
					},
				},
				Action: r.BooksList,
			},
			{
				Name:   "add",
				Usage:  "Add a book",
				Flags:  bookFlags(true),
				Action: r.BooksAdd,
			},
			{
				Name:  "edit",
				Usage: "Edit a book's details",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags:  bookFlags(false),
				Action: r.BooksEdit,
			},
			{
				Name:    "delete",
				Aliases: []string{"rm"},
				Usage:   "Delete a book",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "yes",
						Aliases: []string{"y"},
						Usage:   "Skip the confirmation prompt",
					},
				},
				Action: r.BooksDelete,
			},
		},
	}
}

// apiCommand handles direct backend calls
func apiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Direct authenticated calls to the backend",
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "Authenticated GET, prints raw JSON",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
				},
				Action: r.APIGet,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive library",
		Action:  r.TUI,
	}
}
