package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/shelf/internal/session"
	"github.com/desertthunder/shelf/internal/shared"
	"github.com/urfave/cli/v3"
)

// credentials collects email and password from flags, stdin or interactive prompts.
func (r *Runner) credentials(cmd *cli.Command, confirm bool) (email, password string, err error) {
	email = cmd.String("email")
	if email == "" {
		if email, err = r.readLine("Email: "); err != nil {
			return "", "", err
		}
	}
	if email == "" {
		return "", "", fmt.Errorf("%w: email", shared.ErrMissingArgument)
	}

	if cmd.Bool("password-stdin") {
		password, err = r.readPassword("")
	} else {
		password, err = r.readPassword("Password: ")
	}
	if err != nil {
		return "", "", err
	}
	if password == "" {
		return "", "", fmt.Errorf("%w: password", shared.ErrMissingArgument)
	}

	if confirm && !cmd.Bool("password-stdin") {
		again, err := r.readPassword("Confirm password: ")
		if err != nil {
			return "", "", err
		}
		if again != password {
			return "", "", fmt.Errorf("%w: passwords do not match", shared.ErrInvalidInput)
		}
	}
	return email, password, nil
}

// Login signs in and stores the session for later commands.
func (r *Runner) Login(ctx context.Context, cmd *cli.Command) error {
	if r.auth == nil {
		return fmt.Errorf("%w: set identity.api_key in config.toml or SHELF_IDENTITY_API_KEY", shared.ErrMissingConfig)
	}

	email, password, err := r.credentials(cmd, false)
	if err != nil {
		return err
	}

	principal, err := r.auth.SignIn(ctx, email, password)
	if err != nil {
		return err
	}
	return r.signedIn(principal)
}

// Signup creates an account and signs in.
func (r *Runner) Signup(ctx context.Context, cmd *cli.Command) error {
	if r.auth == nil {
		return fmt.Errorf("%w: set identity.api_key in config.toml or SHELF_IDENTITY_API_KEY", shared.ErrMissingConfig)
	}

	email, password, err := r.credentials(cmd, true)
	if err != nil {
		return err
	}

	principal, err := r.auth.SignUp(ctx, email, password)
	if err != nil {
		return err
	}
	return r.signedIn(principal)
}

func (r *Runner) signedIn(p *session.Principal) error {
	r.logger.Debug("session established", "uid", p.UID)
	return r.writePlain("✓ Signed in as %s\n", p.Email)
}

// Logout clears the session. Sign out always completes locally.
func (r *Runner) Logout(ctx context.Context, cmd *cli.Command) error {
	if r.auth == nil || r.auth.Current() == nil {
		return r.writePlain("Not signed in\n")
	}

	if err := r.auth.SignOut(ctx); err != nil {
		r.logger.Warn("sign out reported an error", "error", err)
	}
	return r.writePlain("✓ Signed out\n")
}

// Whoami prints the backend's profile of the signed-in user.
func (r *Runner) Whoami(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireAuth(); err != nil {
		return err
	}

	user, err := r.client.Me(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(user, true)
	}

	r.writePlainHeader(user.Name)
	r.writePlain("Email:   %s\n", user.Email)
	r.writePlain("UID:     %s\n", user.IdentityID)
	if !user.CreatedAt.IsZero() {
		r.writePlain("Joined:  %s\n", user.CreatedAt.Format("2006-01-02"))
	}
	return nil
}
