package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/shelf/internal/api"
	"github.com/desertthunder/shelf/internal/dashboard"
	"github.com/desertthunder/shelf/internal/routes"
	"github.com/desertthunder/shelf/internal/shared"
	"github.com/desertthunder/shelf/internal/ui"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"
)

// Client is the backend surface used by commands.
type Client interface {
	dashboard.Backend
	Get(ctx context.Context, path string) (*api.APIResponse, error)
}

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	auth       ui.Authenticator
	client     Client
	logger     *log.Logger
	output     io.Writer
	input      io.Reader
	reader     *bufio.Reader
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Auth       ui.Authenticator
	Client     Client
	Logger     *log.Logger
	Output     io.Writer
	Input      io.Reader
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		auth:       opts.Auth,
		client:     opts.Client,
		logger:     opts.Logger,
		output:     opts.Output,
		input:      opts.Input,
	}
}

// loggerSetter is implemented by dependencies that log on their own.
type loggerSetter interface {
	SetLogger(*log.Logger)
}

// SetLogger replaces the runner's logger and redirects the session and backend client to it.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
	if s, ok := r.auth.(loggerSetter); ok {
		s.SetLogger(shared.WithLogger(l, "component", "session"))
	}
	if s, ok := r.client.(loggerSetter); ok {
		s.SetLogger(shared.WithLogger(l, "component", "api"))
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, loginCommand, signupCommand, logoutCommand, whoamiCommand, booksCommand, apiCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// requireAuth mounts a route guard for the duration of the check, mirroring the dashboard's protection.
func (r *Runner) requireAuth() error {
	if r.auth == nil || r.client == nil {
		return fmt.Errorf("%w: set identity.api_key in config.toml or SHELF_IDENTITY_API_KEY", shared.ErrMissingConfig)
	}

	guard := routes.NewGuard(r.auth, nil, nil)
	release := guard.Mount()
	defer release()

	if guard.State() != routes.Authenticated {
		return fmt.Errorf("%w: run `shelf login` first", shared.ErrNotAuthenticated)
	}
	return nil
}

func (r *Runner) newBoard() *dashboard.Machine {
	return dashboard.New(r.client, r.auth, nil, r.logger)
}

func (r *Runner) lineReader() *bufio.Reader {
	if r.reader == nil {
		r.reader = bufio.NewReader(r.input)
	}
	return r.reader
}

// readLine prints prompt and reads one trimmed line from input.
func (r *Runner) readLine(prompt string) (string, error) {
	if prompt != "" {
		r.writePlain("%s", prompt)
	}
	line, err := r.lineReader().ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// readPassword reads without echo when input is a terminal.
func (r *Runner) readPassword(prompt string) (string, error) {
	if f, ok := r.input.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		r.writePlain("%s", prompt)
		b, err := term.ReadPassword(int(f.Fd()))
		r.writePlain("\n")
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(b), nil
	}

	if prompt != "" {
		r.writePlain("%s", prompt)
	}
	line, err := r.lineReader().ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// confirm asks a yes/no question, defaulting to no.
func (r *Runner) confirm(prompt string) bool {
	answer, err := r.readLine(prompt + " [y/N] ")
	if err != nil {
		r.logger.Debug("confirmation read failed", "error", err)
		return false
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
