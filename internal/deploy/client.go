// Package deploy invokes the external deploy action. The action itself is
// opaque: it builds the job image, pushes it to the registry and rolls the
// deployment out. This package only assembles its fixed parameter set and
// runs it.
package deploy

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"
)

var commandContext = exec.CommandContext

// maxOutputLine bounds a single action output line; longer lines are
// truncated and the rest of the stream drained.
const maxOutputLine = 4 * 1024 * 1024

// Params is the fixed parameter mapping forwarded verbatim to the action.
// The secret values are passed through the child environment so they never
// appear in the process list.
type Params struct {
	WorkingDirectory    string
	AppName             string
	VaultName           string
	SkipOp              string
	RegistryLogin       string // secret
	RegistryPush        string // secret
	ServiceAccountName  string // secret
	ServiceAccountToken string // secret
	TargetRepository    string // secret
	Environment         string // resolved tag; may be empty, forwarded as-is
}

// Client defines the deploy action surface.
type Client interface {
	Deploy(ctx context.Context, params Params) error
}

// Option configures the CLI client.
type Option func(*CLI)

// WithBinary overrides the default action binary.
func WithBinary(binary string) Option {
	return func(c *CLI) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// CLI wraps the external deploy action binary.
type CLI struct {
	binary string
}

// NewCLI constructs a CLI client using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{binary: "bcrs-cd"}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

func (p Params) args() []string {
	return []string{
		"deploy",
		"--working-directory", p.WorkingDirectory,
		"--app-name", p.AppName,
		"--vault-name", p.VaultName,
		"--skip-op", p.SkipOp,
		"--tag", p.Environment,
	}
}

func (p Params) env() []string {
	return []string{
		"OPENSHIFT_LOGIN_REGISTRY=" + p.RegistryLogin,
		"OPENSHIFT_DOCKER_REGISTRY=" + p.RegistryPush,
		"OPENSHIFT_SA_NAME=" + p.ServiceAccountName,
		"OPENSHIFT_SA_TOKEN=" + p.ServiceAccountToken,
		"OPENSHIFT_REPOSITORY=" + p.TargetRepository,
	}
}

// Deploy runs the action with the given parameters, streaming its output
// to the context logger. A non-zero exit is returned as an error carrying
// the tail of stderr.
func (c *CLI) Deploy(ctx context.Context, params Params) error {
	if strings.TrimSpace(params.AppName) == "" {
		return fmt.Errorf("app name required")
	}
	if strings.TrimSpace(params.WorkingDirectory) == "" {
		return fmt.Errorf("working directory required")
	}

	logger := zerolog.Ctx(ctx)

	cmd := commandContext(ctx, c.binary, params.args()...) //nolint:gosec

	// Preserve any environment already set on the command.
	env := cmd.Env
	if env == nil {
		env = os.Environ()
	}
	cmd.Env = append(env, params.env()...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", c.binary, err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), maxOutputLine)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		logger.Info().Str("action", c.binary).Msg(line)
	}
	if scanErr := scanner.Err(); scanErr != nil {
		logger.Warn().Err(scanErr).Str("action", c.binary).Msg("Action output truncated")
		// Keep draining so the child never blocks on a full pipe.
		_, _ = io.Copy(io.Discard, stdout)
	}

	if err := cmd.Wait(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return fmt.Errorf("deploy action failed: %w: %s", err, tail(detail, 512))
		}
		return fmt.Errorf("deploy action failed: %w", err)
	}
	return nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
