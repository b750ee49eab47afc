package speech

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const DefaultCLICommand = "gtts-cli"

// CLIProvider shells out to gtts-cli, which writes the MP3 file itself.
type CLIProvider struct {
	command string
	timeout time.Duration
}

func NewCLIProvider(command string, timeout time.Duration) *CLIProvider {
	if command == "" {
		command = DefaultCLICommand
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &CLIProvider{command: command, timeout: timeout}
}

func (p *CLIProvider) Name() string { return "gtts-cli" }

func (p *CLIProvider) WriteMP3(ctx context.Context, text, languageCode, path string) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	// "-" reads the text from stdin, so long texts and texts starting
	// with a dash never reach the argument list.
	cmd := exec.CommandContext(ctx, p.command, "-", "--output", path, "--lang", languageCode)
	cmd.Stdin = strings.NewReader(text)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s timed out: %w", p.command, ctx.Err())
		}
		return fmt.Errorf("%s failed: %w, stderr: %s", p.command, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// Validate checks that the command can be found.
func (p *CLIProvider) Validate() error {
	if _, err := exec.LookPath(p.command); err != nil {
		return fmt.Errorf("%s not found in PATH: %w", p.command, err)
	}
	return nil
}
