package ui

import (
	"context"
	stderrors "errors"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/rileyhilliard/sshwrap/internal/errors"
)

// CanPrompt reports whether stdin and stderr are both terminals, so a form
// can be drawn and answered.
func CanPrompt() bool {
	return IsTerminal(os.Stdin) && IsTerminal(os.Stderr)
}

// PromptSecret asks for a password or passphrase on the terminal without
// echoing it. It fails with ErrLogin when there is no terminal or the user
// cancels.
func PromptSecret(ctx context.Context, title string) (string, error) {
	if !CanPrompt() {
		return "", errors.New(errors.ErrLogin,
			title+" is needed but there's no terminal to ask on",
			"Set password_env or passphrase_env for this host instead.")
	}

	var value string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(title).
				EchoMode(huh.EchoModePassword).
				Value(&value),
		),
	).WithOutput(os.Stderr)

	if err := form.RunWithContext(ctx); err != nil {
		if stderrors.Is(err, huh.ErrUserAborted) {
			return "", errors.New(errors.ErrLogin, "Login cancelled", "")
		}
		return "", errors.WrapWithCode(err, errors.ErrLogin,
			"Failed to read "+title,
			"Run again from an interactive terminal.")
	}
	return value, nil
}

// Confirm asks a yes/no question, returning def when there is no terminal.
func Confirm(title string, def bool) (bool, error) {
	if !CanPrompt() {
		return def, nil
	}
	answer := def
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Value(&answer),
		),
	).WithOutput(os.Stderr)
	if err := form.Run(); err != nil {
		return false, errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to get user input",
			"Pass the answer as a flag instead.")
	}
	return answer, nil
}
