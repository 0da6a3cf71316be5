package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"golang.org/x/term"

	"credhelper/internal/auth"
	"credhelper/internal/cred"
	"credhelper/internal/target"
)

// terminalPrompter gathers credentials on the controlling terminal. All
// prompts go to stderr so stdout stays clean for the credential protocol.
type terminalPrompter struct{}

func newTerminalPrompter() *terminalPrompter {
	return &terminalPrompter{}
}

var _ auth.Prompter = (*terminalPrompter)(nil)

// BasicCredentials prompts for a username and password. The password is
// read with echo disabled.
func (p *terminalPrompter) BasicCredentials(t *target.Target, seedUsername string) (cred.Credential, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return cred.Credential{}, fmt.Errorf("no terminal available to prompt for credentials")
	}

	fmt.Fprintf(os.Stderr, "Sign in to %s\n", t)

	prompt := "Username: "
	if seedUsername != "" {
		prompt = fmt.Sprintf("Username [%s]: ", seedUsername)
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt: prompt,
		Stdout: os.Stderr,
		Stderr: os.Stderr,
	})
	if err != nil {
		return cred.Credential{}, fmt.Errorf("failed to open prompt: %w", err)
	}
	defer rl.Close()

	username, err := rl.Readline()
	if err != nil {
		return cred.Credential{}, fmt.Errorf("username prompt aborted: %w", err)
	}
	username = strings.TrimSpace(username)
	if username == "" {
		username = seedUsername
	}
	if username == "" {
		return cred.Credential{}, fmt.Errorf("a username is required")
	}

	fmt.Fprint(os.Stderr, "Password: ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return cred.Credential{}, fmt.Errorf("password prompt aborted: %w", err)
	}
	if len(raw) == 0 {
		return cred.Credential{}, fmt.Errorf("a password is required")
	}

	return cred.Credential{Username: username, Password: string(raw)}, nil
}

// TwoFactorEscalation asks whether to continue with a browser sign-in
// after a two-factor challenge.
func (p *terminalPrompter) TwoFactorEscalation(t *target.Target) (bool, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false, nil
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt: "Two-factor authentication is required. Continue in the browser? [Y/n] ",
		Stdout: os.Stderr,
		Stderr: os.Stderr,
	})
	if err != nil {
		return false, err
	}
	defer rl.Close()

	answer, err := rl.Readline()
	if err != nil {
		return false, err
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "" || answer == "y" || answer == "yes", nil
}
