package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"
)

// confirmPrompt asks a yes/no question. Tests replace it.
var confirmPrompt = runConfirm

// tokenPrompt reads a secret from the terminal. Tests replace it.
var tokenPrompt = readSecret

type confirmModel struct {
	question string
	answer   bool
	done     bool
}

func newConfirmModel(question string) confirmModel {
	return confirmModel{question: question}
}

func (m confirmModel) Init() tea.Cmd {
	return nil
}

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch strings.ToLower(key.String()) {
	case "y":
		m.answer = true
		m.done = true
		return m, tea.Quit
	case "n", "enter", "esc", "ctrl+c", "q":
		m.answer = false
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m confirmModel) View() string {
	if m.done {
		answer := "no"
		if m.answer {
			answer = "yes"
		}
		return fmt.Sprintf("%s %s\n", m.question, answer)
	}
	return fmt.Sprintf("%s [y/N] ", m.question)
}

func runConfirm(question string) (bool, error) {
	program := tea.NewProgram(newConfirmModel(question), tea.WithInput(os.Stdin), tea.WithOutput(os.Stderr))
	final, err := program.Run()
	if err != nil {
		return false, fmt.Errorf("confirmation prompt failed: %w", err)
	}
	model, ok := final.(confirmModel)
	if !ok {
		return false, nil
	}
	return model.answer, nil
}

func readSecret(out io.Writer, label string) (string, error) {
	fmt.Fprintf(out, "%s: ", label)
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", strings.ToLower(label), err)
	}
	return strings.TrimSpace(string(secret)), nil
}

// confirmOrFail asks for confirmation unless force is set. Without a terminal
// it fails with a hint to pass --force.
func confirmOrFail(question string, force bool) (bool, error) {
	if force {
		return true, nil
	}
	if IsNonInteractive() {
		return false, &PreflightError{
			Message:  "confirmation required",
			Hint:     "Re-run with --force to skip the confirmation prompt",
			NextStep: "pmsync " + strings.Join(os.Args[1:], " ") + " --force",
		}
	}
	return confirmPrompt(question)
}
