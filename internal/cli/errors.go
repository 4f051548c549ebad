package cli

import "strings"

// PreflightError is a configuration problem found before any remote call.
type PreflightError struct {
	Message  string
	Hint     string
	NextStep string
}

func (e *PreflightError) Error() string {
	return e.Message
}

// Render formats the error with its hint and next step.
func (e *PreflightError) Render() string {
	var b strings.Builder
	b.WriteString("Error: ")
	b.WriteString(e.Message)
	if e.Hint != "" {
		b.WriteString("\nHint: ")
		b.WriteString(e.Hint)
	}
	if e.NextStep != "" {
		b.WriteString("\nNext: ")
		b.WriteString(e.NextStep)
	}
	return b.String()
}
