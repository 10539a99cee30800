package tui

import (
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	apperrors "linkvault/internal/shared/errors"
)

// formatTime renders a relative timestamp for list rows.
func formatTime(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

// truncStr truncates a string to maxLen runes, appending an ellipsis if needed.
func truncStr(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	if maxLen < 1 {
		return ""
	}
	runes := []rune(s)
	return string(runes[:maxLen-1]) + "…"
}

// errorText renders an error for the status line. Typed errors show their
// human-readable message; anything else falls back to Error().
func errorText(err error) string {
	if err == nil {
		return ""
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
