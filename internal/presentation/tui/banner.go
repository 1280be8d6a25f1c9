package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the orderbot banner to w.
func PrintBanner(w io.Writer) {
	p := termenv.ColorProfile()
	// Warm gradient, broth to chili.
	lines := []struct {
		text  string
		color string
	}{
		{"                 _           _           _   ", "#fbbf24"},
		{"  ___  _ __ __| | ___ _ __| |__   ___ | |_ ", "#f59e0b"},
		{" / _ \\| '__/ _` |/ _ \\ '__| '_ \\ / _ \\| __|", "#f97316"},
		{"| (_) | | | (_| |  __/ |  | |_) | (_) | |_ ", "#ef4444"},
		{" \\___/|_|  \\__,_|\\___|_|  |_.__/ \\___/ \\__|", "#dc2626"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}

// Hint writes a dimmed usage line.
func Hint(w io.Writer, msg string) {
	fmt.Fprintln(w, termenv.String(msg).Faint())
}
