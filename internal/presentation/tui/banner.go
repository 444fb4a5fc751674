package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

var bannerLines = []struct {
	text  string
	color string
}{
	{`  ____  _                    ____  _                   `, "#38bdf8"},
	{` / ___|| | ___  ___ _ __    |  _ \(_) __ _ _ __ _   _ `, "#60a5fa"},
	{` \___ \| |/ _ \/ _ \ '_ \   | | | | |/ _' | '__| | | |`, "#818cf8"},
	{`  ___) | |  __/  __/ |_) |  | |_| | | (_| | |  | |_| |`, "#a78bfa"},
	{` |____/|_|\___|\___| .__/   |____/|_|\__,_|_|   \__, |`, "#c084fc"},
	{`                   |_|                          |___/ `, "#e879f9"},
}

// PrintBanner writes the ASCII art banner and the version to w. Colors
// follow the profile of w, so pipes and files get plain text.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	fmt.Fprintln(w)
	for _, l := range bannerLines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w, out.String("  v"+version).Faint())
	fmt.Fprintln(w)
}
