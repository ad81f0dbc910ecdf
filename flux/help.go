package flux

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Version is set at build time with -ldflags "-X github.com/ghts/nvflux/flux.Version=...".
var Version = "1.0.0"

const usageLine = "Usage: nvflux <performance|balanced|powersaver|auto|reset|status|clock|--restore|--help>"

var helpCommands = [][2]string{
	{"performance", "Lock GPU memory clocks to highest supported"},
	{"balanced", "Lock GPU memory clocks to a mid value"},
	{"powersaver", "Lock GPU memory clocks to lowest supported"},
	{"auto | reset", "Reset GPU clock locks to automatic behavior"},
	{"status", "Show last saved profile for the calling user"},
	{"clock", "Print current memory clock (MHz)"},
	{"--restore", "Reapply last saved profile for the calling user"},
	{"-h, --help", "Show this help message"},
	{"-v, --version", "Show version"},
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, usageLine)
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "nvflux version %s\n", Version)
}

// printHelp styles headings only when w is a terminal.
func printHelp(w io.Writer) {
	r := lipgloss.NewRenderer(w)
	title := r.NewStyle().Bold(true)
	heading := r.NewStyle().Bold(true).Foreground(lipgloss.Color("2"))
	name := r.NewStyle().Width(16)

	fmt.Fprintln(w, title.Render("nvflux")+" - manage NVIDIA GPU profiles (safe, limited set of nvidia-smi ops)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, heading.Render("Usage:"))
	fmt.Fprintln(w, "  nvflux <command>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, heading.Render("Commands:"))
	for _, c := range helpCommands {
		fmt.Fprintln(w, "  "+name.Render(c[0])+c[1])
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, heading.Render("Notes:"))
	fmt.Fprintln(w, "  - nvflux is intended to be installed setuid root; installer script sets that up.")
	fmt.Fprintln(w, "  - Only the above commands are allowed; nvflux validates inputs before running nvidia-smi.")
}
