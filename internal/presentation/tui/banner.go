package tui

import (
	"fmt"

	"github.com/muesli/termenv"
)

// PrintBanner outputs the ASCII art banner for the agent CLI.
func PrintBanner() {
	p := termenv.ColorProfile()
	s1 := termenv.String("                       _                         _   ").Foreground(p.Color("#38bdf8"))
	s2 := termenv.String("  _____   _____ _ __ | |_ __ _  __ _  ___ _ __ | |_ ").Foreground(p.Color("#22d3ee"))
	s3 := termenv.String(" / _ \\ \\ / / _ \\ '_ \\| __/ _` |/ _` |/ _ \\ '_ \\| __|").Foreground(p.Color("#2dd4bf"))
	s4 := termenv.String("|  __/\\ V /  __/ | | | || (_| | (_| |  __/ | | | |_ ").Foreground(p.Color("#34d399"))
	s5 := termenv.String(" \\___| \\_/ \\___|_| |_|\\__\\__,_|\\__, |\\___|_| |_|\\__|").Foreground(p.Color("#4ade80"))
	s6 := termenv.String("                               |___/                 ").Foreground(p.Color("#a3e635"))

	fmt.Println()
	fmt.Println(s1)
	fmt.Println(s2)
	fmt.Println(s3)
	fmt.Println(s4)
	fmt.Println(s5)
	fmt.Println(s6)
	fmt.Println()
}
