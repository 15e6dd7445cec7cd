package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/ligun0805/somnia-runner/internal/progress"
)

// panelOnly keeps panel updates out of a console that already prints the log.
// The final tally is the one panel line worth repeating.
type panelOnly struct{ c *progress.Console }

func (p panelOnly) Update(msg string) {
	if strings.HasPrefix(strings.TrimSpace(progress.Strip(msg)), "COMPLETED") {
		p.c.Update(msg)
	}
}

// die prints an error and, when started from a terminal, waits for Enter so a
// double-clicked console window does not close before the message is read.
func die(message string) {
	fmt.Fprintln(os.Stderr, "Error:", message)
	if term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprint(os.Stderr, "Press Enter to close...")
		_, _ = bufio.NewReader(os.Stdin).ReadBytes('\n')
	}
	os.Exit(1)
}
