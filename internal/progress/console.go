package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// Console prints stripped lines to a writer. It serves as both sinks when a driver
// provides none. Lines are colorized by glyph when the writer is a terminal.
type Console struct {
	mu     sync.Mutex
	w      io.Writer
	colors bool
}

func NewConsole(w io.Writer) *Console {
	c := &Console{w: w}
	if f, ok := w.(*os.File); ok && !color.NoColor {
		c.colors = term.IsTerminal(int(f.Fd()))
	}
	return c
}

// Stdout returns a console on os.Stdout.
func Stdout() *Console { return NewConsole(os.Stdout) }

func (c *Console) Log(msg string)    { c.print(msg) }
func (c *Console) Update(msg string) { c.print(msg) }

var (
	paintSuccess = color.New(color.FgGreen).SprintFunc()
	paintWarn    = color.New(color.FgYellow).SprintFunc()
	paintError   = color.New(color.FgRed).SprintFunc()
	paintInfo    = color.New(color.FgCyan).SprintFunc()
)

func (c *Console) print(msg string) {
	line := Strip(msg)
	if c.colors {
		switch LevelOf(line) {
		case Success:
			line = paintSuccess(line)
		case Warn:
			line = paintWarn(line)
		case Error:
			line = paintError(line)
		case Info:
			line = paintInfo(line)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}
	fmt.Fprint(c.w, line)
}
