package channels

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/99souls/fortitude/engine/models"
)

// ansi color codes used when the destination stream is a TTY.
const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiYellow = "\x1b[33m"
	ansiGreen  = "\x1b[32m"
	ansiCyan   = "\x1b[36m"
)

// CLI writes Info/Success/Debug/Progress to Out and Warning/Error to Err,
// colorizing when the destination is a terminal, §4.9.
//
// No color/TTY-detection library appears anywhere in the corpus as a direct
// dependency of a notification path, so this stays on os.ModeCharDevice,
// the standard library's own terminal heuristic.
type CLI struct {
	Out io.Writer
	Err io.Writer
}

// NewCLI defaults to os.Stdout/os.Stderr.
func NewCLI() *CLI {
	return &CLI{Out: os.Stdout, Err: os.Stderr}
}

func (c *CLI) Deliver(_ context.Context, n models.Notification, _ models.Channel) error {
	w, color := c.destination(n.Type)
	line := fmt.Sprintf("[%s] %s: %s", n.Type, n.Title, n.Body)
	if isTerminal(w) {
		line = color + line + ansiReset
	}
	_, err := fmt.Fprintln(w, line)
	return err
}

func (c *CLI) destination(t models.NotificationType) (io.Writer, string) {
	switch t {
	case models.NotifyWarning:
		return c.Err, ansiYellow
	case models.NotifyError:
		return c.Err, ansiRed
	case models.NotifySuccess:
		return c.Out, ansiGreen
	case models.NotifyProgress, models.NotifyDebug:
		return c.Out, ansiCyan
	default:
		return c.Out, ""
	}
}

// isTerminal reports whether w is connected to a character device, the
// standard library's only portable proxy for "is this a TTY".
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
