package workflow

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// console prints operator-facing progress. Colors switch off automatically
// when output is not a terminal.
type console struct {
	out     io.Writer
	banner  *color.Color
	notice  *color.Color
	success *color.Color
	failure *color.Color
}

func newConsole(out io.Writer) *console {
	return &console{
		out:     out,
		banner:  color.New(color.FgCyan, color.Bold),
		notice:  color.New(color.FgYellow),
		success: color.New(color.FgGreen, color.Bold),
		failure: color.New(color.FgRed, color.Bold),
	}
}

func (c *console) Banner(number int, label string) {
	c.banner.Fprintf(c.out, "=== Step %d: %s ===\n", number, label)
}

func (c *console) Heading(text string) {
	c.banner.Fprintf(c.out, "=== %s ===\n", text)
}

func (c *console) Notice(format string, args ...any) {
	c.notice.Fprintf(c.out, format+"\n", args...)
}

func (c *console) Success(format string, args ...any) {
	c.success.Fprintf(c.out, format+"\n", args...)
}

func (c *console) Failure(format string, args ...any) {
	c.failure.Fprintf(c.out, format+"\n", args...)
}

func (c *console) Println(args ...any) {
	fmt.Fprintln(c.out, args...)
}

func (c *console) Printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}
