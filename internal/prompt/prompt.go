// Package prompt implements the interactive questions of a CLI run: picking a
// title, optionally rewording it, and confirming the upload.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"

	"uploadflow/internal/services"
)

// ErrAborted reports that input ended or the context was cancelled before an
// answer was given.
var ErrAborted = fmt.Errorf("%w: prompt aborted", services.ErrCancelled)

// Prompter reads answers line by line from an input stream.
type Prompter struct {
	in          *bufio.Reader
	out         io.Writer
	maxAttempts int
}

// New builds a Prompter. maxAttempts bounds invalid answers to a selection;
// zero allows unlimited retries.
func New(in io.Reader, out io.Writer, maxAttempts int) *Prompter {
	if maxAttempts < 0 {
		maxAttempts = 0
	}
	return &Prompter{in: bufio.NewReader(in), out: out, maxAttempts: maxAttempts}
}

// IsInteractive reports whether f is attached to a terminal.
func IsInteractive(f *os.File) bool {
	if f == nil {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

type lineResult struct {
	line string
	err  error
}

// ask writes question and waits for one line of input.
func (p *Prompter) ask(ctx context.Context, question string) (string, error) {
	if question != "" {
		fmt.Fprint(p.out, question)
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrAborted, err)
	}
	done := make(chan lineResult, 1)
	go func() {
		line, err := p.in.ReadString('\n')
		done <- lineResult{line: line, err: err}
	}()
	select {
	case <-ctx.Done():
		fmt.Fprintln(p.out)
		return "", fmt.Errorf("%w: %w", ErrAborted, ctx.Err())
	case res := <-done:
		if res.err != nil {
			if errors.Is(res.err, io.EOF) && res.line != "" {
				return strings.TrimSpace(res.line), nil
			}
			fmt.Fprintln(p.out)
			if errors.Is(res.err, io.EOF) {
				return "", ErrAborted
			}
			return "", fmt.Errorf("%w: %w", ErrAborted, res.err)
		}
		return strings.TrimSpace(res.line), nil
	}
}

// SelectTitle lists titles and asks for a 1-based choice, or 0 for a custom
// title. Invalid answers are re-asked until a valid one arrives, input ends,
// or the attempt limit is reached.
func (p *Prompter) SelectTitle(ctx context.Context, titles []string) (string, error) {
	if len(titles) == 0 {
		fmt.Fprintln(p.out, "No suggested titles were generated.")
	} else {
		fmt.Fprintln(p.out, "Suggested titles:")
		for i, title := range titles {
			fmt.Fprintf(p.out, "%d. %s\n", i+1, title)
		}
	}
	fmt.Fprintln(p.out)

	invalid := 0
	for {
		answer, err := p.ask(ctx, "Enter the number of your preferred title (or 0 to enter a custom title): ")
		if err != nil {
			return "", err
		}
		selection, convErr := strconv.Atoi(answer)
		switch {
		case convErr != nil:
			fmt.Fprintln(p.out, "Please enter a valid number.")
		case selection == 0:
			title, err := p.ask(ctx, "Enter your custom title: ")
			if err != nil {
				return "", err
			}
			fmt.Fprintf(p.out, "Selected title: %s\n", title)
			return title, nil
		case selection >= 1 && selection <= len(titles):
			title := titles[selection-1]
			fmt.Fprintf(p.out, "Selected title: %s\n", title)
			return title, nil
		case len(titles) == 0:
			fmt.Fprintln(p.out, "No suggestions are available; enter 0 for a custom title.")
		default:
			fmt.Fprintf(p.out, "Please enter a number between 1 and %d, or 0 for custom title.\n", len(titles))
		}
		invalid++
		if p.maxAttempts > 0 && invalid >= p.maxAttempts {
			return "", services.Wrap(services.ErrValidation, "select_title", "prompt",
				fmt.Sprintf("no valid selection after %d attempts", invalid), nil)
		}
	}
}

// EditTitle offers to replace current. An empty answer keeps it.
func (p *Prompter) EditTitle(ctx context.Context, current string) (string, error) {
	answer, err := p.ask(ctx, "Edit title (press Enter to keep the above): ")
	if err != nil {
		return "", err
	}
	final := current
	if answer != "" {
		final = answer
	}
	fmt.Fprintf(p.out, "Final title: %s\n\n", final)
	return final, nil
}

// Confirm asks a yes/no question defaulting to no. Only "y" or "Y" confirms;
// end of input counts as a refusal.
func (p *Prompter) Confirm(ctx context.Context, question string) (bool, error) {
	answer, err := p.ask(ctx, question)
	if err != nil {
		if errors.Is(err, ErrAborted) && ctx.Err() == nil {
			return false, nil
		}
		return false, err
	}
	return strings.EqualFold(answer, "y"), nil
}
