package workflow

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

type PromptKind string

const (
	PromptKindRemoteWork PromptKind = "remote_work"
	PromptKindCheckOut   PromptKind = "check_out"
)

// Prompt is a cancelable question put to the user before a workflow continues.
type Prompt struct {
	Kind    PromptKind
	Title   string
	Message string
	// DistanceMeters is set on the remote-work prompt.
	DistanceMeters float64
}

var (
	PromptRemoteWork = Prompt{
		Kind:    PromptKindRemoteWork,
		Title:   "Check in as remote work?",
		Message: "You are outside the office zone. Unconfirmed remote work may be marked absent.",
	}
	PromptCheckOut = Prompt{
		Kind:    PromptKindCheckOut,
		Title:   "Check out now?",
		Message: "Your working time for today will be closed.",
	}
)

// Confirmer asks the user to accept or decline a prompt. Declining is not an error.
type Confirmer interface {
	Confirm(ctx context.Context, p Prompt) (bool, error)
}

type ConfirmerFunc func(ctx context.Context, p Prompt) (bool, error)

func (f ConfirmerFunc) Confirm(ctx context.Context, p Prompt) (bool, error) {
	return f(ctx, p)
}

// TerminalConfirmer asks on a line-oriented terminal. A single goroutine reads
// input, one line per prompt; a line that arrives after a prompt was cancelled
// answers the next one.
type TerminalConfirmer struct {
	in        io.Reader
	out       io.Writer
	assumeYes bool

	once  sync.Once
	lines chan string
}

// NewTerminalConfirmer returns a confirmer reading answers from in. With
// assumeYes every prompt is accepted without being shown.
func NewTerminalConfirmer(in io.Reader, out io.Writer, assumeYes bool) *TerminalConfirmer {
	return &TerminalConfirmer{in: in, out: out, assumeYes: assumeYes, lines: make(chan string)}
}

func (c *TerminalConfirmer) readLines() {
	scanner := bufio.NewScanner(c.in)
	for scanner.Scan() {
		c.lines <- scanner.Text()
	}
	close(c.lines)
}

func (c *TerminalConfirmer) Confirm(ctx context.Context, p Prompt) (bool, error) {
	if c.assumeYes {
		return true, nil
	}

	fmt.Fprintf(c.out, "%s\n%s\n", p.Title, p.Message)
	if p.DistanceMeters > 0 {
		fmt.Fprintf(c.out, "Distance to the nearest office: %.0f m\n", p.DistanceMeters)
	}
	fmt.Fprint(c.out, "Continue? [y/N]: ")

	c.once.Do(func() { go c.readLines() })

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case line, ok := <-c.lines:
		if !ok {
			// End of input declines
			return false, nil
		}
		a := strings.ToLower(strings.TrimSpace(line))
		return a == "y" || a == "yes", nil
	}
}
