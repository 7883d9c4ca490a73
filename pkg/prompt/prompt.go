package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
)

// Confirmer asks a yes/no question. Anything other than an explicit
// affirmative answer must be reported as false.
type Confirmer interface {
	Confirm(ctx context.Context, question string) (bool, error)
}

// Console asks on the controlling terminal. The default answer is no.
type Console struct {
	opts []survey.AskOpt
}

// NewConsole creates a terminal confirmer
func NewConsole(opts ...survey.AskOpt) *Console {
	return &Console{opts: opts}
}

// Confirm implements Confirmer
func (c *Console) Confirm(ctx context.Context, question string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	answer := false
	err := survey.AskOne(&survey.Confirm{
		Message: question,
		Default: false,
	}, &answer, c.opts...)
	if errors.Is(err, terminal.InterruptErr) {
		return false, fmt.Errorf("confirmation interrupted: %w", err)
	}
	if err != nil {
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}
	return answer, nil
}

// Line reads one answer per question from a plain stream, for
// non-interactive input such as a pipe. Only answers starting with 'y' or
// 'Y' are affirmative; end of input counts as no.
type Line struct {
	mu      sync.Mutex
	scanner *bufio.Scanner
	out     io.Writer
}

// NewLine creates a confirmer reading answers from in and echoing
// questions to out
func NewLine(in io.Reader, out io.Writer) *Line {
	return &Line{
		scanner: bufio.NewScanner(in),
		out:     out,
	}
}

// Confirm implements Confirmer
func (l *Line) Confirm(ctx context.Context, question string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.out != nil {
		fmt.Fprintf(l.out, "%s [y/N] ", question)
	}

	if !l.scanner.Scan() {
		if err := l.scanner.Err(); err != nil {
			return false, fmt.Errorf("failed to read confirmation: %w", err)
		}
		return false, nil
	}

	answer := strings.TrimSpace(l.scanner.Text())
	return strings.HasPrefix(answer, "y") || strings.HasPrefix(answer, "Y"), nil
}

// Scripted answers from a fixed list and records every question asked
type Scripted struct {
	mu        sync.Mutex
	answers   []bool
	Questions []string
}

// NewScripted creates a confirmer that returns answers in order, then no
func NewScripted(answers ...bool) *Scripted {
	return &Scripted{answers: answers}
}

// Confirm implements Confirmer
func (s *Scripted) Confirm(ctx context.Context, question string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Questions = append(s.Questions, question)
	if len(s.answers) == 0 {
		return false, nil
	}
	answer := s.answers[0]
	s.answers = s.answers[1:]
	return answer, nil
}
