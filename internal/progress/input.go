package progress

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// InputKind hints what kind of answer a prompt expects.
type InputKind string

const (
	KindText   InputKind = "text"
	KindNumber InputKind = "number"
)

// InputRequester asks the operator for a value. An empty answer means def.
type InputRequester interface {
	Request(ctx context.Context, prompt string, kind InputKind, def string) (string, error)
}

// Defaults answers every prompt with its default value.
type Defaults struct{}

func (Defaults) Request(_ context.Context, _ string, _ InputKind, def string) (string, error) {
	return def, nil
}

// LineInput prompts on w and reads one line per answer from r.
type LineInput struct {
	r *bufio.Reader
	w io.Writer
}

func NewLineInput(r io.Reader, w io.Writer) *LineInput {
	return &LineInput{r: bufio.NewReader(r), w: w}
}

func (in *LineInput) Request(ctx context.Context, prompt string, _ InputKind, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(in.w, "%s [%s]: ", prompt, def)
	} else {
		fmt.Fprintf(in.w, "%s: ", prompt)
	}

	type answer struct {
		s   string
		err error
	}
	ch := make(chan answer, 1)
	go func() {
		s, err := in.r.ReadString('\n')
		ch <- answer{s, err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case a := <-ch:
		s := strings.TrimSpace(a.s)
		if a.err != nil && !errors.Is(a.err, io.EOF) {
			return "", errors.Wrap(a.err, "read answer")
		}
		if s == "" {
			return def, nil
		}
		return s, nil
	}
}

// AskInt requests a whole number.
func AskInt(ctx context.Context, in InputRequester, prompt string, def int) (int, error) {
	s, err := in.Request(ctx, prompt, KindNumber, strconv.Itoa(def))
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, errors.Errorf("%q is not a whole number", s)
	}
	return n, nil
}
