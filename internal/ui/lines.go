package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/pkg/errors"

	"github.com/zhouzirui/chatbox/internal/service/dispatch"
	"github.com/zhouzirui/chatbox/internal/service/transcript"
)

// Printer writes every transcript append to out as a plain line.
type Printer struct {
	mu  sync.Mutex
	out io.Writer
}

// NewPrinter creates a Printer writing to out.
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// Attach subscribes the printer to store.
func (p *Printer) Attach(store *transcript.Store) (cancel func()) {
	return store.Subscribe(func(ev transcript.Event) {
		p.mu.Lock()
		defer p.mu.Unlock()
		fmt.Fprintln(p.out, FormatLine(ev.Message))
	})
}

// RunLines is the widget for non-terminal input: every line read from in is
// a submitted draft and every transcript change is printed to out. Lines are
// sent one at a time so piped conversations keep their order. A failed send
// is already in the transcript and does not stop the loop.
func RunLines(ctx context.Context, in io.Reader, out io.Writer, controller *dispatch.Controller) error {
	printer := NewPrinter(out)
	cancel := printer.Attach(controller.Transcript())
	defer cancel()

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil
		}
		controller.SetDraft(scanner.Text())
		_, _ = controller.Submit(ctx)
	}
	return errors.Wrap(scanner.Err(), "read input")
}
