package render

import (
	"fmt"
	"io"

	"github.com/pterm/pterm"

	"github.com/HexSleeves/ponder/internal/bus"
)

// Progress shows a spinner while a remote call is outstanding. It is driven
// entirely by bus messages.
type Progress struct {
	w       io.Writer
	spinner *pterm.SpinnerPrinter
	subs    []*bus.Subscription
}

// AttachProgress subscribes a spinner writing to w. Call Detach when done.
func AttachProgress(b *bus.MessageBus, w io.Writer) *Progress {
	p := &Progress{w: w}
	p.subs = append(p.subs,
		b.Subscribe(bus.MsgRoundStarted, func(msg bus.Message) {
			p.start(fmt.Sprintf("Thinking (round %d/%d)", msg.Round, msg.Rounds))
		}),
		b.Subscribe(bus.MsgFinalizeStarted, func(bus.Message) {
			p.start("Writing answer")
		}),
		b.Subscribe(bus.MsgRoundThought, func(bus.Message) { p.stop() }),
		b.Subscribe(bus.MsgAnswerReady, func(bus.Message) { p.stop() }),
		b.Subscribe(bus.MsgCompletionFailed, func(bus.Message) { p.stop() }),
	)
	return p
}

func (p *Progress) start(text string) {
	p.stop()
	s, err := pterm.DefaultSpinner.WithWriter(p.w).WithRemoveWhenDone(true).Start(text)
	if err != nil {
		return
	}
	p.spinner = s
}

func (p *Progress) stop() {
	if p.spinner == nil {
		return
	}
	_ = p.spinner.Stop()
	p.spinner = nil
}

// Detach stops any running spinner and unsubscribes from the bus.
func (p *Progress) Detach() {
	p.stop()
	for _, s := range p.subs {
		s.Unsubscribe()
	}
	p.subs = nil
}
