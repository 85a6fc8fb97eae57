package ingest

import (
	"os"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

// ProgressReporter receives ingestion progress events.
type ProgressReporter interface {
	Start(total int)
	Increment()
	Finish()
}

type barProgress struct {
	bar *progressbar.ProgressBar
}

// NewProgress returns a terminal progress bar, or nil when disabled.
func NewProgress(enabled bool) ProgressReporter {
	if !enabled {
		return nil
	}
	return &barProgress{}
}

func (p *barProgress) Start(total int) {
	if total <= 0 {
		return
	}
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("ingesting"),
		progressbar.OptionSetWidth(32),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

func (p *barProgress) Increment() {
	if p.bar == nil {
		return
	}
	_ = p.bar.Add(1)
}

func (p *barProgress) Finish() {
	if p.bar == nil {
		return
	}
	_ = p.bar.Finish()
}

// DefaultProgressEnabled reports whether stderr is a terminal.
func DefaultProgressEnabled() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}
