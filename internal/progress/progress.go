package progress

import (
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

// Reporter tracks embedding progress during ingestion. Add may be called
// concurrently.
type Reporter interface {
	Start(total int)
	Add(n int)
	Finish()
}

// Bar renders a progress bar on a terminal.
type Bar struct {
	out io.Writer
	bar *progressbar.ProgressBar
}

// New returns a Bar writing to stderr, or a no-op reporter when disabled.
func New(enabled bool) Reporter {
	if !enabled {
		return Nop{}
	}
	return &Bar{out: os.Stderr}
}

func (p *Bar) Start(total int) {
	if total <= 0 {
		return
	}
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(p.out),
		progressbar.OptionSetDescription("embedding"),
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

func (p *Bar) Add(n int) {
	if p.bar == nil {
		return
	}
	_ = p.bar.Add(n)
}

func (p *Bar) Finish() {
	if p.bar == nil {
		return
	}
	_ = p.bar.Finish()
	p.bar = nil
}

// Nop discards progress.
type Nop struct{}

func (Nop) Start(int) {}
func (Nop) Add(int)   {}
func (Nop) Finish()   {}

// DefaultEnabled reports whether stderr is a terminal.
func DefaultEnabled() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}
