package commands

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/dustin/go-humanize"

	"github.com/Sumatoshi-tech/prescan/pkg/scanner"
	"github.com/Sumatoshi-tech/prescan/pkg/units"
)

const maxPathColumn = 60

// progressLine redraws a single status line on w.
type progressLine struct {
	mu    sync.Mutex
	w     io.Writer
	width int
	drawn bool
}

func newProgressLine(w io.Writer) *progressLine {
	return &progressLine{w: w}
}

func (p *progressLine) update(pr scanner.Progress) {
	rate := int64(0)
	if secs := pr.Elapsed.Seconds(); secs > 0 {
		rate = int64(float64(pr.Items) / secs)
	}

	text := fmt.Sprintf("Scanned %s items (%s files, %s folders) %s | %s issues | %s/s | %s",
		humanize.Comma(pr.Items), humanize.Comma(pr.Files), humanize.Comma(pr.Folders),
		units.Bytes(pr.Bytes), humanize.Comma(pr.Issues), humanize.Comma(rate), shortenPath(pr.CurrentPath))

	p.mu.Lock()
	defer p.mu.Unlock()

	pad := ""
	if n := utf8.RuneCountInString(text); n < p.width {
		pad = strings.Repeat(" ", p.width-n)
	}

	p.width = utf8.RuneCountInString(text)
	p.drawn = true

	_, _ = fmt.Fprint(p.w, "\r"+text+pad)
}

// finish ends the line so later output starts on a fresh one.
func (p *progressLine) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.drawn {
		_, _ = fmt.Fprintln(p.w)
		p.drawn = false
	}
}

// shortenPath keeps the tail of long paths.
func shortenPath(path string) string {
	n := utf8.RuneCountInString(path)
	if n <= maxPathColumn {
		return path
	}

	runes := []rune(path)

	return "..." + string(runes[n-maxPathColumn+3:])
}
