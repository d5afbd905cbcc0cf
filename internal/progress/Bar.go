// Package progress implements printing a progress bar to the terminal
// window while a training run or grid search advances.
package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Bar is a terminal progress bar. Increment is safe to call from
// multiple goroutines, so one bar can track a parallel grid search.
type Bar struct {
	mu sync.Mutex

	width     float64
	max       float64
	current   float64
	startTime time.Time
	out       io.Writer
	closed    bool
}

// New returns a Bar that is width characters wide and reaches 100%
// after max Increment calls, writing to out.
func New(out io.Writer, width, max int) *Bar {
	return &Bar{
		width:     float64(width),
		max:       float64(max),
		startTime: time.Now(),
		out:       out,
	}
}

// Increment advances the bar by one unit and redraws it. Each time an
// iteration is performed, Increment should be called.
func (b *Bar) Increment() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	if b.current < b.max {
		b.current++
	}
	b.render()
}

// Close finishes the bar and jumps to the next line. Further
// increments are ignored.
func (b *Bar) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.render()
	fmt.Fprintln(b.out)
	b.closed = true
}

func (b *Bar) render() {
	var bar strings.Builder
	bar.WriteString("|")

	filled := b.current / b.max * b.width
	for i := 0.0; i < filled; i++ {
		bar.WriteString("█")
	}
	for i := filled; i < b.width; i++ {
		bar.WriteString(" ")
	}
	fmt.Fprintf(&bar, "| [%.2f%% | elapsed: %v]",
		b.current/b.max*100, time.Since(b.startTime).Truncate(time.Second))

	fmt.Fprintf(b.out, "\n\033[1A\033[K%v", bar.String())
}
