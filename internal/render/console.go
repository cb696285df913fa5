package render

import (
	"fmt"
	"io"
	"math"
	"strings"
	"sync"
	"time"

	"blocklag/internal/series"
)

// DefaultWidth is the sparkline width in cells.
const DefaultWidth = 30

// Config holds console display settings.
type Config struct {
	// MinInterval suppresses sample lines arriving closer together
	// than this. Reset lines always print. Zero prints everything.
	MinInterval time.Duration

	// Width caps the sparkline length (default: DefaultWidth).
	Width int
}

// Console writes one line per window mutation. Its Redraw method is a
// series.RedrawFunc; it only reads the snapshot handed to it, so it is
// safe on the delivery path.
type Console struct {
	cfg Config
	out io.Writer

	mu         sync.Mutex
	lastLine   time.Time
	lastResets uint64

	now func() time.Time
}

// New creates a console writing to out.
func New(out io.Writer, cfg Config) *Console {
	if cfg.Width <= 0 {
		cfg.Width = DefaultWidth
	}
	return &Console{
		cfg: cfg,
		out: out,
		now: time.Now,
	}
}

// Redraw prints the window state. A reset prints immediately; sample
// lines are rate limited per MinInterval.
func (c *Console) Redraw(snap series.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if snap.Resets > c.lastResets {
		c.lastResets = snap.Resets
		fmt.Fprintln(c.out, "[SERIES] window reset")
		c.lastLine = time.Time{}
		return
	}

	latest, ok := snap.Latest()
	if !ok {
		return
	}

	now := c.now()
	if c.cfg.MinInterval > 0 && now.Sub(c.lastLine) < c.cfg.MinInterval {
		return
	}
	c.lastLine = now

	fmt.Fprintf(c.out, "[SERIES] n=%d/%d height=%d last=%.2fs min=%.2fs avg=%.2fs max=%.2fs %s\n",
		len(snap.Samples), snap.Capacity,
		latest.Height, latest.Latency,
		snap.Min(), snap.Avg(), snap.Max(),
		sparkline(latencies(snap), c.cfg.Width),
	)
}

func latencies(snap series.Snapshot) []float64 {
	vals := make([]float64, len(snap.Samples))
	for i, s := range snap.Samples {
		vals[i] = s.Latency
	}
	return vals
}

var sparkRunes = []rune("▁▂▃▄▅▆▇█")

// sparkline renders vals as a row of block characters, oldest first.
// When vals exceeds width, only the newest width values are drawn.
func sparkline(vals []float64, width int) string {
	if width <= 0 || len(vals) == 0 {
		return ""
	}
	if len(vals) > width {
		vals = vals[len(vals)-width:]
	}

	min, max := vals[0], vals[0]
	for _, v := range vals[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	var b strings.Builder
	b.Grow(len(vals) * 3)
	if max == min {
		for range vals {
			b.WriteRune(sparkRunes[len(sparkRunes)/2])
		}
		return b.String()
	}
	for _, v := range vals {
		r := (v - min) / (max - min)
		pos := int(math.Round(r * float64(len(sparkRunes)-1)))
		if pos < 0 {
			pos = 0
		}
		if pos >= len(sparkRunes) {
			pos = len(sparkRunes) - 1
		}
		b.WriteRune(sparkRunes[pos])
	}
	return b.String()
}
