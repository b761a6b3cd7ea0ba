// Package timecode parses and prints HH:MM:SS.mmm timecodes and the run time report.
package timecode

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

var ErrFormat = errors.New("invalid timecode")

// Parse accepts "HH:MM:SS.mmm" or "MM:SS.mmm". Seconds may be fractional.
func Parse(s string) (time.Duration, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q, expected HH:MM:SS.mmm or MM:SS.mmm", ErrFormat, s)
	}

	var hours int
	if len(parts) == 3 {
		h, err := strconv.Atoi(parts[0])
		if err != nil || h < 0 {
			return 0, fmt.Errorf("%w: %q: bad hours", ErrFormat, s)
		}
		hours = h
		parts = parts[1:]
	}
	minutes, err := strconv.Atoi(parts[0])
	if err != nil || minutes < 0 {
		return 0, fmt.Errorf("%w: %q: bad minutes", ErrFormat, s)
	}
	seconds, err := strconv.ParseFloat(parts[1], 64)
	if err != nil || seconds < 0 || math.IsInf(seconds, 0) || math.IsNaN(seconds) {
		return 0, fmt.Errorf("%w: %q: bad seconds", ErrFormat, s)
	}

	total := time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(math.Round(seconds*1000))*time.Millisecond
	return total, nil
}

// Format prints d as HH:MM:SS.mmm, rounded to the nearest millisecond.
func Format(d time.Duration) string {
	sign := ""
	if d < 0 {
		sign = "-"
		d = -d
	}
	ms := d.Round(time.Millisecond).Milliseconds()
	h := ms / 3600000
	ms %= 3600000
	m := ms / 60000
	ms %= 60000
	sec := ms / 1000
	ms %= 1000
	return fmt.Sprintf("%s%02d:%02d:%02d.%03d", sign, h, m, sec, ms)
}

// Penalty is a fixed amount added to the run time for a starting choice.
type Penalty struct {
	Name  string
	Extra time.Duration
}

// DefaultPenalties are the starting-faction penalties of the category.
var DefaultPenalties = []Penalty{
	{Name: "Lancastrians", Extra: 77 * time.Second},
	{Name: "Yorkists", Extra: 38 * time.Second},
}

// Report is the load-less run time of a filtered video.
type Report struct {
	Duration  time.Duration
	Penalties []Penalty
}

func (r Report) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Output duration: %s\n", Format(r.Duration))
	for _, p := range r.Penalties {
		fmt.Fprintf(&b, "Output duration with penalty starting %s: %s\n", p.Name, Format(r.Duration+p.Extra))
	}
	n, err := io.WriteString(w, b.String())
	return int64(n), err
}
