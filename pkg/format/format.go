package format

import (
	"fmt"
	"math"
	"time"

	"github.com/docker/go-units"
)

const (
	zeroLatency  = "0ms"
	neverChecked = "never"
	notAvailable = "-"
)

// Bytes renders a byte count the way docker does, 1.5MB and friends
func Bytes(bytes int64) string {
	if bytes <= 0 {
		return "0B"
	}
	return units.HumanSize(float64(bytes))
}

// Duration formats duration in a readable way
func Duration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
	} else if minutes > 0 {
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}

func Latency(d time.Duration) string {
	if d <= 0 {
		return zeroLatency
	}
	if d >= time.Second {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dms", d.Milliseconds())
}

// TokensPerSecond renders generation speed, a dash when the server didn't report it
func TokensPerSecond(tps float64) string {
	if tps <= 0 {
		return notAvailable
	}
	return fmt.Sprintf("%.1f tok/s", tps)
}

// Seconds renders a float seconds value as reported by LM Studio stats
func Seconds(s float64) string {
	if s <= 0 {
		return notAvailable
	}
	return Latency(time.Duration(math.Round(s*1000)) * time.Millisecond)
}

func TimeAgo(t time.Time) string {
	if t.IsZero() {
		return neverChecked
	}
	return TimeDuration(time.Since(t)) + " ago"
}

func TimeUntil(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	diff := time.Until(t)
	if diff <= 0 {
		return "now"
	}
	return "in " + TimeDuration(diff)
}

func TimeDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%.0fm", d.Minutes())
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%.0fh", d.Hours())
	}
	return fmt.Sprintf("%.0fd", d.Hours()/24)
}

// ContextLength renders a context window size, 32768 becomes 32k
func ContextLength(n int) string {
	if n <= 0 {
		return notAvailable
	}
	if n >= 1024 && n%1024 == 0 {
		return fmt.Sprintf("%dk", n/1024)
	}
	return fmt.Sprintf("%d", n)
}
