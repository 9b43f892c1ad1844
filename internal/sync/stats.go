package sync

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// Stats is the transfer summary rsync prints at the end of a run.
type Stats struct {
	BytesSent     int64
	BytesReceived int64
	TotalSize     int64
	Speedup       float64
}

// Example output:
//
//	sent 1,234 bytes  received 35 bytes  2,538.00 bytes/sec
//	total size is 1,024  speedup is 0.81
var (
	transferRegex = regexp.MustCompile(`(?m)^sent ([\d,.]+) bytes\s+received ([\d,.]+) bytes`)
	totalRegex    = regexp.MustCompile(`(?m)^total size is ([\d,.]+)\s+speedup is ([\d,.]+)`)
)

// ParseStats extracts the summary from rsync output. ok is false when the
// output holds no summary, e.g. after a failed run.
func ParseStats(output string) (Stats, bool) {
	var s Stats
	m := transferRegex.FindStringSubmatch(output)
	if m == nil {
		return s, false
	}
	s.BytesSent = parseCount(m[1])
	s.BytesReceived = parseCount(m[2])

	if t := totalRegex.FindStringSubmatch(output); t != nil {
		s.TotalSize = parseCount(t[1])
		if f, err := strconv.ParseFloat(strings.ReplaceAll(t[2], ",", ""), 64); err == nil {
			s.Speedup = f
		}
	}
	return s, true
}

// parseCount reads rsync's grouped integers ("1,234"). Some locales group
// with dots.
func parseCount(s string) int64 {
	s = strings.NewReplacer(",", "", ".", "").Replace(s)
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// String renders the summary for humans.
func (s Stats) String() string {
	return fmt.Sprintf("%s sent, %s received, %s total",
		humanize.Bytes(uint64(max(s.BytesSent, 0))),
		humanize.Bytes(uint64(max(s.BytesReceived, 0))),
		humanize.Bytes(uint64(max(s.TotalSize, 0))))
}
