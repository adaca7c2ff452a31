package logline

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/pkg/errors"
)

// TimeLayout is how Format prints line timestamps.
const TimeLayout = "15:04:05"

// Timestamp accepts unix seconds or any date string dateparse understands.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" || s == "0" {
		t.Time = time.Time{}
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		t.Time = time.Unix(n, 0)
		return nil
	}
	v, err := dateparse.ParseAny(s)
	if err != nil {
		return errors.Wrapf(err, "parse time %q", s)
	}
	t.Time = v
	return nil
}

// Line is one structured block of step output.
type Line struct {
	Pos   int       `json:"pos"`
	Time  Timestamp `json:"time"`
	Level string    `json:"level,omitempty"`
	Out   string    `json:"out"`
}

// Decode parses a single JSON encoded line.
func Decode(b []byte) (Line, error) {
	var l Line
	if err := json.Unmarshal(b, &l); err != nil {
		return Line{}, errors.Wrap(err, "decode log line")
	}
	return l, nil
}

// Parse reads historical output, either a JSON array of lines or one JSON
// object per line. Blank lines are skipped.
func Parse(payload []byte) ([]Line, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var lines []Line
		if err := json.Unmarshal(trimmed, &lines); err != nil {
			return nil, errors.Wrap(err, "decode log lines")
		}
		return lines, nil
	}

	var lines []Line
	scanner := bufio.NewScanner(bytes.NewReader(trimmed))
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	n := 0
	for scanner.Scan() {
		n++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		l, err := Decode(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", n)
		}
		lines = append(lines, l)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "scan log lines")
	}
	return lines, nil
}

// Format renders l as "<pos+1>  <level>  <time>  <out>" with a single
// trailing newline. Times print in loc, or local time when loc is nil.
func Format(l Line, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	ts := ""
	if !l.Time.IsZero() {
		ts = l.Time.In(loc).Format(TimeLayout)
	}
	out := strings.TrimRight(l.Out, "\r\n")
	return fmt.Sprintf("%d  %s  %s  %s\n", l.Pos+1, l.Level, ts, out)
}

// TextLines turns historical output into terminal lines, each keeping its
// newline. Structured payloads are rendered with Format; anything that does
// not parse as structured lines is split as raw text.
func TextLines(payload []byte, loc *time.Location) []string {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) > 0 && (trimmed[0] == '[' || trimmed[0] == '{') {
		if lines, err := Parse(trimmed); err == nil {
			out := make([]string, 0, len(lines))
			for _, l := range lines {
				out = append(out, Format(l, loc))
			}
			return out
		}
	}
	if len(payload) == 0 {
		return nil
	}
	lines := strings.SplitAfter(string(payload), "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
