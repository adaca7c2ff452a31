package ansi

import "strings"

// StyleStack holds the closing markers of the spans that are currently open.
type StyleStack struct {
	closers []string
}

func (s *StyleStack) Push(closer string) {
	s.closers = append(s.closers, closer)
}

func (s *StyleStack) Len() int {
	return len(s.closers)
}

// CloseAll pops every marker, most recent first, and returns them joined.
func (s *StyleStack) CloseAll() string {
	if len(s.closers) == 0 {
		return ""
	}
	var b strings.Builder
	for i := len(s.closers) - 1; i >= 0; i-- {
		b.WriteString(s.closers[i])
	}
	s.closers = s.closers[:0]
	return b.String()
}
