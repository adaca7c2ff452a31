package ansi

import (
	"regexp"
	"strings"
)

var (
	escapeRe  = regexp.MustCompile(`\x1b\[((?:[0-9]+;?)*)([Km])`)
	partialRe = regexp.MustCompile(`\x1b(\[[0-9;]*)?$`)
	// any CSI cut before its final byte
	cutRe = regexp.MustCompile(`\x1b(\[[0-?]*[ -/]*)?$`)

	htmlEscaper = strings.NewReplacer("<", "&lt;", ">", "&gt;")
)

// styles maps the parameter list of an SGR sequence to the inline style of
// the span it opens. Parameter lists not listed here are consumed silently.
var styles = map[string]string{
	"30;42": "color:black;background:lime",
	"1":     "font-weight:bold;",
	"31":    "color:red;",
	"31;31": "color:red;",
	"32":    "color:lime;",
	"0;32":  "color:lime;",
	"33":    "color:yellow;",
	"33;33": "color:yellow;",
	"34":    "color:blue;",
	"35":    "color:magenta;",
	"36":    "color:cyan;",
	"36;1":  "color:cyan;",
	"37":    "color:white;",
	"90":    "color:gray;",
}

// Formatter converts chunks of terminal output into HTML fragments.
//
// A Formatter is stateful: spans opened in one call stay open until a reset
// sequence arrives, possibly many calls later. An escape sequence cut by a
// chunk boundary is held back and completed by the next call. A Formatter is
// not safe for concurrent use.
type Formatter struct {
	stack StyleStack
	carry string
}

func NewFormatter() *Formatter {
	return &Formatter{}
}

// Format escapes chunk and rewrites the color and erase sequences it contains.
func (f *Formatter) Format(chunk string) string {
	text := f.carry + chunk
	f.carry = ""
	if loc := partialRe.FindStringIndex(text); loc != nil {
		f.carry = text[loc[0]:]
		text = text[:loc[0]]
	}
	if text == "" {
		return ""
	}

	text = htmlEscaper.Replace(text)

	var out strings.Builder
	out.Grow(len(text))
	last := 0
	for _, m := range escapeRe.FindAllStringSubmatchIndex(text, -1) {
		out.WriteString(text[last:m[0]])
		last = m[1]

		params := text[m[2]:m[3]]
		if text[m[4]:m[5]] == "K" {
			continue
		}
		f.apply(&out, params)
	}
	out.WriteString(text[last:])
	return out.String()
}

func (f *Formatter) apply(out *strings.Builder, params string) {
	if params == "" || params == "0" {
		out.WriteString(f.stack.CloseAll())
		return
	}
	style, ok := styles[params]
	if !ok {
		return
	}
	out.WriteString(`<span style="`)
	out.WriteString(style)
	out.WriteString(`">`)
	f.stack.Push("</span>")
}

// SplitIncomplete splits s before an escape sequence that is cut off at its
// end. rest is empty when s ends cleanly.
func SplitIncomplete(s string) (complete, rest string) {
	if loc := cutRe.FindStringIndex(s); loc != nil {
		return s[:loc[0]], s[loc[0]:]
	}
	return s, ""
}

// Preview formats text the way Format would without changing f.
func (f *Formatter) Preview(text string) string {
	tmp := Formatter{carry: f.carry}
	tmp.stack.closers = append([]string(nil), f.stack.closers...)
	return tmp.Format(text)
}

// Flush returns any held back partial escape as escaped literal text.
func (f *Formatter) Flush() string {
	rest := f.carry
	f.carry = ""
	return htmlEscaper.Replace(rest)
}

// Reset closes every open span and drops any held back input.
func (f *Formatter) Reset() string {
	f.carry = ""
	return f.stack.CloseAll()
}

// Depth is the number of spans currently open.
func (f *Formatter) Depth() int {
	return f.stack.Len()
}
