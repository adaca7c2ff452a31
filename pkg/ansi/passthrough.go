package ansi

// Passthrough leaves text untouched, escape sequences included. Terminal
// front ends use it where HTML output is not wanted.
type Passthrough struct{}

func (Passthrough) Format(text string) string {
	return text
}

func (Passthrough) Preview(text string) string {
	return text
}
