// Package fakelog produces a synthetic build log for the fixture apps.
package fakelog

import (
	"fmt"
	"strings"
)

type Step struct {
	Command string
	Output  []string
}

// Default is a short go build with colors, a progress bar and a failing test.
var Default = []Step{
	{Command: "git clone --depth 1 https://example.com/acme/app.git .", Output: []string{
		"Cloning into '.'...",
		"\x1b[2mremote: Enumerating objects: 214, done.\x1b[0m",
	}},
	{Command: "go mod download", Output: progress("downloading modules", 5)},
	{Command: "go build ./...", Output: []string{
		"\x1b[1mgithub.com/acme/app/internal/api\x1b[0m",
		"\x1b[1mgithub.com/acme/app/cmd/app\x1b[0m",
	}},
	{Command: "go test ./...", Output: []string{
		"\x1b[32mok  \x1b[0m\tgithub.com/acme/app/internal/api\t0.412s",
		"\x1b[31m--- FAIL: TestServe (0.01s)\x1b[0m",
		"    serve_test.go:41: unexpected status 502",
		"\x1b[31mFAIL\x1b[0m\tgithub.com/acme/app/cmd/app\t0.097s",
	}},
}

func progress(label string, steps int) []string {
	out := []string{label + "   0%"}
	for i := 1; i <= steps; i++ {
		pct := i * 100 / steps
		bar := strings.Repeat("#", i) + strings.Repeat(".", steps-i)
		out = append(out, fmt.Sprintf("\r%s [%s] %3d%%", label, bar, pct))
	}
	return out
}

// Lines renders steps as terminal output. Every line keeps its newline and
// commands carry a "$ " prompt, so each step opens a fold.
func Lines(steps []Step) []string {
	var out []string
	for _, s := range steps {
		out = append(out, "$ "+s.Command+"\n")
		for _, o := range s.Output {
			out = append(out, o+"\n")
		}
	}
	return out
}

// Repeat returns n copies of the default build, numbered so the folds are
// distinguishable.
func Repeat(n int) []string {
	if n <= 1 {
		return Lines(Default)
	}
	var out []string
	for i := 1; i <= n; i++ {
		out = append(out, fmt.Sprintf("$ echo round %d\n", i))
		out = append(out, Lines(Default)...)
	}
	return out
}
