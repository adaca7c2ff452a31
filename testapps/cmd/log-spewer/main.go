package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-go-golems/livelog/testapps/internal/fakelog"
)

// log-spewer writes a fake build log line by line, to stdout or appended to
// a file that `livelog follow --file` can tail.
func main() {
	var interval time.Duration
	var rounds int
	var out string
	var hold bool
	flag.DurationVar(&interval, "interval", 50*time.Millisecond, "Delay between lines")
	flag.IntVar(&rounds, "rounds", 1, "How many times to run the fake build")
	flag.StringVar(&out, "out", "", "Append to this file instead of writing to stdout")
	flag.BoolVar(&hold, "hold", false, "Keep running after the last line")
	flag.Parse()

	var w io.Writer = os.Stdout
	if out != "" {
		f, err := os.OpenFile(out, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "open %s: %v\n", out, err)
			os.Exit(2)
		}
		defer func() { _ = f.Close() }()
		w = f
	}

	for _, line := range fakelog.Repeat(rounds) {
		if _, err := io.WriteString(w, line); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "write: %v\n", err)
			os.Exit(3)
		}
		time.Sleep(interval)
	}
	if hold {
		select {}
	}
}
