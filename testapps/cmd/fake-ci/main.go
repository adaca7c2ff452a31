package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/go-go-golems/livelog/pkg/build"
	"github.com/go-go-golems/livelog/testapps/internal/fakelog"
)

// fake-ci runs a fake build in a loop and serves it the way livelog expects:
// a build list, an SSE status stream, finished logs and a live websocket.
func main() {
	var port int
	var interval time.Duration
	var pause time.Duration
	flag.IntVar(&port, "port", 0, "Port to listen on (0 for ephemeral)")
	flag.DurationVar(&interval, "interval", 100*time.Millisecond, "Delay between log lines")
	flag.DurationVar(&pause, "pause", 3*time.Second, "Idle time between builds")
	flag.Parse()

	if port == 0 {
		if v := os.Getenv("FAKE_CI_PORT"); v != "" {
			_, _ = fmt.Sscanf(v, "%d", &port)
		}
	}

	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "listen error: %v\n", err)
		os.Exit(2)
	}
	_, _ = fmt.Fprintf(os.Stderr, "listening on http://%s\n", ln.Addr())

	ci := newFakeCI()
	go ci.loop(context.Background(), interval, pause)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /api/v1/spaces/{scope}/+/executions", ci.listBuilds)
	mux.HandleFunc("GET /api/v1/spaces/{scope}/+/events", ci.events)
	mux.HandleFunc("GET /logs/{number}", ci.finishedLog)
	mux.HandleFunc("GET /logs/{number}/live", ci.liveLog)

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 2 * time.Second,
	}
	if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		_, _ = fmt.Fprintf(os.Stderr, "serve error: %v\n", err)
		os.Exit(3)
	}
}

type fakeCI struct {
	mu     sync.Mutex
	builds []build.Record
	logs   map[int64][]string
	subs   map[chan build.Record]struct{}
}

func newFakeCI() *fakeCI {
	return &fakeCI{
		logs: map[int64][]string{},
		subs: map[chan build.Record]struct{}{},
	}
}

func (c *fakeCI) loop(ctx context.Context, interval, pause time.Duration) {
	for n := int64(1); ; n++ {
		r := build.Record{
			ID:      n,
			RepoID:  1,
			Number:  n,
			Status:  build.StatusRunning,
			Commit:  fmt.Sprintf("%040x", n*7919),
			Branch:  "main",
			Message: fmt.Sprintf("fake build %d", n),
			Started: time.Now().Unix(),
		}
		c.update(r)
		for _, line := range fakelog.Lines(fakelog.Default) {
			select {
			case <-ctx.Done():
				return
			case <-time.After(interval):
			}
			c.mu.Lock()
			c.logs[n] = append(c.logs[n], line)
			c.mu.Unlock()
		}
		r.Status = build.StatusFailure
		if n%2 == 0 {
			r.Status = build.StatusSuccess
		}
		r.Finished = time.Now().Unix()
		c.update(r)

		select {
		case <-ctx.Done():
			return
		case <-time.After(pause):
		}
	}
}

func (c *fakeCI) update(r build.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	found := false
	for i := range c.builds {
		if c.builds[i].Number == r.Number {
			c.builds[i] = r
			found = true
		}
	}
	if !found {
		c.builds = append(c.builds, r)
		c.logs[r.Number] = nil
	}
	for ch := range c.subs {
		select {
		case ch <- r:
		default:
		}
	}
}

func (c *fakeCI) listBuilds(w http.ResponseWriter, _ *http.Request) {
	c.mu.Lock()
	out := append([]build.Record(nil), c.builds...)
	c.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (c *fakeCI) events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	ch := make(chan build.Record, 16)
	c.mu.Lock()
	c.subs[ch] = struct{}{}
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.subs, ch)
		c.mu.Unlock()
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case rec := <-ch:
			name := "execution_running"
			if rec.Status.Done() {
				name = "execution_completed"
			}
			data, err := json.Marshal(rec)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (c *fakeCI) lookup(w http.ResponseWriter, r *http.Request) (int64, bool) {
	n, err := strconv.ParseInt(r.PathValue("number"), 10, 64)
	if err != nil {
		http.Error(w, "bad build number", http.StatusBadRequest)
		return 0, false
	}
	c.mu.Lock()
	_, ok := c.logs[n]
	c.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return 0, false
	}
	return n, true
}

// snapshot returns the log lines from offset on and whether the build is done.
func (c *fakeCI) snapshot(n int64, offset int) ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	lines := c.logs[n]
	done := false
	for _, b := range c.builds {
		if b.Number == n {
			done = b.Status.Done()
		}
	}
	if offset >= len(lines) {
		return nil, done
	}
	return append([]string(nil), lines[offset:]...), done
}

func (c *fakeCI) finishedLog(w http.ResponseWriter, r *http.Request) {
	n, ok := c.lookup(w, r)
	if !ok {
		return
	}
	lines, _ := c.snapshot(n, 0)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(strings.Join(lines, "")))
}

func (c *fakeCI) liveLog(w http.ResponseWriter, r *http.Request) {
	n, ok := c.lookup(w, r)
	if !ok {
		return
	}
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.CloseNow() }()
	ctx := conn.CloseRead(r.Context())

	sent := 0
	t := time.NewTicker(50 * time.Millisecond)
	defer t.Stop()
	for {
		lines, done := c.snapshot(n, sent)
		for _, line := range lines {
			if err := conn.Write(ctx, websocket.MessageText, []byte(line)); err != nil {
				return
			}
		}
		sent += len(lines)
		if done && len(lines) == 0 {
			_ = conn.Close(websocket.StatusNormalClosure, "build finished")
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
