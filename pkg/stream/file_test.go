package stream

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type collector struct {
	mu     sync.Mutex
	buf    strings.Builder
	errs   []error
	closed chan struct{}
}

func newCollector() *collector {
	return &collector{closed: make(chan struct{})}
}

func (c *collector) handlers() Handlers {
	return Handlers{
		OnMessage: func(data string) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.buf.WriteString(data)
		},
		OnError: func(err error) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.errs = append(c.errs, err)
		},
		OnClose: func() { close(c.closed) },
	}
}

func (c *collector) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

func TestFileConnReplaysAndCloses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "build.log")
	require.NoError(t, os.WriteFile(path, []byte("$ make\nok\n"), 0o644))

	conn, err := OpenFile(path, FileOptions{})
	require.NoError(t, err)
	col := newCollector()
	conn.Attach(col.handlers())

	select {
	case <-col.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("file conn did not close at EOF")
	}
	require.Equal(t, "$ make\nok\n", col.String())
	require.Empty(t, col.errs)
	require.NoError(t, conn.Close())
}

func TestFileConnTailStartsAtLineBoundary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "build.log")
	require.NoError(t, os.WriteFile(path, []byte("first line\nsecond\nthird\n"), 0o644))

	conn, err := OpenFile(path, FileOptions{TailBytes: 10})
	require.NoError(t, err)
	col := newCollector()
	conn.Attach(col.handlers())
	<-col.closed
	require.Equal(t, "third\n", col.String())
	require.NoError(t, conn.Close())
}

func TestFileConnFollowsAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "build.log")
	require.NoError(t, os.WriteFile(path, []byte("start\n"), 0o644))

	conn, err := OpenFile(path, FileOptions{Follow: true})
	require.NoError(t, err)
	col := newCollector()
	conn.Attach(col.handlers())

	require.Eventually(t, func() bool { return col.String() == "start\n" }, 2*time.Second, 10*time.Millisecond)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.WriteString("more\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.Eventually(t, func() bool { return col.String() == "start\nmore\n" }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	select {
	case <-col.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("file conn did not stop")
	}
}

func TestOpenFileMissing(t *testing.T) {
	_, err := OpenFile(filepath.Join(t.TempDir(), "nope"), FileOptions{})
	require.Error(t, err)
	_, err = OpenFile("", FileOptions{})
	require.Error(t, err)
}
