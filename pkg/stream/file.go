package stream

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
)

const fileChunkSize = 32 << 10

type FileOptions struct {
	// Follow keeps the connection open and delivers data appended to the file.
	// Without it the connection closes at end of file.
	Follow bool
	// TailBytes starts delivery at most this many bytes before the end of the
	// file, at the next line boundary. Zero delivers the whole file.
	TailBytes int64
}

// FileConn replays a captured build log, optionally following it as it
// grows.
type FileConn struct {
	path    string
	opts    FileOptions
	f       *os.File
	watcher *fsnotify.Watcher

	once      sync.Once
	done      chan struct{}
	closeOnce sync.Once
}

var _ Conn = (*FileConn)(nil)

func OpenFile(path string, opts FileOptions) (*FileConn, error) {
	if path == "" {
		return nil, errors.New("missing path")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open")
	}
	if err := seekTail(f, opts.TailBytes); err != nil {
		_ = f.Close()
		return nil, err
	}
	c := &FileConn{path: path, opts: opts, f: f, done: make(chan struct{})}
	if opts.Follow {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			_ = f.Close()
			return nil, errors.Wrap(err, "new watcher")
		}
		// watch the directory so truncation by rename is seen
		if err := w.Add(filepath.Dir(path)); err != nil {
			_ = w.Close()
			_ = f.Close()
			return nil, errors.Wrap(err, "watch")
		}
		c.watcher = w
	}
	return c, nil
}

func seekTail(f *os.File, tailBytes int64) error {
	if tailBytes <= 0 {
		return nil
	}
	info, err := f.Stat()
	if err != nil {
		return errors.Wrap(err, "stat")
	}
	if info.Size() <= tailBytes {
		return nil
	}
	start := info.Size() - tailBytes
	if _, err := f.Seek(start, io.SeekStart); err != nil {
		return errors.Wrap(err, "seek")
	}
	// drop the partial first line
	buf := make([]byte, fileChunkSize)
	for {
		n, err := f.Read(buf)
		if i := bytes.IndexByte(buf[:n], '\n'); i >= 0 {
			start += int64(i + 1)
			break
		}
		start += int64(n)
		if err != nil {
			break
		}
	}
	if _, err := f.Seek(start, io.SeekStart); err != nil {
		return errors.Wrap(err, "seek")
	}
	return nil
}

func (c *FileConn) Attach(h Handlers) {
	c.once.Do(func() {
		go c.run(h)
	})
}

func (c *FileConn) run(h Handlers) {
	defer h.close()
	h.open()

	if err := c.drain(h); err != nil {
		h.error(err)
		return
	}
	if c.watcher == nil {
		return
	}

	target := filepath.Clean(c.path)
	for {
		select {
		case <-c.done:
			return
		case ev, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				return
			}
			if ev.Has(fsnotify.Write) {
				if err := c.drain(h); err != nil {
					h.error(err)
					return
				}
			}
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			h.error(errors.Wrap(err, "watch"))
		}
	}
}

func (c *FileConn) drain(h Handlers) error {
	buf := make([]byte, fileChunkSize)
	for {
		n, err := c.f.Read(buf)
		if n > 0 {
			h.message(string(buf[:n]))
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			select {
			case <-c.done:
				return nil
			default:
			}
			return errors.Wrap(err, "read")
		}
	}
}

func (c *FileConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		if c.watcher != nil {
			if werr := c.watcher.Close(); werr != nil {
				err = errors.Wrap(werr, "close watcher")
			}
		}
		if ferr := c.f.Close(); ferr != nil && err == nil {
			err = errors.Wrap(ferr, "close file")
		}
	})
	return err
}
