package stream

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/coder/websocket"
	"github.com/pkg/errors"
)

// DefaultReadLimit bounds a single websocket message.
const DefaultReadLimit = 4 << 20

// WebSocketConn delivers text and binary frames of a websocket as messages.
type WebSocketConn struct {
	conn    *websocket.Conn
	ctx     context.Context
	cancel  context.CancelFunc
	once    sync.Once
	closing atomic.Bool
}

var _ Conn = (*WebSocketConn)(nil)

func NewWebSocketConn(c *websocket.Conn) *WebSocketConn {
	ctx, cancel := context.WithCancel(context.Background())
	c.SetReadLimit(DefaultReadLimit)
	return &WebSocketConn{conn: c, ctx: ctx, cancel: cancel}
}

func (w *WebSocketConn) Attach(h Handlers) {
	w.once.Do(func() {
		go w.read(h)
	})
}

func (w *WebSocketConn) read(h Handlers) {
	defer h.close()
	h.open()
	for {
		_, data, err := w.conn.Read(w.ctx)
		if err != nil {
			if !w.closing.Load() && websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				h.error(errors.Wrap(err, "websocket read"))
			}
			return
		}
		h.message(string(data))
	}
}

func (w *WebSocketConn) Close() error {
	if !w.closing.CompareAndSwap(false, true) {
		return nil
	}
	err := w.conn.Close(websocket.StatusNormalClosure, "")
	w.cancel()
	if err != nil && !stderrors.Is(err, context.Canceled) && websocket.CloseStatus(err) == -1 {
		return errors.Wrap(err, "websocket close")
	}
	return nil
}

// SocketURL resolves path against base, switching http to ws and https to wss.
func SocketURL(base, path string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", errors.Wrap(err, "parse server url")
	}
	switch strings.ToLower(u.Scheme) {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws":
		u.Scheme = "ws"
	default:
		return "", errors.Errorf("unsupported server scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", errors.Errorf("server url %q has no host", base)
	}
	ref, err := url.Parse(path)
	if err != nil {
		return "", errors.Wrap(err, "parse stream path")
	}
	return u.ResolveReference(ref).String(), nil
}

// Dial opens a websocket to path on the server at base and wraps it in a
// Manager. header is sent with the handshake and may be nil.
func Dial(ctx context.Context, base, path string, header http.Header, opts Options) (*Manager, error) {
	u, err := SocketURL(base, path)
	if err != nil {
		return nil, err
	}
	c, _, err := websocket.Dial(ctx, u, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", u)
	}
	if opts.Name == "" {
		opts.Name = path
	}
	m, err := New(NewWebSocketConn(c), opts)
	if err != nil {
		_ = c.CloseNow()
		return nil, err
	}
	return m, nil
}
