package stream

// Handlers are the callbacks a Conn delivers to. Any of them may be nil.
// They run on the connection's reader goroutine.
type Handlers struct {
	OnOpen    func()
	OnMessage func(data string)
	OnError   func(err error)
	OnClose   func()
}

// Conn is an open, message oriented source of log output.
type Conn interface {
	// Attach starts delivery to h. It is called once.
	Attach(h Handlers)
	Close() error
}

func (h Handlers) open() {
	if h.OnOpen != nil {
		h.OnOpen()
	}
}

func (h Handlers) message(data string) {
	if h.OnMessage != nil {
		h.OnMessage(data)
	}
}

func (h Handlers) error(err error) {
	if h.OnError != nil {
		h.OnError(err)
	}
}

func (h Handlers) close() {
	if h.OnClose != nil {
		h.OnClose()
	}
}
