// Package serial is the link to the probe over the virtual COM port.
// See the gdb's doc for the framing this package borrows: https://sourceware.org/gdb/onlinedocs/gdb/Overview.html
package serial

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/ks888/fetctl/log"
	"github.com/ks888/fetctl/probe"
)

// ErrClosed is returned when the link is already closed.
var ErrClosed = errors.New("link is closed")

type reply struct {
	status  int32
	payload []byte
}

// Link is the probe.Link over the byte stream. The goroutine owned by the link reads the stream
// and dispatches the notifications, so the notify handler must not block.
type Link struct {
	conn io.ReadWriteCloser
	lock io.Closer
	log  log.Entry

	callMu  sync.Mutex
	replies chan reply
	done    chan struct{}
	quit    chan struct{}
	readErr error

	mu        sync.Mutex
	notify    func(probe.Event)
	closed    bool
	pending   bool
	closeOnce sync.Once
}

// NewLink starts reading the stream.
func NewLink(conn io.ReadWriteCloser) *Link {
	l := &Link{
		conn:    conn,
		log:     log.WithLayer("serial"),
		replies: make(chan reply, 1),
		done:    make(chan struct{}),
		quit:    make(chan struct{}),
	}
	go l.readLoop(bufio.NewReader(conn))
	return l
}

// Call sends the request and waits for the reply.
func (l *Link) Call(op probe.Opcode, args []byte) (int32, []byte, error) {
	l.callMu.Lock()
	defer l.callMu.Unlock()

	select {
	case <-l.done:
		return 0, nil, l.readErr
	case <-l.quit:
		return 0, nil, ErrClosed
	default:
	}

	l.setPending(true)
	defer l.setPending(false)

	packet := encodePacket(kindCall, probe.Encode(uint16(op), args))
	l.log.Debugf("-> %s %x", op, args)
	if n, err := l.conn.Write(packet); err != nil {
		return 0, nil, err
	} else if n != len(packet) {
		return 0, nil, fmt.Errorf("only part of the buffer is sent: %d / %d", n, len(packet))
	}

	select {
	case r := <-l.replies:
		l.log.Debugf("<- %s %d %x", op, r.status, r.payload)
		return r.status, r.payload, nil
	case <-l.done:
		return 0, nil, l.readErr
	case <-l.quit:
		return 0, nil, ErrClosed
	}
}

func (l *Link) setPending(pending bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending = pending
}

// takePending returns true if the call waits for the reply and marks the reply as received.
func (l *Link) takePending() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	pending := l.pending
	l.pending = false
	return pending
}

// SetNotifyHandler sets the function called on the notification.
func (l *Link) SetNotifyHandler(handler func(probe.Event)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.notify = handler
}

// Close closes the stream and releases the device lock.
func (l *Link) Close() error {
	err := ErrClosed
	l.closeOnce.Do(func() {
		l.mu.Lock()
		l.closed = true
		l.mu.Unlock()
		close(l.quit)

		err = l.conn.Close()
		if l.lock != nil {
			if lockErr := l.lock.Close(); err == nil {
				err = lockErr
			}
		}
	})
	return err
}

func (l *Link) readLoop(r *bufio.Reader) {
	for {
		select {
		case <-l.quit:
			l.stop(ErrClosed)
			return
		default:
		}

		kind, payload, err := readPacket(r)
		if err != nil {
			l.stop(err)
			return
		}

		switch kind {
		case kindCall:
			var status int32
			var rest []byte
			if err := probe.Decode(payload, &status, &rest); err != nil {
				l.log.Errorf("malformed reply: %v", err)
				continue
			}
			if !l.takePending() {
				l.log.Warnf("dropped the reply no call waits for: status %d", status)
				continue
			}
			select {
			case l.replies <- reply{status: status, payload: rest}:
			default:
				l.log.Warnf("dropped the duplicate reply: status %d", status)
			}
		case kindNotify:
			var raw probe.RawEvent
			if err := probe.Decode(payload, &raw); err != nil {
				l.log.Errorf("malformed notification: %v", err)
				continue
			}
			event, err := probe.DecodeEvent(raw)
			if err != nil {
				l.log.Errorf("malformed notification: %v", err)
				continue
			}
			l.deliver(event)
		}
	}
}

func (l *Link) stop(err error) {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()

	if closed {
		l.readErr = ErrClosed
	} else {
		l.readErr = fmt.Errorf("failed to read the stream: %w", err)
		l.log.Errorf("connection lost: %v", err)
	}
	close(l.done)

	if !closed {
		l.deliver(probe.Event{Type: probe.EventFETConnectionLost})
	}
}

func (l *Link) deliver(event probe.Event) {
	l.mu.Lock()
	handler := l.notify
	l.mu.Unlock()

	if handler != nil {
		handler(event)
	}
}
