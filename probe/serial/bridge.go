package serial

import (
	"bufio"
	"fmt"
	"io"
	"sync"

	"github.com/ks888/fetctl/probe"
)

// Serve exposes the link on the byte stream, in the same framing the probe firmware speaks.
// It returns when the stream is closed. Used to put the simulated probe behind the pseudo terminal.
func Serve(conn io.ReadWriter, link probe.Link) error {
	var writeMu sync.Mutex
	write := func(packet []byte) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		_, err := conn.Write(packet)
		return err
	}

	link.SetNotifyHandler(func(event probe.Event) {
		_ = write(encodePacket(kindNotify, probe.Encode(probe.EncodeEvent(event))))
	})
	defer link.SetNotifyHandler(nil)

	r := bufio.NewReader(conn)
	for {
		kind, payload, err := readPacket(r)
		if err == io.EOF || err == io.ErrClosedPipe {
			return nil
		} else if err != nil {
			return err
		}
		if kind != kindCall {
			continue
		}

		var op uint16
		var args []byte
		if err := probe.Decode(payload, &op, &args); err != nil {
			return fmt.Errorf("malformed request: %w", err)
		}

		status, reply, err := link.Call(probe.Opcode(op), args)
		if err != nil {
			return err
		}
		if err := write(encodePacket(kindCall, probe.Encode(status, reply))); err != nil {
			return err
		}
	}
}
