package serial

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
)

// Packet kinds. The request and the reply start with '$' and the notification starts with '%'.
const (
	kindCall   byte = '$'
	kindNotify byte = '%'
)

// Assumes the packet size is not larger than this.
const maxPacketSize = 4096

func encodePacket(kind byte, payload []byte) []byte {
	body := hex.EncodeToString(payload)
	return []byte(fmt.Sprintf("%c%s#%02x", kind, body, calcChecksum([]byte(body))))
}

// readPacket reads the next packet. The bytes before the packet head are discarded.
func readPacket(r *bufio.Reader) (byte, []byte, error) {
	var kind byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, nil, err
		}
		if b == kindCall || b == kindNotify {
			kind = b
			break
		}
	}

	body, err := r.ReadBytes('#')
	if err != nil {
		return 0, nil, err
	}
	body = body[:len(body)-1]
	if len(body) > 2*maxPacketSize {
		return 0, nil, fmt.Errorf("too large packet: %d", len(body))
	}

	tail := make([]byte, 2)
	if _, err := io.ReadFull(r, tail); err != nil {
		return 0, nil, err
	}
	if err := verifyChecksum(body, string(tail)); err != nil {
		return 0, nil, err
	}

	payload, err := hex.DecodeString(string(body))
	if err != nil {
		return 0, nil, fmt.Errorf("invalid data: %v", err)
	}
	return kind, payload, nil
}

func verifyChecksum(body []byte, tail string) error {
	checksum, err := strconv.ParseUint(tail, 16, 8)
	if err != nil {
		return fmt.Errorf("invalid checksum: %s", tail)
	}
	if uint8(checksum) != calcChecksum(body) {
		return fmt.Errorf("checksum mismatch: %s", tail)
	}
	return nil
}

func calcChecksum(buff []byte) uint8 {
	var sum uint8
	for _, b := range buff {
		sum += b
	}
	return sum
}
