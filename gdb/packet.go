package gdb

import (
	"fmt"
	"log/slog"
)

const (
	PACKET_SIZE = 0x1000

	interruptByte = 0x03
	escapeByte    = '}'
)

func checksum(b []byte) uint8 {
	var sum uint8
	for _, c := range b {
		sum += c
	}
	return sum
}

func needEscape(c byte) bool {
	return c == '$' || c == '#' || c == escapeByte || c == '*'
}

// escape also covers '*' so no reply is ever read as run-length encoded.
func escape(b []byte) []byte {
	out := make([]byte, 0, len(b))
	for _, c := range b {
		if needEscape(c) {
			out = append(out, escapeByte, c^0x20)
		} else {
			out = append(out, c)
		}
	}
	return out
}

func unescape(b []byte) ([]byte, error) {
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); i++ {
		c := b[i]
		if c == escapeByte {
			i++
			if i == len(b) {
				return nil, fmt.Errorf("%w: dangling escape", ErrMalformed)
			}
			c = b[i] ^ 0x20
		}
		out = append(out, c)
	}
	return out, nil
}

func frame(payload []byte) []byte {
	body := escape(payload)
	pkt := make([]byte, 0, len(body)+4)
	pkt = append(pkt, '$')
	pkt = append(pkt, body...)
	pkt = append(pkt, '#')
	return appendHex(pkt, checksum(body), 2)
}

// readPacket returns the next well formed packet payload. Acks are consumed
// here; a '-' retransmits the last packet sent.
func (s *Server) readPacket() ([]byte, error) {
	for {
		b, err := s.conn.ReadByte()
		if err != nil {
			return nil, err
		}
		switch b {
		case '$':
		case '+':
			continue
		case '-':
			if s.sent != nil {
				s.log.Debug("retransmit")
				if _, err := s.conn.Write(s.sent); err != nil {
					return nil, err
				}
			}
			continue
		case interruptByte:
			s.log.Debug("interrupt while stopped")
			continue
		default:
			continue
		}

		var body []byte
		overflow := false
		for {
			b, err := s.conn.ReadByte()
			if err != nil {
				return nil, err
			}
			if b == '#' {
				break
			}
			// Past PACKET_SIZE the rest is discarded up to the next '#'.
			if len(body) == PACKET_SIZE {
				overflow = true
				continue
			}
			body = append(body, b)
		}
		var cs [2]byte
		for i := range cs {
			if cs[i], err = s.conn.ReadByte(); err != nil {
				return nil, err
			}
		}
		want, err := parseHex[uint8](string(cs[:]))
		if overflow {
			err = ErrOversized
		} else if err == nil && want != checksum(body) {
			err = ErrChecksum
		}
		if err != nil {
			s.log.Warn("bad packet", slog.String("data", string(body)), slog.Any("err", err))
			if !s.noAck {
				if _, err := s.conn.Write([]byte{'-'}); err != nil {
					return nil, err
				}
			}
			continue
		}
		if !s.noAck {
			if _, err := s.conn.Write([]byte{'+'}); err != nil {
				return nil, err
			}
		}
		s.log.Debug("recv", slog.String("packet", string(body)))
		return body, nil
	}
}

func (s *Server) writePacket(payload []byte) error {
	s.log.Debug("send", slog.String("packet", string(payload)))
	s.sent = frame(payload)
	_, err := s.conn.Write(s.sent)
	return err
}
