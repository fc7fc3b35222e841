// Package gdb serves one debugger.Debugger over the GDB Remote Serial
// Protocol in all-stop mode.
package gdb

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/wnxd/microstub/debugger"
)

type Conn interface {
	debugger.Connection
	io.ByteReader
	io.Writer
}

type Server struct {
	dbg   debugger.Debugger
	log   *slog.Logger
	conn  Conn
	noAck bool
	sent  []byte
	last  debugger.StopReason
}

type Option func(*Server)

func WithLogger(log *slog.Logger) Option {
	return func(s *Server) {
		s.log = log
	}
}

func NewServer(dbg debugger.Debugger, opts ...Option) *Server {
	s := &Server{dbg: dbg}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = slog.New(slog.DiscardHandler)
	}
	return s
}

// Serve runs one session until the debugger kills or detaches, the
// connection fails or ctx is done. Target errors are reported to the
// debugger and never end the session.
func (s *Server) Serve(ctx context.Context, conn Conn) error {
	s.conn = conn
	s.noAck = false
	s.sent = nil
	log := s.log
	s.log = log.With(slog.String("session", uuid.NewString()))
	defer func() { s.log = log }()

	s.log.Info("session started")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		pkt, err := s.readPacket()
		if err != nil {
			return debugger.NewTransportError("read", err)
		}
		reply, end, err := s.dispatch(ctx, pkt)
		if err != nil {
			s.log.Error("session aborted", slog.Any("err", err))
			return err
		}
		if reply != nil {
			if err := s.writePacket(reply); err != nil {
				return debugger.NewTransportError("write", err)
			}
		}
		if end {
			s.log.Info("session ended")
			return nil
		}
	}
}

// dispatch handles one packet. A nil reply sends nothing; an empty one
// tells the debugger the packet is unsupported.
func (s *Server) dispatch(ctx context.Context, pkt []byte) (reply []byte, end bool, err error) {
	if len(pkt) == 0 {
		return []byte{}, false, nil
	}
	cmd := string(pkt)
	switch pkt[0] {
	case '?':
		return s.stopReply(s.last), false, nil
	case 'g':
		return s.readRegisters(), false, nil
	case 'G':
		return s.writeRegisters(cmd[1:]), false, nil
	case 'm':
		return s.readMemory(cmd[1:]), false, nil
	case 'M':
		return s.writeMemory(cmd[1:]), false, nil
	case 'X':
		return s.writeBinary(pkt[1:]), false, nil
	case 'Z', 'z':
		return s.breakpoint(pkt[0] == 'Z', cmd[1:]), false, nil
	case 'c':
		reply, err := s.resume(ctx, debugger.ResumeMode_Continue, cmd[1:])
		return reply, false, err
	case 's':
		reply, err := s.resume(ctx, debugger.ResumeMode_Step, cmd[1:])
		return reply, false, err
	case 'k':
		return nil, true, nil
	case 'D':
		return ok(), true, nil
	case 'H', 'T':
		return ok(), false, nil
	case 'q', 'Q':
		if cmd == "QStartNoAckMode" {
			// The OK still goes out under ack mode.
			if err := s.writePacket(ok()); err != nil {
				return nil, false, debugger.NewTransportError("write", err)
			}
			s.noAck = true
			return nil, false, nil
		}
		return s.query(cmd), false, nil
	case 'v':
		return s.vPacket(ctx, cmd)
	}
	return []byte{}, false, nil
}

func (s *Server) query(cmd string) []byte {
	switch {
	case strings.HasPrefix(cmd, "qSupported"):
		features := fmt.Sprintf("PacketSize=%x;QStartNoAckMode+;qXfer:features:read+", PACKET_SIZE)
		if s.dbg.SupportBreakpoints() != nil {
			features += ";swbreak+"
		}
		return []byte(features)
	case cmd == "qAttached":
		return []byte("1")
	case cmd == "qC":
		return []byte("QC1")
	case cmd == "qfThreadInfo":
		return []byte("m1")
	case cmd == "qsThreadInfo":
		return []byte("l")
	case strings.HasPrefix(cmd, "qXfer:features:read:"):
		return s.features(strings.TrimPrefix(cmd, "qXfer:features:read:"))
	}
	return []byte{}
}

func (s *Server) vPacket(ctx context.Context, cmd string) ([]byte, bool, error) {
	switch {
	case cmd == "vMustReplyEmpty":
		return []byte{}, false, nil
	case cmd == "vCont?":
		if s.dbg.SupportResume() == nil {
			return []byte{}, false, nil
		}
		return []byte("vCont;c;C;s;S"), false, nil
	case strings.HasPrefix(cmd, "vCont;"):
		action, _, _ := strings.Cut(strings.TrimPrefix(cmd, "vCont;"), ";")
		action, _, _ = strings.Cut(action, ":")
		switch {
		case strings.HasPrefix(action, "c"), strings.HasPrefix(action, "C"):
			reply, err := s.resume(ctx, debugger.ResumeMode_Continue, "")
			return reply, false, err
		case strings.HasPrefix(action, "s"), strings.HasPrefix(action, "S"):
			reply, err := s.resume(ctx, debugger.ResumeMode_Step, "")
			return reply, false, err
		}
		return errReply(EINVAL), false, nil
	case strings.HasPrefix(cmd, "vKill"):
		return ok(), true, nil
	}
	return []byte{}, false, nil
}

// features serves qXfer:features:read:annex:offset,length.
func (s *Server) features(args string) []byte {
	annex, rng, found := strings.Cut(args, ":")
	if !found {
		return errReply(EINVAL)
	}
	if annex != "target.xml" {
		return []byte("E00")
	}
	off, size, err := parseAddrLen(rng)
	if err != nil {
		return errReply(EINVAL)
	}
	if off >= uint64(len(targetXML)) {
		return []byte("l")
	}
	end := off + min(size, uint64(len(targetXML))-off)
	prefix := byte('m')
	if end == uint64(len(targetXML)) {
		prefix = 'l'
	}
	return append([]byte{prefix}, targetXML[off:end]...)
}

func (s *Server) readRegisters() []byte {
	regs, err := s.dbg.Base().ReadRegisters()
	if err != nil {
		return s.targetError("read registers", err)
	}
	data, err := encodeRegisters(regs)
	if err != nil {
		return s.targetError("read registers", err)
	}
	return []byte(hex.EncodeToString(data))
}

func (s *Server) writeRegisters(args string) []byte {
	data, err := hex.DecodeString(args)
	if err != nil {
		return s.targetError("write registers", fmt.Errorf("%w: %v", ErrMalformed, err))
	}
	regs, err := decodeRegisters(data)
	if err != nil {
		return s.targetError("write registers", err)
	}
	if err := s.dbg.Base().WriteRegisters(regs); err != nil {
		return s.targetError("write registers", err)
	}
	return ok()
}

func (s *Server) readMemory(args string) []byte {
	addr, size, err := parseAddrLen(args)
	if err != nil {
		return s.targetError("read memory", err)
	}
	size = min(size, (PACKET_SIZE-4)/2)
	data := make([]byte, size)
	if err := s.dbg.Base().ReadAddrs(addr, data); err != nil {
		return s.targetError("read memory", err)
	}
	return []byte(hex.EncodeToString(data))
}

func (s *Server) writeMemory(args string) []byte {
	rng, payload, found := strings.Cut(args, ":")
	if !found {
		return s.targetError("write memory", ErrMalformed)
	}
	addr, size, err := parseAddrLen(rng)
	if err != nil {
		return s.targetError("write memory", err)
	}
	data, err := hex.DecodeString(payload)
	if err != nil || uint64(len(data)) != size {
		return s.targetError("write memory", fmt.Errorf("%w: %d bytes of data for length %d", ErrMalformed, len(data), size))
	}
	if err := s.dbg.Base().WriteAddrs(addr, data); err != nil {
		return s.targetError("write memory", err)
	}
	return ok()
}

func (s *Server) writeBinary(args []byte) []byte {
	rng, payload, found := bytes.Cut(args, []byte{':'})
	if !found {
		return s.targetError("write memory", ErrMalformed)
	}
	addr, size, err := parseAddrLen(string(rng))
	if err != nil {
		return s.targetError("write memory", err)
	}
	data, err := unescape(payload)
	if err != nil {
		return s.targetError("write memory", err)
	}
	if uint64(len(data)) != size {
		return s.targetError("write memory", fmt.Errorf("%w: %d bytes of data for length %d", ErrMalformed, len(data), size))
	}
	if size == 0 {
		return ok()
	}
	if err := s.dbg.Base().WriteAddrs(addr, data); err != nil {
		return s.targetError("write memory", err)
	}
	return ok()
}

// breakpoint handles Z0/z0. Other breakpoint types are unsupported.
func (s *Server) breakpoint(insert bool, args string) []byte {
	ops := s.dbg.SupportBreakpoints()
	typ, rest, found := strings.Cut(args, ",")
	if ops == nil || !found || typ != "0" {
		return []byte{}
	}
	rest, _, _ = strings.Cut(rest, ";")
	addr, kind, err := parseAddrLen(rest)
	if err != nil {
		return s.targetError("breakpoint", err)
	}
	var done bool
	if insert {
		done, err = ops.AddSwBreakpoint(addr, debugger.BreakpointKind(kind))
	} else {
		done, err = ops.RemoveSwBreakpoint(addr, debugger.BreakpointKind(kind))
	}
	if err != nil {
		return s.targetError("breakpoint", err)
	}
	if !done {
		return errReply(EFAULT)
	}
	return ok()
}

// resume runs the target until it stops and returns the stop reply. An
// interrupt byte halts it; any other byte that arrives meanwhile is
// dropped and the target keeps running.
func (s *Server) resume(ctx context.Context, mode debugger.ResumeMode, addr string) ([]byte, error) {
	ops := s.dbg.SupportResume()
	if ops == nil {
		return []byte{}, nil
	}
	if addr != "" {
		if reply := s.setPC(addr); reply != nil {
			return reply, nil
		}
	}
	if err := ops.Resume(mode); err != nil {
		return s.targetError("resume", err), nil
	}
	for {
		ev, err := s.dbg.Wait(ctx, s.conn)
		if err != nil {
			return nil, err
		}
		switch ev := ev.(type) {
		case debugger.StopEvent:
			return s.stopReply(ev.Reason), nil
		case debugger.IncomingDataEvent:
			b, err := s.conn.ReadByte()
			if err != nil {
				return nil, debugger.NewTransportError("read", err)
			}
			if b == interruptByte {
				reason, err := s.dbg.Interrupt()
				if err != nil {
					return nil, err
				}
				return s.stopReply(reason), nil
			}
			if b != '+' {
				s.log.Warn("dropped byte while running", slog.String("byte", strconv.QuoteRune(rune(b))))
			}
			if err := ops.Resume(mode); err != nil {
				return s.targetError("resume", err), nil
			}
		}
	}
}

func (s *Server) setPC(arg string) []byte {
	pc, err := parseHex[uint32](arg)
	if err != nil {
		return s.targetError("resume", err)
	}
	base := s.dbg.Base()
	regs, err := base.ReadRegisters()
	if err != nil {
		return s.targetError("resume", err)
	}
	regs.PC = pc
	if err := base.WriteRegisters(regs); err != nil {
		return s.targetError("resume", err)
	}
	return nil
}

func (s *Server) stopReply(reason debugger.StopReason) []byte {
	s.last = reason
	switch r := reason.(type) {
	case debugger.SwBreak:
		return append(appendHex([]byte("T"), uint8(debugger.SIGTRAP), 2), "swbreak:;"...)
	case debugger.Exited:
		return appendHex([]byte("W"), r.Code, 2)
	case debugger.Signal:
		return appendHex([]byte("S"), uint8(r.Sig), 2)
	}
	return appendHex([]byte("S"), uint8(debugger.SIGTRAP), 2)
}

func (s *Server) targetError(op string, err error) []byte {
	code := errno(err)
	s.log.Warn(op+" failed", slog.Int("errno", code), slog.Any("err", err))
	return errReply(code)
}

func errReply(code int) []byte {
	return appendHex([]byte("E"), uint8(code), 2)
}

func ok() []byte {
	return []byte("OK")
}
