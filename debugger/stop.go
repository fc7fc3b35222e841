package debugger

import "fmt"

// Sig is a GDB signal number, which is not the host's numbering.
type Sig uint8

const (
	SIGINT  Sig = 2
	SIGILL  Sig = 4
	SIGTRAP Sig = 5
	SIGSEGV Sig = 11
	SIGSYS  Sig = 12
)

// StopReason is why a resumed target suspended.
type StopReason interface {
	fmt.Stringer
	stop()
}

type SwBreak struct {
	Addr uint64
}

type Exited struct {
	Code uint8
}

type Signal struct {
	Sig Sig
}

type DoneStep struct{}

func (SwBreak) stop()  {}
func (Exited) stop()   {}
func (Signal) stop()   {}
func (DoneStep) stop() {}

func (r SwBreak) String() string {
	return fmt.Sprintf("breakpoint at %08X", r.Addr)
}

func (r Exited) String() string {
	return fmt.Sprintf("exited with %d", r.Code)
}

func (r Signal) String() string {
	return fmt.Sprintf("signal %d", r.Sig)
}

func (DoneStep) String() string {
	return "step done"
}

// Event is what Wait returns: the target stopped, or the debugger sent
// data while it was running.
type Event interface {
	event()
}

type StopEvent struct {
	Reason StopReason
}

type IncomingDataEvent struct {
	Data byte
}

func (StopEvent) event()         {}
func (IncomingDataEvent) event() {}
