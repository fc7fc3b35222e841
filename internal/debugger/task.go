package debugger

import (
	"context"
	"log/slog"

	"github.com/wnxd/microstub/debugger"
	"github.com/wnxd/microstub/emulator"
)

// taskManager is the session event loop. It only ever runs on the session
// goroutine; the engine is halted whenever control is outside Wait.
type taskManager struct {
	burst    uint64
	status   debugger.TaskStatus
	mode     debugger.ResumeMode
	stepOver bool
	last     debugger.StopReason
}

func (tm *taskManager) ctor(burst uint64) {
	tm.burst = burst
	tm.status = debugger.TaskStatus_Suspended
}

func (dbg *Dbg) Status() debugger.TaskStatus {
	return dbg.taskManager.status
}

func (dbg *Dbg) Resume(mode debugger.ResumeMode) error {
	tm := &dbg.taskManager
	switch tm.status {
	case debugger.TaskStatus_Running:
		return tm.status
	case debugger.TaskStatus_Exited:
		tm.mode = mode
		return nil
	}
	tm.stepOver = false
	if bp, ok := tm.last.(debugger.SwBreak); ok {
		pc, err := dbg.emu.RegRead(dbg.impl.PC())
		if err != nil {
			return debugger.NewEngineAccessError("read", dbg.impl.PC(), err)
		}
		tm.stepOver = pc == bp.Addr && dbg.hookManger.hasBreakpoint(pc)
	}
	tm.mode = mode
	tm.status = debugger.TaskStatus_Running
	dbg.log.Debug("resume", slog.String("mode", mode.String()), slog.Bool("step_over", tm.stepOver))
	return nil
}

// Wait alternates bounded execution bursts with non-blocking polls of conn.
// An engine stop found after a burst wins over pending debugger data, which
// stays buffered in conn.
func (dbg *Dbg) Wait(ctx context.Context, conn debugger.Connection) (debugger.Event, error) {
	tm := &dbg.taskManager
	switch tm.status {
	case debugger.TaskStatus_Exited:
		return debugger.StopEvent{Reason: tm.last}, nil
	case debugger.TaskStatus_Suspended:
		return nil, debugger.ErrNotResumed
	}

	if tm.stepOver {
		dbg.hookManger.skip = true
		dbg.hookManger.skipAddr = tm.last.(debugger.SwBreak).Addr
		cause, err := dbg.run(1)
		dbg.hookManger.skip = false
		tm.stepOver = false
		if err != nil {
			return nil, err
		}
		if reason, ok := dbg.translate(cause); ok {
			return dbg.suspend(reason), nil
		}
	}

	budget := tm.burst
	if tm.mode == debugger.ResumeMode_Step {
		budget = 1
	}
	for {
		if err := ctx.Err(); err != nil {
			tm.status = debugger.TaskStatus_Suspended
			return nil, err
		}
		cause, err := dbg.run(budget)
		if err != nil {
			tm.status = debugger.TaskStatus_Suspended
			return nil, err
		}
		if reason, ok := dbg.translate(cause); ok {
			return dbg.suspend(reason), nil
		}
		b, ok, err := conn.PeekByte()
		if err != nil {
			tm.status = debugger.TaskStatus_Suspended
			return nil, debugger.NewTransportError("peek", err)
		}
		if ok {
			tm.status = debugger.TaskStatus_Suspended
			tm.last = nil
			return debugger.IncomingDataEvent{Data: b}, nil
		}
	}
}

func (dbg *Dbg) Interrupt() (debugger.StopReason, error) {
	tm := &dbg.taskManager
	if tm.status == debugger.TaskStatus_Exited {
		return tm.last, nil
	}
	if err := dbg.emu.Stop(); err != nil {
		return nil, err
	}
	reason := debugger.Signal{Sig: debugger.SIGINT}
	dbg.suspend(reason)
	return reason, nil
}

func (dbg *Dbg) run(count uint64) (emulator.StopCause, error) {
	pc, err := dbg.emu.RegRead(dbg.impl.PC())
	if err != nil {
		return emulator.StopCause{}, debugger.NewEngineAccessError("read", dbg.impl.PC(), err)
	}
	return dbg.emu.Start(pc, 0, 0, count)
}

// translate maps an engine stop onto a debugger stop reason. It reports
// false when the run only used up its budget.
func (dbg *Dbg) translate(cause emulator.StopCause) (debugger.StopReason, bool) {
	if reason, ok := dbg.hookManger.takeStop(); ok {
		return reason, true
	}
	switch cause.Kind {
	case emulator.STOP_COUNT:
		if dbg.taskManager.mode == debugger.ResumeMode_Step {
			return debugger.DoneStep{}, true
		}
		return nil, false
	case emulator.STOP_REQUESTED:
		return debugger.Signal{Sig: debugger.SIGINT}, true
	case emulator.STOP_INSN_INVALID:
		return debugger.Signal{Sig: debugger.SIGILL}, true
	case emulator.STOP_MEM_INVALID:
		return debugger.Signal{Sig: debugger.SIGSEGV}, true
	case emulator.STOP_INTERRUPT:
		return debugger.Signal{Sig: debugger.SIGSYS}, true
	}
	return nil, false
}

func (dbg *Dbg) suspend(reason debugger.StopReason) debugger.Event {
	tm := &dbg.taskManager
	tm.last = reason
	tm.status = debugger.TaskStatus_Suspended
	if _, ok := reason.(debugger.Exited); ok {
		tm.status = debugger.TaskStatus_Exited
	}
	dbg.log.Info("target stopped", slog.String("reason", reason.String()))
	return debugger.StopEvent{Reason: reason}
}
