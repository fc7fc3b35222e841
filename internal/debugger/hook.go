package debugger

import (
	"log/slog"

	"github.com/wnxd/microstub/debugger"
	"github.com/wnxd/microstub/emulator"
)

type bpKey struct {
	addr uint64
	kind debugger.BreakpointKind
}

// hookManger owns every engine hook the debugger installs. Breakpoint hook
// handles never leave it.
type hookManger struct {
	releases    []func() error
	breakpoints map[bpKey]*bpHandler
	hit         bool
	hitAddr     uint64
	skip        bool
	skipAddr    uint64
	stop        debugger.StopReason
}

type bpHandler struct {
	releases []func() error
	hm       *hookManger
	key      bpKey
}

func (h *hookManger) ctor(dbg Debugger) error {
	h.breakpoints = make(map[bpKey]*bpHandler)
	hook, err := dbg.Emulator().Hook(emulator.HOOK_TYPE_INTR, h.handleInterrupt, dbg, 1, 0)
	if err != nil {
		return err
	}
	h.releases = append(h.releases, hook.Close)
	return nil
}

func (h *hookManger) dtor() {
	for key, bp := range h.breakpoints {
		bp.Close()
		delete(h.breakpoints, key)
	}
	for i := len(h.releases) - 1; i >= 0; i-- {
		h.releases[i]()
	}
	h.releases = nil
}

func (h *hookManger) addBreakpoint(dbg Debugger, addr uint64, kind debugger.BreakpointKind) (bool, error) {
	key := bpKey{addr, kind}
	if _, ok := h.breakpoints[key]; ok {
		return false, &debugger.DuplicateBreakpointError{Addr: addr, Kind: kind}
	}
	emu := dbg.Emulator()
	regions, err := emu.MemRegions()
	if err != nil || !emulator.RegionCovers(regions, addr, 1, emulator.MEM_PROT_EXEC) {
		return false, nil
	}
	handler := &bpHandler{hm: h, key: key}
	hook, err := emu.Hook(emulator.HOOK_TYPE_CODE, handler.handleCode, dbg, addr, addr+1)
	if err != nil {
		return false, nil
	}
	handler.releases = append(handler.releases, hook.Close)
	h.breakpoints[key] = handler
	return true, nil
}

func (h *hookManger) removeBreakpoint(addr uint64, kind debugger.BreakpointKind) (bool, error) {
	key := bpKey{addr, kind}
	handler, ok := h.breakpoints[key]
	if !ok {
		return false, &debugger.UnknownBreakpointError{Addr: addr, Kind: kind}
	}
	err := handler.Close()
	delete(h.breakpoints, key)
	if err != nil {
		return false, err
	}
	return true, nil
}

func (h *hookManger) hasBreakpoint(addr uint64) bool {
	for key := range h.breakpoints {
		if key.addr == addr {
			return true
		}
	}
	return false
}

// takeStop returns and clears whatever a hook recorded during the last run.
func (h *hookManger) takeStop() (debugger.StopReason, bool) {
	if h.hit {
		h.hit = false
		return debugger.SwBreak{Addr: h.hitAddr}, true
	}
	if h.stop != nil {
		stop := h.stop
		h.stop = nil
		return stop, true
	}
	return nil, false
}

func (h *hookManger) handleInterrupt(intno uint64, data any) {
	dbg := data.(Debugger)
	stop, err := dbg.Syscall(intno)
	if err != nil {
		stop = debugger.Signal{Sig: debugger.SIGSYS}
	}
	if stop == nil {
		return
	}
	h.stop = stop
	dbg.Emulator().Stop()
}

func (h *bpHandler) Close() error {
	for i := len(h.releases) - 1; i >= 0; i-- {
		if err := h.releases[i](); err != nil {
			return err
		}
	}
	h.releases = nil
	return nil
}

func (h *bpHandler) handleCode(addr, size uint64, data any) {
	if h.hm.skip && addr == h.hm.skipAddr {
		return
	}
	h.hm.hit = true
	h.hm.hitAddr = addr
	data.(Debugger).Emulator().Stop()
}

func (dbg *Dbg) AddSwBreakpoint(addr uint64, kind debugger.BreakpointKind) (bool, error) {
	ok, err := dbg.hookManger.addBreakpoint(dbg.impl, addr, kind)
	if err == nil && !ok {
		dbg.log.Warn("breakpoint rejected", slog.String("addr", hex(addr)), slog.Uint64("kind", uint64(kind)))
	}
	return ok, err
}

func (dbg *Dbg) RemoveSwBreakpoint(addr uint64, kind debugger.BreakpointKind) (bool, error) {
	return dbg.hookManger.removeBreakpoint(addr, kind)
}
