package emulator

import "errors"

var (
	ErrArchUnsupported = errors.New("architecture unsupported")
	ErrArchMismatch    = errors.New("architecture mismatch")
	ErrMemProt         = errors.New("invalid memory protection")
	ErrMemAlign        = errors.New("memory not page aligned")
	ErrMemMapped       = errors.New("memory already mapped")
	ErrMemUnmapped     = errors.New("memory unmapped")
	ErrRegInvalid      = errors.New("register invalid")
	ErrHookType        = errors.New("hook type unsupported")
	ErrHookCallback    = errors.New("hook callback type exception")
	ErrRunning         = errors.New("emulator running")
	ErrClosed          = errors.New("emulator closed")
)
