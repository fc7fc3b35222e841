// Package arm registers the ARM debugger, so that debugger.New accepts an
// ARM engine once this package is imported.
package arm

import (
	"github.com/wnxd/microstub/debugger"
	"github.com/wnxd/microstub/emulator"
	internal "github.com/wnxd/microstub/internal/debugger/arm"
)

var _ = debugger.Register(emulator.ARCH_ARM, internal.NewArmDebugger)
