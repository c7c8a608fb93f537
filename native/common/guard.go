package common

import "errors"

// ErrModulePaused is returned when a module has been halted by the operator
// circuit breaker. It is distinct from the pool-level lock, which is part of
// pool state itself.
var ErrModulePaused = errors.New("module paused")

// PauseView reports whether a named module is currently halted.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects the operation when the supplied pause view marks the module as
// halted. A nil view or empty module name disables the check.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}
