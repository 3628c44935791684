// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package host

import "github.com/beevik/mini6502/cpu"

// The debugHandler stops a running or stepping host when the cpu debugger
// reports a breakpoint. Hits reported while the host is processing
// commands are ignored.
type debugHandler struct {
	host *Host
}

func newDebugHandler(h *Host) *debugHandler {
	return &debugHandler{host: h}
}

func (d *debugHandler) OnBreakpoint(c *cpu.CPU, b *cpu.Breakpoint) {
	d.stop("Breakpoint hit at $%04X.\n", b.Address)
}

func (d *debugHandler) OnDataBreakpoint(c *cpu.CPU, b *cpu.DataBreakpoint) {
	if b.Conditional {
		d.stop("Data breakpoint hit on address $%04X (value $%02X).\n", b.Address, b.Value)
		return
	}
	d.stop("Data breakpoint hit on address $%04X.\n", b.Address)
}

func (d *debugHandler) stop(format string, args ...any) {
	h := d.host
	if h.state != stateRunning {
		return
	}
	h.state = stateBreakpoint
	h.printf(format, args...)
}
