package cpu_test

import (
	"errors"
	"testing"

	"github.com/beevik/mini6502/cpu"
)

func loadCPU(t *testing.T, program []byte) *cpu.CPU {
	t.Helper()
	mem := cpu.NewFlatMemory()
	c := cpu.NewCPU(mem)
	if err := c.Load(program); err != nil {
		t.Fatal(err)
	}
	return c
}

func stepCPU(c *cpu.CPU, steps int) {
	for i := 0; i < steps; i++ {
		c.Step()
	}
}

func runCPU(t *testing.T, program []byte) *cpu.CPU {
	t.Helper()
	c := loadCPU(t, program)
	for i := 0; i < 10000 && c.State() == cpu.Running; i++ {
		c.Step()
	}
	if c.State() == cpu.Running {
		t.Fatalf("program did not terminate")
	}
	return c
}

func expectState(t *testing.T, c *cpu.CPU, s cpu.State) {
	t.Helper()
	if c.State() != s {
		t.Errorf("State incorrect. exp: %v, got: %v (fault: %v)", s, c.State(), c.Fault())
	}
}

func expectPC(t *testing.T, c *cpu.CPU, pc uint16) {
	t.Helper()
	if got := c.Registers().PC; got != pc {
		t.Errorf("PC incorrect. exp: $%04X, got: $%04X", pc, got)
	}
}

func expectACC(t *testing.T, c *cpu.CPU, acc byte) {
	t.Helper()
	if got := c.Registers().A; got != acc {
		t.Errorf("Accumulator incorrect. exp: $%02X, got: $%02X", acc, got)
	}
}

func expectX(t *testing.T, c *cpu.CPU, x byte) {
	t.Helper()
	if got := c.Registers().X; got != x {
		t.Errorf("X register incorrect. exp: $%02X, got: $%02X", x, got)
	}
}

func expectY(t *testing.T, c *cpu.CPU, y byte) {
	t.Helper()
	if got := c.Registers().Y; got != y {
		t.Errorf("Y register incorrect. exp: $%02X, got: $%02X", y, got)
	}
}

func expectFlag(t *testing.T, c *cpu.CPU, f cpu.Status, on bool) {
	t.Helper()
	if got := c.Status().IsSet(f); got != on {
		t.Errorf("Flag $%02X incorrect. exp: %v, got: %v", byte(f), on, got)
	}
}

func expectMem(t *testing.T, c *cpu.CPU, addr uint16, v byte) {
	t.Helper()
	got := c.Mem.LoadByte(addr)
	if got != v {
		t.Errorf("Memory at $%04X incorrect. exp: $%02X, got: $%02X", addr, v, got)
	}
}

func TestEndToEnd(t *testing.T) {
	c := loadCPU(t, []byte{
		0xa9, 0x01, // LDA #$01
		0x69, 0xff, // ADC #$FF
		0x69, 0x01, // ADC #$01
		0x00,       // BRK
	})

	stepCPU(c, 2)
	expectACC(t, c, 0x00)
	expectFlag(t, c, cpu.Carry, true)
	expectFlag(t, c, cpu.Zero, true)

	state, err := c.Run()
	if state != cpu.Halted || err != nil {
		t.Fatalf("Run incorrect. exp: Halted, got: %v (%v)", state, err)
	}
	expectACC(t, c, 0x02)
	expectFlag(t, c, cpu.Carry, false)
	expectPC(t, c, 0x8007)
	if c.Steps() != 4 {
		t.Errorf("Steps incorrect. exp: 4, got: %d", c.Steps())
	}
}

func TestAccumulator(t *testing.T) {
	c := runCPU(t, []byte{
		0xa9, 0x5e,       // LDA #$5E
		0x85, 0x15,       // STA $15
		0x8d, 0x00, 0x15, // STA $1500
		0x00,
	})

	expectState(t, c, cpu.Halted)
	expectPC(t, c, 0x8008)
	expectACC(t, c, 0x5e)
	expectMem(t, c, 0x15, 0x5e)
	expectMem(t, c, 0x1500, 0x5e)
}

func TestZeroNegativeFlags(t *testing.T) {
	for v := 0; v < 256; v++ {
		c := runCPU(t, []byte{0xa9, byte(v), 0x00})
		expectFlag(t, c, cpu.Zero, v == 0)
		expectFlag(t, c, cpu.Negative, v&0x80 != 0)
	}
}

func TestIndexWrap(t *testing.T) {
	c := runCPU(t, []byte{
		0xa2, 0xff, // LDX #$FF
		0xe8,       // INX
		0x00,
	})
	expectX(t, c, 0x00)
	expectFlag(t, c, cpu.Zero, true)
	expectFlag(t, c, cpu.Negative, false)

	c = runCPU(t, []byte{
		0xa0, 0x7f, // LDY #$7F
		0xc8,       // INY
		0x00,
	})
	expectY(t, c, 0x80)
	expectFlag(t, c, cpu.Zero, false)
	expectFlag(t, c, cpu.Negative, true)
}

func TestTransfer(t *testing.T) {
	c := runCPU(t, []byte{
		0xa9, 0x80, // LDA #$80
		0xaa,       // TAX
		0xa8,       // TAY
		0xa9, 0x00, // LDA #$00
		0x8a,       // TXA
		0x00,
	})
	expectX(t, c, 0x80)
	expectY(t, c, 0x80)
	expectACC(t, c, 0x80)
	expectFlag(t, c, cpu.Negative, true)

	c = runCPU(t, []byte{
		0xa9, 0x00, // LDA #$00
		0xa8,       // TAY
		0xa9, 0x12, // LDA #$12
		0x98,       // TYA
		0x00,
	})
	expectACC(t, c, 0x00)
	expectFlag(t, c, cpu.Zero, true)
}

func TestADC(t *testing.T) {
	tests := []struct {
		acc, add    byte
		carryIn     bool
		result      byte
		c, z, v, n  bool
		description string
	}{
		{0x01, 0xff, false, 0x00, true, true, false, false, "unsigned carry out"},
		{0x00, 0x01, true, 0x02, false, false, false, false, "carry in"},
		{0x7f, 0x01, false, 0x80, false, false, true, true, "positive overflow"},
		{0x80, 0xff, false, 0x7f, true, false, true, false, "negative overflow"},
		{0x80, 0x80, false, 0x00, true, true, true, false, "negative overflow to zero"},
		{0x50, 0x50, false, 0xa0, false, false, true, true, "sum of positives"},
		{0x50, 0xd0, false, 0x20, true, false, false, false, "mixed signs"},
		{0x7f, 0x00, true, 0x80, false, false, true, true, "overflow from carry alone"},
		{0xff, 0xff, true, 0xff, true, false, false, true, "all ones"},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			program := []byte{0x18} // CLC
			if tt.carryIn {
				program[0] = 0x38 // SEC
			}
			program = append(program, 0xa9, tt.acc, 0x69, tt.add, 0x00)

			c := runCPU(t, program)
			expectACC(t, c, tt.result)
			expectFlag(t, c, cpu.Carry, tt.c)
			expectFlag(t, c, cpu.Zero, tt.z)
			expectFlag(t, c, cpu.Overflow, tt.v)
			expectFlag(t, c, cpu.Negative, tt.n)
		})
	}
}

func TestAND(t *testing.T) {
	c := runCPU(t, []byte{
		0xa9, 0xf0, // LDA #$F0
		0x29, 0x0f, // AND #$0F
		0x00,
	})
	expectACC(t, c, 0x00)
	expectFlag(t, c, cpu.Zero, true)

	mem := cpu.NewFlatMemory()
	mem.StoreByte(0x40, 0xc3)
	c = cpu.NewCPU(mem)
	if err := c.Load([]byte{
		0xa9, 0x81, // LDA #$81
		0x25, 0x40, // AND $40
		0x00,
	}); err != nil {
		t.Fatal(err)
	}
	c.Run()
	expectACC(t, c, 0x81)
	expectFlag(t, c, cpu.Negative, true)
}

func TestASL(t *testing.T) {
	c := runCPU(t, []byte{
		0xa9, 0x81, // LDA #$81
		0x0a,       // ASL A
		0x00,
	})
	expectACC(t, c, 0x02)
	expectFlag(t, c, cpu.Carry, true)
	expectFlag(t, c, cpu.Zero, false)
	expectFlag(t, c, cpu.Negative, false)

	c = runCPU(t, []byte{
		0xa9, 0x40, // LDA #$40
		0x85, 0x10, // STA $10
		0x06, 0x10, // ASL $10
		0x00,
	})
	expectMem(t, c, 0x10, 0x80)
	expectACC(t, c, 0x40)
	expectFlag(t, c, cpu.Carry, false)
	expectFlag(t, c, cpu.Negative, true)

	c = runCPU(t, []byte{
		0xa9, 0x80,       // LDA #$80
		0x8d, 0x34, 0x12, // STA $1234
		0x0e, 0x34, 0x12, // ASL $1234
		0x00,
	})
	expectMem(t, c, 0x1234, 0x00)
	expectFlag(t, c, cpu.Carry, true)
	expectFlag(t, c, cpu.Zero, true)
}

func TestBranchLoop(t *testing.T) {
	c := runCPU(t, []byte{
		0xa2, 0x05, // $8000 LDX #$05
		0xa9, 0x00, // $8002 LDA #$00
		0x18,       // $8004 CLC
		0x69, 0x03, // $8005 ADC #$03
		0xca,       // $8007 DEX
		0xd0, 0xfb, // $8008 BNE $8005
		0x00,       // $800A BRK
	})
	expectState(t, c, cpu.Halted)
	expectACC(t, c, 15)
	expectX(t, c, 0)
	expectPC(t, c, 0x800b)
}

func TestBranchCarry(t *testing.T) {
	c := runCPU(t, []byte{
		0x38,       // SEC
		0xb0, 0x02, // BCS +2
		0xa9, 0x11, // LDA #$11 (skipped)
		0x90, 0x02, // BCC +2 (not taken)
		0xa9, 0x22, // LDA #$22
		0x00,
	})
	expectACC(t, c, 0x22)

	c = runCPU(t, []byte{
		0xa9, 0x7f, // LDA #$7F
		0x69, 0x01, // ADC #$01
		0x70, 0x02, // BVS +2
		0xa9, 0x00, // LDA #$00 (skipped)
		0x30, 0x02, // BMI +2
		0xa9, 0x00, // LDA #$00 (skipped)
		0xb8,       // CLV
		0x50, 0x02, // BVC +2
		0xa9, 0x00, // LDA #$00 (skipped)
		0x00,
	})
	expectACC(t, c, 0x80)
	expectFlag(t, c, cpu.Overflow, false)
}

func TestBranchZero(t *testing.T) {
	c := runCPU(t, []byte{
		0xa9, 0x00, // LDA #$00
		0xf0, 0x02, // BEQ +2
		0xa2, 0x01, // LDX #$01 (skipped)
		0x10, 0x02, // BPL +2
		0xa2, 0x02, // LDX #$02 (skipped)
		0xa0, 0x03, // LDY #$03
		0x00,
	})
	expectX(t, c, 0x00)
	expectY(t, c, 0x03)
}

func TestJump(t *testing.T) {
	mem := cpu.NewFlatMemory()
	mem.StoreAddress(0x0200, 0x9000)
	if err := mem.StoreBytes(0x9000, []byte{0xa9, 0x33, 0x00}); err != nil {
		t.Fatal(err)
	}
	c := cpu.NewCPU(mem)
	if err := c.Load([]byte{
		0x4c, 0x05, 0x80, // JMP $8005
		0xa9, 0x11,       // LDA #$11 (skipped)
		0x6c, 0x00, 0x02, // JMP ($0200)
	}); err != nil {
		t.Fatal(err)
	}

	state, err := c.Run()
	if state != cpu.Halted || err != nil {
		t.Fatalf("Run incorrect. exp: Halted, got: %v (%v)", state, err)
	}
	expectACC(t, c, 0x33)
	expectPC(t, c, 0x9003)
}

func TestIndirect(t *testing.T) {
	c := runCPU(t, []byte{
		0xa2, 0x80,       // LDX #$80
		0xa0, 0x40,       // LDY #$40
		0xa9, 0xee,       // LDA #$EE
		0x9d, 0x00, 0x20, // STA $2000,X
		0x99, 0x00, 0x20, // STA $2000,Y

		0xa9, 0x11, // LDA #$11
		0x85, 0x06, // STA $06
		0xa9, 0x05, // LDA #$05
		0x85, 0x07, // STA $07
		0xa2, 0x01, // LDX #$01
		0xa0, 0x01, // LDY #$01
		0xa9, 0xbb, // LDA #$BB
		0x81, 0x05, // STA ($05,X)
		0x91, 0x06, // STA ($06),Y
		0x00,
	})

	expectMem(t, c, 0x2080, 0xee)
	expectMem(t, c, 0x2040, 0xee)
	expectMem(t, c, 0x0511, 0xbb)
	expectMem(t, c, 0x0512, 0xbb)
}

func TestZeroPageWrap(t *testing.T) {
	mem := cpu.NewFlatMemory()
	mem.StoreByte(0x0000, 0x42)
	mem.StoreByte(0x0100, 0x99)
	c := cpu.NewCPU(mem)
	if err := c.Load([]byte{
		0xa2, 0x01, // LDX #$01
		0xb5, 0xff, // LDA $FF,X
		0xa0, 0x02, // LDY #$02
		0x96, 0xff, // STX $FF,Y
		0x94, 0xff, // STY $FF,X
		0x00,
	}); err != nil {
		t.Fatal(err)
	}
	c.Run()

	expectACC(t, c, 0x42)
	expectMem(t, c, 0x0001, 0x01)
	expectMem(t, c, 0x0000, 0x02)
	expectMem(t, c, 0x0100, 0x99)
}

func TestAbsoluteWrap(t *testing.T) {
	mem := cpu.NewFlatMemory()
	mem.StoreByte(0x0001, 0x5a)
	c := cpu.NewCPU(mem)
	if err := c.Load([]byte{
		0xa0, 0x02,       // LDY #$02
		0xb9, 0xff, 0xff, // LDA $FFFF,Y
		0x00,
	}); err != nil {
		t.Fatal(err)
	}
	c.Run()
	expectACC(t, c, 0x5a)
}

func TestStoreRegisters(t *testing.T) {
	c := runCPU(t, []byte{
		0xa2, 0x12,       // LDX #$12
		0xa0, 0x34,       // LDY #$34
		0x86, 0x20,       // STX $20
		0x84, 0x21,       // STY $21
		0x8e, 0x00, 0x30, // STX $3000
		0x8c, 0x01, 0x30, // STY $3001
		0xca,             // DEX
		0x88,             // DEY
		0x00,
	})
	expectMem(t, c, 0x20, 0x12)
	expectMem(t, c, 0x21, 0x34)
	expectMem(t, c, 0x3000, 0x12)
	expectMem(t, c, 0x3001, 0x34)
	expectX(t, c, 0x11)
	expectY(t, c, 0x33)
}

func TestInvalidInstruction(t *testing.T) {
	c := loadCPU(t, []byte{
		0xa9, 0x01, // LDA #$01
		0x02,       // illegal
		0xa9, 0x05, // LDA #$05
		0x00,
	})

	state, err := c.Run()
	if state != cpu.Faulted {
		t.Fatalf("State incorrect. exp: Faulted, got: %v", state)
	}
	if !errors.Is(err, cpu.ErrInvalidInstruction) {
		t.Errorf("Fault incorrect. exp: %v, got: %v", cpu.ErrInvalidInstruction, err)
	}
	var fault *cpu.Fault
	if !errors.As(err, &fault) || fault.PC != 0x8002 || fault.Opcode != 0x02 {
		t.Errorf("Fault details incorrect: %v", err)
	}
	expectACC(t, c, 0x01)

	// A faulted CPU stays faulted until reset.
	if c.Step() != cpu.Faulted {
		t.Error("Step after fault did not stay Faulted")
	}
	expectACC(t, c, 0x01)

	c.Reset()
	expectState(t, c, cpu.Running)
	expectPC(t, c, 0x8000)
	expectACC(t, c, 0x00)
	if c.Fault() != nil {
		t.Errorf("Reset did not clear fault: %v", c.Fault())
	}
}

func TestUnimplemented(t *testing.T) {
	c := loadCPU(t, []byte{
		0xa9, 0x01, // LDA #$01
		0xe9, 0x01, // SBC #$01
		0x00,
	})

	_, err := c.Run()
	if !errors.Is(err, cpu.ErrUnimplemented) {
		t.Errorf("Fault incorrect. exp: %v, got: %v", cpu.ErrUnimplemented, err)
	}
	if errors.Is(err, cpu.ErrInvalidInstruction) {
		t.Error("Unimplemented instruction reported as invalid")
	}
}

func TestHalt(t *testing.T) {
	c := loadCPU(t, []byte{0x00, 0xa9, 0x01})
	if c.Step() != cpu.Halted {
		t.Fatalf("BRK did not halt")
	}
	if c.Step() != cpu.Halted {
		t.Fatalf("Step after halt did not stay Halted")
	}
	expectACC(t, c, 0x00)
	expectPC(t, c, 0x8001)
	if c.Fault() != nil {
		t.Errorf("Halted CPU reports fault: %v", c.Fault())
	}
}

func TestReset(t *testing.T) {
	mem := cpu.NewFlatMemory()
	c := cpu.NewCPU(mem)
	expectPC(t, c, 0x0000)

	mem.StoreAddress(cpu.VectorReset, 0x1234)
	c.Reset()
	expectPC(t, c, 0x1234)
	expectState(t, c, cpu.Running)
	if c.Status() != 0 {
		t.Errorf("Status incorrect. exp: 0, got: %s", c.Status())
	}
}

func TestLoadOutOfBounds(t *testing.T) {
	c := cpu.NewCPU(cpu.NewFlatMemory())
	err := c.Load(make([]byte, 0x8001))
	if !errors.Is(err, cpu.ErrOutOfBounds) {
		t.Errorf("Load error incorrect. exp: %v, got: %v", cpu.ErrOutOfBounds, err)
	}
	expectPC(t, c, 0x0000)

	if err := c.Load(make([]byte, 0x8000)); err != nil {
		t.Errorf("Load of a full upper half failed: %v", err)
	}
}

func TestSnapshot(t *testing.T) {
	a := runCPU(t, []byte{0xa9, 0x10, 0x85, 0x20, 0x00})
	b := runCPU(t, []byte{0xa9, 0x10, 0x85, 0x20, 0x00})
	sa, sb := a.Snapshot(), b.Snapshot()
	if sa != sb {
		t.Errorf("Snapshots differ:\n%v\n%v", sa, sb)
	}

	c := runCPU(t, []byte{0xa9, 0x10, 0x85, 0x21, 0x00})
	if c.Snapshot().MemDigest == sa.MemDigest {
		t.Error("Memory digest did not change")
	}
}

type bpHandler struct {
	hits     []uint16
	dataHits []uint16
}

func (h *bpHandler) OnBreakpoint(c *cpu.CPU, b *cpu.Breakpoint) {
	h.hits = append(h.hits, b.Address)
}

func (h *bpHandler) OnDataBreakpoint(c *cpu.CPU, b *cpu.DataBreakpoint) {
	h.dataHits = append(h.dataHits, b.Address)
}

func TestDebugger(t *testing.T) {
	c := loadCPU(t, []byte{
		0xa9, 0x01, // $8000 LDA #$01
		0x85, 0x10, // $8002 STA $10
		0xa9, 0x02, // $8004 LDA #$02
		0x85, 0x10, // $8006 STA $10
		0x85, 0x11, // $8008 STA $11
		0x00,
	})

	h := &bpHandler{}
	d := cpu.NewDebugger(h)
	d.AddBreakpoint(0x8004)
	d.AddBreakpoint(0x8008).Disabled = true
	d.AddConditionalDataBreakpoint(0x10, 0x02)
	d.AddDataBreakpoint(0x11)
	c.AttachDebugger(d)

	c.Run()

	if len(h.hits) != 1 || h.hits[0] != 0x8004 {
		t.Errorf("Breakpoint hits incorrect: %v", h.hits)
	}
	if len(h.dataHits) != 2 || h.dataHits[0] != 0x10 || h.dataHits[1] != 0x11 {
		t.Errorf("Data breakpoint hits incorrect: %v", h.dataHits)
	}

	bps := d.GetBreakpoints()
	if len(bps) != 2 || bps[0].Address != 0x8004 || bps[1].Address != 0x8008 {
		t.Errorf("GetBreakpoints incorrect: %v", bps)
	}
	d.RemoveBreakpoint(0x8004)
	if d.GetBreakpoint(0x8004) != nil {
		t.Error("RemoveBreakpoint did not remove breakpoint")
	}

	c.DetachDebugger()
	c.Reset()
	c.Run()
	if len(h.hits) != 1 {
		t.Errorf("Detached debugger still notified: %v", h.hits)
	}
}

func TestDebuggerHalt(t *testing.T) {
	c := loadCPU(t, []byte{
		0xea, // $8000 NOP
		0x00, // $8001 BRK
	})

	h := &bpHandler{}
	d := cpu.NewDebugger(h)
	d.AddBreakpoint(0x8001)
	d.AddBreakpoint(0x8002)
	c.AttachDebugger(d)

	state, err := c.Run()
	if state != cpu.Halted || err != nil {
		t.Errorf("Run incorrect. exp: %v, got: %v (%v)", cpu.Halted, state, err)
	}
	if len(h.hits) != 2 || h.hits[0] != 0x8001 || h.hits[1] != 0x8002 {
		t.Errorf("Breakpoint hits incorrect: %v", h.hits)
	}
}
