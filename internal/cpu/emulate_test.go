package cpu

import (
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/rvhv/internal/hv"
)

func newTestContext(t *testing.T) *hv.Context {
	t.Helper()
	mem := make([]byte, 0x1000)
	return &hv.Context{
		Memory:   hv.GuestMemory{Base: 0x80000000, Data: mem},
		RealSepc: 0x80000000,
	}
}

func encodeCSR(funct3, csr, rs1, rd uint32) uint32 {
	return (csr << 20) | (rs1 << 15) | (funct3 << 12) | (rd << 7) | systemOpcode
}

func writeInsn(ctx *hv.Context, addr uint64, insn uint32) {
	b, _ := ctx.Memory.Slice(addr, 4)
	b[0] = byte(insn)
	b[1] = byte(insn >> 8)
	b[2] = byte(insn >> 16)
	b[3] = byte(insn >> 24)
}

func TestCSRRSWithZeroMaskIsReadOnly(t *testing.T) {
	ctx := newTestContext(t)
	ctx.CSRs.Sepc = 0x80000000
	ctx.CSRs.Scause = 0xdead
	writeInsn(ctx, ctx.RealSepc, encodeCSR(0b010, csrScause, 0, 5)) // CSRRS x5, scause, x0

	require.NoError(t, Emulate(ctx))
	require.Equal(t, uint64(0xdead), ctx.CSRs.Scause)
	require.Equal(t, uint64(0xdead), ctx.GetRegister(5))
}

func TestCSRRCWithZeroMaskIsReadOnly(t *testing.T) {
	ctx := newTestContext(t)
	ctx.CSRs.Stval = 0x1234
	writeInsn(ctx, ctx.RealSepc, encodeCSR(0b011, csrStval, 0, 6)) // CSRRC x6, stval, x0

	require.NoError(t, Emulate(ctx))
	require.Equal(t, uint64(0x1234), ctx.CSRs.Stval)
	require.Equal(t, uint64(0x1234), ctx.GetRegister(6))
}

func TestCSRRWRoundTrip(t *testing.T) {
	ctx := newTestContext(t)
	ctx.CSRs.Stvec = 0x8020_0000
	ctx.SetRegister(7, 0x8030_0000)

	writeInsn(ctx, ctx.RealSepc, encodeCSR(0b001, csrStvec, 7, 8)) // CSRRW x8, stvec, x7
	require.NoError(t, Emulate(ctx))
	require.Equal(t, uint64(0x8020_0000), ctx.GetRegister(8))
	require.Equal(t, uint64(0x8030_0000), ctx.CSRs.Stvec)

	ctx.SetRegister(7, ctx.GetRegister(8))
	writeInsn(ctx, ctx.RealSepc, encodeCSR(0b001, csrStvec, 7, 9)) // CSRRW x9, stvec, x7
	require.NoError(t, Emulate(ctx))
	require.Equal(t, uint64(0x8020_0000), ctx.CSRs.Stvec)
}

func TestSRETRoundTrip(t *testing.T) {
	ctx := newTestContext(t)
	ctx.CSRs.Sstatus = hv.StatusSPP | hv.StatusSPIE
	ctx.CSRs.Sepc = 0x8010_0000
	ctx.RealSepc = 0x8000_0100

	writeInsn(ctx, ctx.RealSepc, 0x10200073) // sret

	require.NoError(t, Emulate(ctx))
	require.True(t, ctx.SMode)
	require.NotZero(t, ctx.CSRs.Sstatus&hv.StatusSIE)
	require.NotZero(t, ctx.CSRs.Sstatus&hv.StatusSPIE)
	require.Zero(t, ctx.CSRs.Sstatus&hv.StatusSPP)
	require.Equal(t, uint64(0x8010_0000), ctx.RealSepc)
}

func TestSstatusWriteMasked(t *testing.T) {
	ctx := newTestContext(t)
	ctx.SetRegister(7, ^uint64(0))
	writeInsn(ctx, ctx.RealSepc, encodeCSR(0b001, csrSstatus, 7, 0)) // CSRRW x0, sstatus, x7

	require.NoError(t, Emulate(ctx))
	require.Equal(t, hv.StatusWritableMask, ctx.CSRs.Sstatus)
}

func TestUnrecognizedInstructionForwards(t *testing.T) {
	ctx := newTestContext(t)
	writeInsn(ctx, ctx.RealSepc, 0x00000013) // addi x0, x0, 0 (not a SYSTEM opcode)

	err := Emulate(ctx)
	require.ErrorAs(t, err, &Forwarded{})
}
