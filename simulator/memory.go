package simulator

import (
	"sync"

	"github.com/simonvetter/modbus"
)

// MemoryMap is the register store behind the simulated device. Every
// class holds Size addresses starting at 0; requests outside that range
// get an illegal-data-address exception.
type MemoryMap struct {
	mu       sync.RWMutex
	coils    []bool
	discrete []bool
	input    []uint16
	holding  []uint16
}

// NewMemoryMap allocates size addresses per register class, all zero.
func NewMemoryMap(size int) *MemoryMap {
	return &MemoryMap{
		coils:    make([]bool, size),
		discrete: make([]bool, size),
		input:    make([]uint16, size),
		holding:  make([]uint16, size),
	}
}

// Size returns the number of addresses per class.
func (m *MemoryMap) Size() int { return len(m.holding) }

// HoldingReg returns a holding register.
func (m *MemoryMap) HoldingReg(addr uint16) (uint16, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if int(addr) >= len(m.holding) {
		return 0, false
	}
	return m.holding[addr], true
}

// update runs fn with the write lock held.
func (m *MemoryMap) update(fn func(coils, discrete []bool, holding, input []uint16)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m.coils, m.discrete, m.holding, m.input)
}

func inRange(addr, qty uint16, size int) bool {
	return qty > 0 && int(addr)+int(qty) <= size
}

func readBits(src []bool, addr, qty uint16) []bool {
	out := make([]bool, qty)
	copy(out, src[addr:int(addr)+int(qty)])
	return out
}

func readRegs(src []uint16, addr, qty uint16) []uint16 {
	out := make([]uint16, qty)
	copy(out, src[addr:int(addr)+int(qty)])
	return out
}

// HandleCoils serves coil reads and writes.
func (m *MemoryMap) HandleCoils(req *modbus.CoilsRequest) ([]bool, error) {
	if req.IsWrite {
		m.mu.Lock()
		defer m.mu.Unlock()
		if !inRange(req.Addr, req.Quantity, len(m.coils)) {
			return nil, modbus.ErrIllegalDataAddress
		}
		copy(m.coils[req.Addr:], req.Args)
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !inRange(req.Addr, req.Quantity, len(m.coils)) {
		return nil, modbus.ErrIllegalDataAddress
	}
	return readBits(m.coils, req.Addr, req.Quantity), nil
}

// HandleDiscreteInputs serves discrete input reads.
func (m *MemoryMap) HandleDiscreteInputs(req *modbus.DiscreteInputsRequest) ([]bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !inRange(req.Addr, req.Quantity, len(m.discrete)) {
		return nil, modbus.ErrIllegalDataAddress
	}
	return readBits(m.discrete, req.Addr, req.Quantity), nil
}

// HandleHoldingRegisters serves holding register reads and writes.
func (m *MemoryMap) HandleHoldingRegisters(req *modbus.HoldingRegistersRequest) ([]uint16, error) {
	if req.IsWrite {
		m.mu.Lock()
		defer m.mu.Unlock()
		if !inRange(req.Addr, req.Quantity, len(m.holding)) {
			return nil, modbus.ErrIllegalDataAddress
		}
		copy(m.holding[req.Addr:], req.Args)
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !inRange(req.Addr, req.Quantity, len(m.holding)) {
		return nil, modbus.ErrIllegalDataAddress
	}
	return readRegs(m.holding, req.Addr, req.Quantity), nil
}

// HandleInputRegisters serves input register reads.
func (m *MemoryMap) HandleInputRegisters(req *modbus.InputRegistersRequest) ([]uint16, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !inRange(req.Addr, req.Quantity, len(m.input)) {
		return nil, modbus.ErrIllegalDataAddress
	}
	return readRegs(m.input, req.Addr, req.Quantity), nil
}
