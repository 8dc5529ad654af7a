package eem

import (
	"sync"

	"github.com/ks888/fetctl/probe"
	"github.com/ks888/fetctl/status"
)

// Counters manages the cycle counters. The mode must be set before the first configuration.
// Writing or resetting the counting counter is allowed and takes effect on the next clock edge.
type Counters struct {
	conn Conn

	mu         sync.Mutex
	gen        uint64
	mode       probe.CounterMode
	modeSet    bool
	configured bool
}

// NewCounters returns new Counters.
func NewCounters(conn Conn) *Counters {
	return &Counters{conn: conn, gen: conn.Generation()}
}

func (c *Counters) sync() {
	if gen := c.conn.Generation(); gen != c.gen {
		c.gen = gen
		c.mode, c.modeSet, c.configured = probe.CounterBasic, false, false
	}
}

// SetMode sets the mode of the counters.
func (c *Counters) SetMode(mode probe.CounterMode) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sync()

	if !mode.Valid() {
		return parameterError("SetCycleCounterMode", "invalid mode: %d", int32(mode))
	}
	if c.configured {
		return parameterError("SetCycleCounterMode", "mode must be set before the first configuration")
	}
	if _, err := c.count("SetCycleCounterMode"); err != nil {
		return err
	}

	if err := c.conn.Call(probe.OpSetCycleCounterMode, probe.Encode(probe.CounterModeArgs{Mode: mode})); err != nil {
		return err
	}
	c.mode, c.modeSet = mode, true
	return nil
}

// Mode returns the mode. ok is false if the mode is not set yet.
func (c *Counters) Mode() (mode probe.CounterMode, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sync()
	return c.mode, c.modeSet
}

// Configure configures the counter. The counter 0 is not configurable in the basic mode.
func (c *Counters) Configure(index int, config probe.CounterConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sync()

	if !c.modeSet {
		return parameterError("ConfigureCycleCounter", "mode is not set")
	}
	if err := c.checkIndex("ConfigureCycleCounter", index); err != nil {
		return err
	}
	if c.mode == probe.CounterBasic && index == 0 {
		return parameterError("ConfigureCycleCounter", "counter 0 is not configurable in the basic mode")
	}
	if err := config.Validate(); err != nil {
		return parameterError("ConfigureCycleCounter", "%v", err)
	}

	args := probe.ConfigureCounterArgs{Index: uint32(index), Config: config}
	if err := c.conn.Call(probe.OpConfigureCycleCounter, probe.Encode(args)); err != nil {
		return err
	}
	c.configured = true
	return nil
}

// Read returns the value of the counter.
func (c *Counters) Read(index int) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sync()

	if err := c.checkIndex("ReadCycleCounterValue", index); err != nil {
		return 0, err
	}
	var reply probe.CounterValueArgs
	if err := c.conn.Call(probe.OpReadCycleCounterValue, probe.Encode(probe.CounterArgs{Index: uint32(index)}), &reply); err != nil {
		return 0, err
	}
	return reply.Value, nil
}

// Write sets the value of the counter.
func (c *Counters) Write(index int, value uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sync()

	if err := c.checkIndex("WriteCycleCounterValue", index); err != nil {
		return err
	}
	return c.conn.Call(probe.OpWriteCycleCounterValue, probe.Encode(probe.CounterValueArgs{Index: uint32(index), Value: value}))
}

// Reset clears the counter.
func (c *Counters) Reset(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sync()

	if err := c.checkIndex("ResetCycleCounter", index); err != nil {
		return err
	}
	return c.conn.Call(probe.OpResetCycleCounter, probe.Encode(probe.CounterArgs{Index: uint32(index)}))
}

func (c *Counters) count(op string) (int, error) {
	desc, err := c.conn.Device()
	if err != nil {
		return 0, err
	}
	if desc.CycleCounters == 0 {
		return 0, status.Newf(op, status.ParameterErr, "device has no cycle counter")
	}
	return desc.CycleCounters, nil
}

func (c *Counters) checkIndex(op string, index int) error {
	n, err := c.count(op)
	if err != nil {
		return err
	}
	if index < 0 || index >= n {
		return parameterError(op, "counter index %d out of range [0, %d)", index, n)
	}
	return nil
}
