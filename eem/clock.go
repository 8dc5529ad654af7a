package eem

import (
	"github.com/ks888/fetctl/probe"
	"github.com/ks888/fetctl/status"
)

// ClockControlManager controls which clocks stop while the CPU is halted. The device's clock control level limits
// the settings: the module clocks are honored only by the extended level.
type ClockControlManager struct {
	conn Conn
}

// NewClockControl returns new ClockControlManager.
func NewClockControl(conn Conn) *ClockControlManager {
	return &ClockControlManager{conn: conn}
}

func (c *ClockControlManager) level(op string) (probe.ClockControlLevel, error) {
	desc, err := c.conn.Device()
	if err != nil {
		return 0, err
	}
	if desc.ClockControl == probe.GCCNone {
		return 0, status.New(op, status.ClkCtrlErr)
	}
	return desc.ClockControl, nil
}

// Set applies the clock settings.
func (c *ClockControlManager) Set(clock probe.ClockControl) error {
	if err := clock.Validate(); err != nil {
		return parameterError("SetClockControl", "%v", err)
	}
	level, err := c.level("SetClockControl")
	if err != nil {
		return err
	}
	if !clock.Supports(level) {
		return parameterError("SetClockControl", "%s clock control doesn't support modules %#x, general clocks %#x",
			level, uint16(clock.Modules), uint16(clock.General))
	}
	return c.conn.Call(probe.OpSetClockControl, probe.Encode(clock))
}

// Get reads back the clock settings.
func (c *ClockControlManager) Get() (probe.ClockControl, error) {
	if _, err := c.level("GetClockControl"); err != nil {
		return probe.ClockControl{}, err
	}

	var clock probe.ClockControl
	if err := c.conn.Call(probe.OpGetClockControl, nil, &clock); err != nil {
		return probe.ClockControl{}, err
	}
	return clock, nil
}
