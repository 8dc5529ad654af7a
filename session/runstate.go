package session

import (
	"github.com/ks888/fetctl/probe"
	"github.com/ks888/fetctl/status"
)

// Run starts the device. FreeRun ignores the breakpoints, RunToBreakpoint honors them and
// SingleStep executes one instruction. The JTAG control is released if releaseControl is true.
func (s *Session) Run(mode probe.RunMode, releaseControl bool) error {
	if !mode.Valid() {
		return status.Newf("Run", status.ParameterErr, "invalid run mode: %d", int32(mode))
	}

	args := probe.RunArgs{Mode: mode, Release: probe.Bool(releaseControl)}
	if err := s.Call(probe.OpRun, probe.Encode(args)); err != nil {
		return err
	}
	if mode != probe.SingleStep {
		s.noteState(probe.Running)
	}
	return nil
}

// State polls the run state and the elapsed cycles. If requestStop is true and the device is running,
// the device is stopped before the state is sampled. Polling without requestStop doesn't change the state.
func (s *Session) State(requestStop bool) (probe.RunState, uint64, error) {
	var reply probe.StateReply
	args := probe.StateArgs{Stop: probe.Bool(requestStop)}
	if err := s.Call(probe.OpState, probe.Encode(args), &reply); err != nil {
		return 0, 0, err
	}

	s.noteState(reply.State)
	return reply.State, reply.Cycles, nil
}

// Halt stops the device and returns the halted state.
func (s *Session) Halt() (probe.RunState, uint64, error) {
	return s.State(true)
}

// LastState returns the state sampled last.
func (s *Session) LastState() probe.RunState {
	return probe.RunState(s.lastState.Load())
}

func (s *Session) noteState(state probe.RunState) {
	prev := probe.RunState(s.lastState.Swap(int32(state)))
	if prev != state {
		s.log.Debugf("state %s -> %s", prev, state)
	}
}
