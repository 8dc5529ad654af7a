package eem

import (
	"github.com/ks888/fetctl/probe"
	"github.com/ks888/fetctl/status"
)

// SequencerControl programs the 4-state sequencer. The sequencer refers to the handles of the breakpoint manager,
// so those handles can't be cleared while the sequencer is programmed.
//
// Enabling the sequencer whose state is reachable only through the disabled edges is accepted.
// The sequencer just never advances past that state.
type SequencerControl struct {
	conn Conn
	bps  *Breakpoints

	// guarded by bps.mu
	gen        uint64
	programmed *probe.Sequencer
}

// NewSequencerControl returns the sequencer control which validates the handles against bps.
func NewSequencerControl(conn Conn, bps *Breakpoints) *SequencerControl {
	s := &SequencerControl{conn: conn, bps: bps, gen: conn.Generation()}

	bps.mu.Lock()
	bps.seqUses = s.uses
	bps.mu.Unlock()
	return s
}

func (s *SequencerControl) sync() {
	s.bps.sync()
	if s.gen != s.bps.gen {
		s.gen = s.bps.gen
		s.programmed = nil
	}
}

// Set programs the sequencer. The next states must be within 0-3 and the handles must be live.
func (s *SequencerControl) Set(seq probe.Sequencer) error {
	if err := seq.Validate(); err != nil {
		return parameterError("SetSequencer", "%v", err)
	}

	desc, err := s.conn.Device()
	if err != nil {
		return err
	}
	if !desc.Sequencer {
		return status.New("SetSequencer", status.SequencerErr)
	}
	if (seq.Action == probe.BpActionStorage || seq.Action == probe.BpActionBreakAndStorage) && !desc.StateStorage {
		return status.New("SetSequencer", status.StateStorErr)
	}

	s.bps.mu.Lock()
	defer s.bps.mu.Unlock()
	s.sync()

	for _, h := range seq.Handles() {
		if !s.bps.exists(h) {
			return parameterError("SetSequencer", "handle %d is not live", h)
		}
	}

	if err := s.conn.Call(probe.OpSetSequencer, probe.Encode(seq)); err != nil {
		return err
	}
	if seq.Control == probe.SeqDisable && len(seq.Handles()) == 0 {
		s.programmed = nil
	} else {
		programmed := seq
		s.programmed = &programmed
	}
	return nil
}

// Disable disables the sequencer and releases the handles it refers to.
func (s *SequencerControl) Disable() error {
	return s.Set(probe.Sequencer{Control: probe.SeqDisable})
}

// Get reads back the programming of the sequencer.
func (s *SequencerControl) Get() (probe.Sequencer, error) {
	var seq probe.Sequencer
	if err := s.conn.Call(probe.OpGetSequencer, nil, &seq); err != nil {
		return probe.Sequencer{}, err
	}
	return seq, nil
}

// ReadState returns the current state. It fails with SeqEnableErr if the sequencer is disabled.
func (s *SequencerControl) ReadState() (probe.SeqState, error) {
	var reply probe.SeqStateReply
	if err := s.conn.Call(probe.OpReadSequencerState, nil, &reply); err != nil {
		return 0, err
	}
	return reply.State, nil
}

// uses is called with bps.mu held.
func (s *SequencerControl) uses(h probe.Handle) bool {
	s.sync()
	if s.programmed == nil {
		return false
	}
	for _, used := range s.programmed.Handles() {
		if used == h {
			return true
		}
	}
	return false
}
