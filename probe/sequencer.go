package probe

import "fmt"

// Limits of the sequencer.
const (
	// MaxSeqTrigger is the number of the transition edges per state.
	MaxSeqTrigger = 4
	// MaxSeqState is the number of the states.
	MaxSeqState = 4
)

// SeqControl enables or disables the sequencer.
type SeqControl int32

// The list of sequencer controls.
const (
	SeqDisable SeqControl = iota
	SeqEnable
)

// Valid returns true if the control is known.
func (c SeqControl) Valid() bool {
	return c == SeqDisable || c == SeqEnable
}

// SeqState is the state of the sequencer.
type SeqState int32

// The list of sequencer states.
const (
	SeqState0 SeqState = iota
	SeqState1
	SeqState2
	SeqState3
)

// Valid returns true if the state is one of the 4 states.
func (s SeqState) Valid() bool {
	return s >= SeqState0 && s <= SeqState3
}

func (s SeqState) String() string {
	return fmt.Sprintf("State%d", int32(s))
}

// Sequencer is the programming of the 4-state machine. Each state has two edges, X and Y.
// The edge is disabled if its handle is 0.
type Sequencer struct {
	Control     SeqControl
	ResetHandle Handle
	Action      BpAction
	NextX       [MaxSeqState]SeqState
	HandleX     [MaxSeqState]Handle
	NextY       [MaxSeqState]SeqState
	HandleY     [MaxSeqState]Handle
}

// Validate checks the enum-valued fields, including the next states.
func (s Sequencer) Validate() error {
	fields := []enumField{
		{"Control", int64(s.Control), s.Control.Valid()},
		{"Action", int64(s.Action), s.Action.Valid()},
	}
	for i := 0; i < MaxSeqState; i++ {
		fields = append(fields,
			enumField{fmt.Sprintf("NextX[%d]", i), int64(s.NextX[i]), s.NextX[i].Valid()},
			enumField{fmt.Sprintf("NextY[%d]", i), int64(s.NextY[i]), s.NextY[i].Valid()},
		)
	}
	return checkFields("Sequencer", fields...)
}

// Handles returns the non-zero handles the sequencer refers to, including the reset handle.
func (s Sequencer) Handles() []Handle {
	var handles []Handle
	for _, h := range append(append([]Handle{s.ResetHandle}, s.HandleX[:]...), s.HandleY[:]...) {
		if h != 0 {
			handles = append(handles, h)
		}
	}
	return handles
}

// Next returns the next state when the handle triggers at the state. It returns the same state if no edge matches.
func (s Sequencer) Next(state SeqState, h Handle) SeqState {
	if !state.Valid() || h == 0 {
		return state
	}
	if s.HandleX[state] == h {
		return s.NextX[state]
	}
	if s.HandleY[state] == h {
		return s.NextY[state]
	}
	return state
}

// SeqStateReply is the reply of OpReadSequencerState.
type SeqStateReply struct {
	State SeqState
}

// Validate checks the state.
func (r SeqStateReply) Validate() error {
	return checkFields("SeqStateReply", enumField{"State", int64(r.State), r.State.Valid()})
}
