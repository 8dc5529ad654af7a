package probe

import "fmt"

// EventType represents the type of the notification the probe sends.
type EventType int32

const (
	// EventFETConnectionLost event happens when the connection to the probe is lost.
	EventFETConnectionLost EventType = iota
	// EventDeviceConnectionLost event happens when the connection between the probe and the device is lost.
	EventDeviceConnectionLost
	// EventFETRestartNeeded event happens when the probe must be restarted.
	EventFETRestartNeeded
	// EventDeviceInLPM5 event happens when the device entered LPMx.5.
	EventDeviceInLPM5
	// EventDeviceWakeupLPM5 event happens when the device woke up from LPMx.5.
	EventDeviceWakeupLPM5
	// EventSingleStep event happens when the single step is complete.
	EventSingleStep
	// EventBreakpoint event happens when the device hit the breakpoint.
	EventBreakpoint
	// EventStorage event happens when the storage trigger stored the entry or the trace buffer became full.
	EventStorage
	// EventState event happens when the sequencer changed its state.
	EventState
	// EventWarning event happens when the probe or the host detected the advisory condition.
	EventWarning
	// EventCPUStopped event happens when the device CPU stopped.
	EventCPUStopped
	numEventTypes
)

var eventTypeNames = [...]string{
	EventFETConnectionLost:    "FETConnectionLost",
	EventDeviceConnectionLost: "DeviceConnectionLost",
	EventFETRestartNeeded:     "FETRestartNeeded",
	EventDeviceInLPM5:         "DeviceInLPM5",
	EventDeviceWakeupLPM5:     "DeviceWakeupLPM5",
	EventSingleStep:           "SingleStep",
	EventBreakpoint:           "Breakpoint",
	EventStorage:              "Storage",
	EventState:                "State",
	EventWarning:              "Warning",
	EventCPUStopped:           "CPUStopped",
}

// Valid returns true if the event type is known.
func (t EventType) Valid() bool {
	return t >= 0 && t < numEventTypes
}

func (t EventType) String() string {
	if !t.Valid() {
		return fmt.Sprintf("EventType(%d)", int32(t))
	}
	return eventTypeNames[t]
}

// IsConnectionLostEvent returns true if the event indicates the session state becomes unknown.
func IsConnectionLostEvent(event EventType) bool {
	return event == EventFETConnectionLost || event == EventDeviceConnectionLost || event == EventFETRestartNeeded
}

// WarningCode is the code of the warning event.
type WarningCode uint32

// The list of warning codes.
const (
	// WarClrCombine means the combination is removed.
	WarClrCombine WarningCode = iota
	// WarClrBpCombine means the breakpoint is removed from the combination.
	WarClrBpCombine
	// WarModCombine means the properties of the combination changed.
	WarModCombine
	// WarReset means the device is reset.
	WarReset
	// WarDisTrTrigger means the trace trigger action is disabled and stored.
	WarDisTrTrigger
	// WarEnTrTrigger means the stored trace trigger action is enabled.
	WarEnTrTrigger
	// WarEEMThreadActive means the polling thread is active and the call is not allowed at the moment.
	WarEEMThreadActive
	// WarEEMConflict means the forbidden old API call.
	WarEEMConflict
	// WarSeqTriggerRemoved means the trigger is removed from the sequencer.
	WarSeqTriggerRemoved
	numWarningCodes
)

var warningNames = [...]string{
	WarClrCombine:        "combination removed",
	WarClrBpCombine:      "breakpoint removed from combination",
	WarModCombine:        "properties of combination changed",
	WarReset:             "device reset",
	WarDisTrTrigger:      "trace trigger action disabled and stored",
	WarEnTrTrigger:       "stored trace trigger action enabled",
	WarEEMThreadActive:   "polling thread is active",
	WarEEMConflict:       "forbidden old API call",
	WarSeqTriggerRemoved: "trigger removed from sequencer",
}

func (c WarningCode) String() string {
	if c >= numWarningCodes {
		return fmt.Sprintf("warning(%d)", uint32(c))
	}
	return warningNames[c]
}

// Event describes the notification from the probe.
type Event struct {
	Type EventType
	// Data is one of these go types:
	//
	//    EventType                 Go type      Description
	//    -----------               -------      -----------
	//    EventBreakpoint           Handle       The handle of the hit breakpoint
	//    EventState                SeqState     The new state of the sequencer
	//    EventWarning              WarningCode  The warning reported by the probe or the breakpoint manager
	//    EventWarning              error        The advisory status of the probe operation
	//    others                    NA           NA
	Data interface{}
}

func (e Event) String() string {
	if e.Data == nil {
		return e.Type.String()
	}
	return fmt.Sprintf("%s(%v)", e.Type, e.Data)
}

// RawEvent is the wire representation of the notification.
type RawEvent struct {
	Type   EventType
	WParam uint32
	LParam int32
}

// Validate checks the event type.
func (r RawEvent) Validate() error {
	return checkFields("RawEvent", enumField{"Type", int64(r.Type), r.Type.Valid()})
}

// DecodeEvent converts the raw notification to the event.
func DecodeEvent(raw RawEvent) (Event, error) {
	if err := raw.Validate(); err != nil {
		return Event{}, err
	}

	event := Event{Type: raw.Type}
	switch raw.Type {
	case EventBreakpoint:
		event.Data = Handle(raw.WParam)
	case EventState:
		state := SeqState(raw.WParam)
		if !state.Valid() {
			return Event{}, InvalidFieldError{Record: "RawEvent", Field: "WParam", Value: int64(raw.WParam)}
		}
		event.Data = state
	case EventWarning:
		event.Data = WarningCode(raw.WParam)
	}
	return event, nil
}

// EncodeEvent converts the event to the raw notification. Data which has no wire representation is dropped.
func EncodeEvent(event Event) RawEvent {
	raw := RawEvent{Type: event.Type}
	switch data := event.Data.(type) {
	case Handle:
		raw.WParam = uint32(data)
	case SeqState:
		raw.WParam = uint32(data)
	case WarningCode:
		raw.WParam = uint32(data)
	}
	return raw
}
