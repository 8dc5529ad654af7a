package sim

import (
	"sort"

	"github.com/ks888/fetctl/probe"
	"github.com/ks888/fetctl/status"
)

type counter struct {
	config     probe.CounterConfig
	configured bool
	value      uint64
}

// emulation is the state of the emulation module, which is initialized when the device is opened.
type emulation struct {
	breakpoints  map[probe.Handle]probe.Breakpoint
	combinations map[probe.Handle][]probe.Handle
	storage      *Storage
	sequencer    probe.Sequencer
	seqState     probe.SeqState
	counterMode  probe.CounterMode
	modeSet      bool
	counters     []counter
	clock        probe.ClockControl
	watching     bool
	variables    map[probe.Handle]probe.Variable
}

func newEmulation() *emulation {
	return &emulation{
		breakpoints:  make(map[probe.Handle]probe.Breakpoint),
		combinations: make(map[probe.Handle][]probe.Handle),
		storage:      NewStorage(),
		variables:    make(map[probe.Handle]probe.Variable),
	}
}

func (e *emulation) exists(h probe.Handle) bool {
	_, isBp := e.breakpoints[h]
	_, isCombination := e.combinations[h]
	return isBp || isCombination
}

func (e *emulation) combined(h probe.Handle) bool {
	for _, members := range e.combinations {
		for _, member := range members {
			if member == h {
				return true
			}
		}
	}
	return false
}

func (t *Target) eemCapacity() int {
	capacity := probe.MaxTrigger
	if n := int(t.config.Device.NBreakpoints); n != 0 && n < capacity {
		capacity = n
	}
	return capacity
}

func (t *Target) eemInit(args []byte) ([]byte, status.Code) {
	if !t.open {
		return nil, status.NoDeviceErr
	}
	t.eem = newEmulation()
	t.eem.counters = make([]counter, t.config.Device.NCycleCounter)
	return nil, status.NoErr
}

func (t *Target) setBreakpoint(args []byte) ([]byte, status.Code) {
	var bpArgs probe.SetBreakpointArgs
	if err := probe.Decode(args, &bpArgs); err != nil || bpArgs.Handle == 0 {
		return nil, status.ParameterErr
	}
	if !t.open {
		return nil, status.NoDeviceErr
	}

	bp := bpArgs.Breakpoint
	if bp.Mode == probe.BpClear {
		delete(t.eem.breakpoints, bpArgs.Handle)
		return nil, status.NoErr
	}
	if bp.Mode == probe.BpRange && bp.RangeEnd < bp.Address {
		return nil, status.ParameterErr
	}

	used := bp.Triggers()
	for h, other := range t.eem.breakpoints {
		if h != bpArgs.Handle {
			used += other.Triggers()
		}
	}
	if used > t.eemCapacity() {
		return nil, status.ResourceErr
	}
	t.eem.breakpoints[bpArgs.Handle] = bp
	return nil, status.NoErr
}

func (t *Target) getBreakpoint(args []byte) ([]byte, status.Code) {
	var h probe.Handle
	if err := probe.Decode(args, &h); err != nil {
		return nil, status.ParameterErr
	}
	if !t.open {
		return nil, status.NoDeviceErr
	}
	bp, ok := t.eem.breakpoints[h]
	if !ok {
		return nil, status.ParameterErr
	}
	return probe.Encode(bp), status.NoErr
}

func (t *Target) setCombineBreakpoint(args []byte) ([]byte, status.Code) {
	var combineArgs probe.CombineArgs
	var rest []byte
	if err := probe.Decode(args, &combineArgs, &rest); err != nil || combineArgs.Handle == 0 {
		return nil, status.ParameterErr
	}
	members := make([]probe.Handle, combineArgs.Count)
	if err := probe.Decode(rest, &members); err != nil {
		return nil, status.ParameterErr
	}
	if !t.open {
		return nil, status.NoDeviceErr
	}

	if combineArgs.Control == probe.CombineClear {
		delete(t.eem.combinations, combineArgs.Handle)
		return nil, status.NoErr
	}

	if len(members) < 2 {
		return nil, status.ParameterErr
	}
	for _, member := range members {
		if _, ok := t.eem.breakpoints[member]; !ok {
			return nil, status.ParameterErr
		}
	}
	if len(t.eem.combinations) >= int(t.config.Device.NCombinations) && t.config.Device.NCombinations != 0 {
		if _, ok := t.eem.combinations[combineArgs.Handle]; !ok {
			return nil, status.ResourceErr
		}
	}
	t.eem.combinations[combineArgs.Handle] = members
	return nil, status.NoErr
}

func (t *Target) getCombineBreakpoint(args []byte) ([]byte, status.Code) {
	var h probe.Handle
	if err := probe.Decode(args, &h); err != nil {
		return nil, status.ParameterErr
	}
	if !t.open {
		return nil, status.NoDeviceErr
	}
	members, ok := t.eem.combinations[h]
	if !ok {
		return nil, status.ParameterErr
	}
	return probe.Encode(uint16(len(members)), members), status.NoErr
}

func (t *Target) setTrace(args []byte) ([]byte, status.Code) {
	var config probe.TraceConfig
	if err := probe.Decode(args, &config); err != nil {
		return nil, status.ParameterErr
	}
	if !t.open {
		return nil, status.NoDeviceErr
	}
	if t.config.Device.NStateStorage == 0 {
		return nil, status.StateStorErr
	}
	t.eem.storage.Configure(config)
	return nil, status.NoErr
}

func (t *Target) getTrace(args []byte) ([]byte, status.Code) {
	if !t.open {
		return nil, status.NoDeviceErr
	}
	if t.config.Device.NStateStorage == 0 {
		return nil, status.StateStorErr
	}
	return probe.Encode(t.eem.storage.Config()), status.NoErr
}

func (t *Target) readTraceBuffer(args []byte) ([]byte, status.Code) {
	if !t.open {
		return nil, status.NoDeviceErr
	}
	if t.config.Device.NStateStorage == 0 {
		return nil, status.StateStorErr
	}

	reply := probe.TraceBufferReply{}
	entries := t.eem.storage.Entries()
	reply.Count = uint32(len(entries))
	copy(reply.Entries[:], entries)
	return probe.Encode(reply), status.NoErr
}

func (t *Target) readTraceData(args []byte) ([]byte, status.Code) {
	var dataArgs probe.TraceDataArgs
	if err := probe.Decode(args, &dataArgs); err != nil {
		return nil, status.ParameterErr
	}
	if !t.open {
		return nil, status.NoDeviceErr
	}
	if t.config.Device.NStateStorage == 0 {
		return nil, status.StateStorErr
	}

	entries := t.eem.storage.Entries()
	if uint32(len(entries)) > dataArgs.Max {
		entries = entries[:dataArgs.Max]
	}
	return probe.Encode(probe.TraceDataReply{Count: uint32(len(entries))}, entries), status.NoErr
}

func (t *Target) refreshTraceBuffer(args []byte) ([]byte, status.Code) {
	if !t.open {
		return nil, status.NoDeviceErr
	}
	if t.config.Device.NStateStorage == 0 {
		return nil, status.StateStorErr
	}
	t.eem.storage.Restart()
	return nil, status.NoErr
}

func (t *Target) setSequencer(args []byte) ([]byte, status.Code) {
	var seq probe.Sequencer
	if err := probe.Decode(args, &seq); err != nil {
		return nil, status.ParameterErr
	}
	if !t.open {
		return nil, status.NoDeviceErr
	}
	if t.config.Device.NSequencer == 0 {
		return nil, status.SequencerErr
	}
	for _, h := range seq.Handles() {
		if !t.eem.exists(h) {
			return nil, status.ParameterErr
		}
	}

	t.eem.sequencer = seq
	t.eem.seqState = probe.SeqState0
	return nil, status.NoErr
}

func (t *Target) getSequencer(args []byte) ([]byte, status.Code) {
	if !t.open {
		return nil, status.NoDeviceErr
	}
	if t.config.Device.NSequencer == 0 {
		return nil, status.SequencerErr
	}
	return probe.Encode(t.eem.sequencer), status.NoErr
}

func (t *Target) readSequencerState(args []byte) ([]byte, status.Code) {
	if !t.open {
		return nil, status.NoDeviceErr
	}
	if t.config.Device.NSequencer == 0 {
		return nil, status.SequencerErr
	}
	if t.eem.sequencer.Control != probe.SeqEnable {
		return nil, status.SeqEnableErr
	}
	return probe.Encode(probe.SeqStateReply{State: t.eem.seqState}), status.NoErr
}

func (t *Target) setCounterMode(args []byte) ([]byte, status.Code) {
	var modeArgs probe.CounterModeArgs
	if err := probe.Decode(args, &modeArgs); err != nil {
		return nil, status.ParameterErr
	}
	if !t.open {
		return nil, status.NoDeviceErr
	}
	if t.config.Device.NCycleCounter == 0 {
		return nil, status.ParameterErr
	}

	t.eem.counterMode = modeArgs.Mode
	t.eem.modeSet = true
	t.eem.counters = make([]counter, t.config.Device.NCycleCounter)
	return nil, status.NoErr
}

func (t *Target) counterOf(index uint32) (*counter, status.Code) {
	if !t.open {
		return nil, status.NoDeviceErr
	}
	if int(index) >= int(t.config.Device.NCycleCounter) {
		return nil, status.ParameterErr
	}
	if len(t.eem.counters) == 0 {
		t.eem.counters = make([]counter, t.config.Device.NCycleCounter)
	}
	return &t.eem.counters[index], status.NoErr
}

func (t *Target) configureCounter(args []byte) ([]byte, status.Code) {
	var configArgs probe.ConfigureCounterArgs
	if err := probe.Decode(args, &configArgs); err != nil {
		return nil, status.ParameterErr
	}
	c, code := t.counterOf(configArgs.Index)
	if code != status.NoErr {
		return nil, code
	}
	if !t.eem.modeSet || (t.eem.counterMode == probe.CounterBasic && configArgs.Index == 0) {
		return nil, status.ParameterErr
	}
	c.config = configArgs.Config
	c.configured = true
	return nil, status.NoErr
}

func (t *Target) readCounter(args []byte) ([]byte, status.Code) {
	var counterArgs probe.CounterArgs
	if err := probe.Decode(args, &counterArgs); err != nil {
		return nil, status.ParameterErr
	}
	c, code := t.counterOf(counterArgs.Index)
	if code != status.NoErr {
		return nil, code
	}
	return probe.Encode(probe.CounterValueArgs{Index: counterArgs.Index, Value: c.value}), status.NoErr
}

func (t *Target) writeCounter(args []byte) ([]byte, status.Code) {
	var valueArgs probe.CounterValueArgs
	if err := probe.Decode(args, &valueArgs); err != nil {
		return nil, status.ParameterErr
	}
	c, code := t.counterOf(valueArgs.Index)
	if code != status.NoErr {
		return nil, code
	}
	c.value = valueArgs.Value
	return nil, status.NoErr
}

func (t *Target) resetCounter(args []byte) ([]byte, status.Code) {
	var counterArgs probe.CounterArgs
	if err := probe.Decode(args, &counterArgs); err != nil {
		return nil, status.ParameterErr
	}
	c, code := t.counterOf(counterArgs.Index)
	if code != status.NoErr {
		return nil, code
	}
	c.value = 0
	return nil, status.NoErr
}

// execute runs at most n instructions while the device is running.
func (t *Target) execute(n int) {
	for i := 0; i < n && t.state == probe.Running; i++ {
		t.step()
	}
}

func (t *Target) step() {
	pc := uint32(t.regs[probe.PC])
	opcode := uint16(t.memory[pc]) | uint16(t.memory[pc+1])<<8

	cycles := uint64(t.config.CyclesPerInstruction)
	t.cycles += cycles
	t.countCycles(cycles)

	triggered := t.triggeredHandles(pc)
	storageTrigger := false
	breakHit := probe.Handle(0)
	for _, h := range triggered {
		action := t.actionOf(h)
		if action == probe.BpActionStorage || action == probe.BpActionBreakAndStorage {
			storageTrigger = true
		}
		if (action == probe.BpActionBreak || action == probe.BpActionBreakAndStorage) && breakHit == 0 {
			breakHit = h
		}
		t.advanceSequencer(h)
	}

	t.store(pc, opcode, storageTrigger)
	if t.state != probe.Running {
		return
	}

	if breakHit != 0 && t.runMode == probe.RunToBreakpoint {
		t.state = probe.BreakpointHit
		t.emit(probe.EventBreakpoint, breakHit)
		return
	}

	next := pc + 2
	desc := t.descriptor()
	if desc.Main.Implemented() && (next < desc.Main.Start || next > desc.Main.End) {
		next = desc.Main.Start
	}
	t.regs[probe.PC] = int32(next)
}

// store offers the bus cycles of the instruction to the state storage: the fetch, then the operand read
// of the following word for the multi-cycle instruction. EventStorage is emitted when the trigger stored
// the entry or the storage became full.
func (t *Target) store(pc uint32, opcode uint16, trigger bool) {
	storage := t.eem.storage
	wasFull := storage.Full()

	stored := storage.Cycle(probe.TraceEntry{MAB: int32(pc), MDB: int32(opcode), Control: FetchCycle}, trigger)
	if t.config.CyclesPerInstruction > 1 {
		addr := pc + 2
		data := uint16(t.memory[addr]) | uint16(t.memory[addr+1])<<8
		if storage.Cycle(probe.TraceEntry{MAB: int32(addr), MDB: int32(data), Control: DataCycle}, trigger) {
			stored = true
		}
	}

	if (trigger && stored) || (!wasFull && storage.Full()) {
		t.emit(probe.EventStorage, nil)
	}
}

func (t *Target) countCycles(cycles uint64) {
	if !t.eem.modeSet || len(t.eem.counters) == 0 {
		return
	}
	if t.eem.counterMode == probe.CounterBasic {
		t.eem.counters[0].value += cycles
	}
	for i := range t.eem.counters {
		c := &t.eem.counters[i]
		if !c.configured || c.config.Start == probe.StartOnTrigger || c.config.Start == probe.StartOnSeqTrigger {
			continue
		}
		if c.config.Count == probe.CountFetchCycles {
			c.value++
		} else {
			c.value += cycles
		}
	}
}

// triggeredHandles returns the handles which fire at the instruction fetch. The members of the
// combination fire only as the combination.
func (t *Target) triggeredHandles(pc uint32) []probe.Handle {
	matched := make(map[probe.Handle]bool)
	for h, bp := range t.eem.breakpoints {
		if matches(bp, pc) {
			matched[h] = true
		}
	}

	var handles []probe.Handle
	for h := range matched {
		if !t.eem.combined(h) {
			handles = append(handles, h)
		}
	}
	for h, members := range t.eem.combinations {
		all := true
		for _, member := range members {
			all = all && matched[member]
		}
		if all {
			handles = append(handles, h)
		}
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })
	return handles
}

func matches(bp probe.Breakpoint, pc uint32) bool {
	if bp.Type != probe.BpTypeAddress {
		return false
	}
	switch bp.Mode {
	case probe.BpCode, probe.BpSoftware:
		return bp.Address == pc
	case probe.BpRange:
		inside := pc >= bp.Address && pc <= bp.RangeEnd
		return inside == (bp.RangeAction == probe.BpInside)
	case probe.BpComplex:
		if bp.Access != probe.BpFetch && bp.Access != probe.BpDontCare {
			return false
		}
		return bp.Address&^bp.Mask == pc&^bp.Mask
	}
	return false
}

func (t *Target) actionOf(h probe.Handle) probe.BpAction {
	if bp, ok := t.eem.breakpoints[h]; ok {
		return bp.Action
	}
	members := t.eem.combinations[h]
	if len(members) == 0 {
		return probe.BpActionNone
	}
	return t.eem.breakpoints[members[0]].Action
}

func (t *Target) advanceSequencer(h probe.Handle) {
	seq := t.eem.sequencer
	if seq.Control != probe.SeqEnable {
		return
	}

	next := seq.Next(t.eem.seqState, h)
	if h == seq.ResetHandle {
		next = probe.SeqState0
	}
	if next == t.eem.seqState {
		return
	}
	t.eem.seqState = next
	t.emit(probe.EventState, next)

	if next == probe.SeqState3 && (seq.Action == probe.BpActionBreak || seq.Action == probe.BpActionBreakAndStorage) && t.runMode == probe.RunToBreakpoint {
		t.state = probe.BreakpointHit
		t.emit(probe.EventBreakpoint, probe.Handle(0))
	}
}
