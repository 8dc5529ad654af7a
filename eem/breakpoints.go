package eem

import (
	"sort"
	"sync"

	"github.com/ks888/fetctl/probe"
	"github.com/ks888/fetctl/status"
)

// Breakpoints manages the breakpoints and their combinations. The handle is allocated by the host and
// the breakpoint is programmed to the probe with that handle.
type Breakpoints struct {
	conn Conn

	// mu is shared with the sequencer, which refers to the handles.
	mu           sync.Mutex
	gen          uint64
	breakpoints  map[probe.Handle]probe.Breakpoint
	combinations map[probe.Handle][]probe.Handle
	lastHandle   probe.Handle
	// seqUses returns true if the sequencer refers to the handle. Called with mu held.
	seqUses func(h probe.Handle) bool
}

// NewBreakpoints returns new Breakpoints.
func NewBreakpoints(conn Conn) *Breakpoints {
	b := &Breakpoints{conn: conn, seqUses: func(probe.Handle) bool { return false }}
	b.reset(conn.Generation())
	return b
}

func (b *Breakpoints) reset(gen uint64) {
	b.gen = gen
	b.breakpoints = make(map[probe.Handle]probe.Breakpoint)
	b.combinations = make(map[probe.Handle][]probe.Handle)
	b.lastHandle = 0
}

// sync discards the handles if they were obtained in the other generation of the session.
func (b *Breakpoints) sync() {
	if gen := b.conn.Generation(); gen != b.gen {
		b.reset(gen)
	}
}

// Set allocates the handle and programs the breakpoint.
func (b *Breakpoints) Set(bp probe.Breakpoint) (probe.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sync()

	if err := b.check("SetBreakpoint", 0, bp); err != nil {
		return 0, err
	}
	if b.live() >= probe.MaxHandle {
		return 0, status.Newf("SetBreakpoint", status.ResourceErr, "%d handles are in use", b.live())
	}

	h := b.allocate()
	if err := b.program(h, bp); err != nil {
		return 0, err
	}
	b.breakpoints[h] = bp
	return h, nil
}

// Modify reprograms the existing breakpoint. If the breakpoint is the member of the combination,
// the combination is dissolved and the warning is reported.
func (b *Breakpoints) Modify(h probe.Handle, bp probe.Breakpoint) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sync()

	if _, ok := b.breakpoints[h]; !ok {
		return parameterError("SetBreakpoint", "no breakpoint for handle %d", h)
	}
	if err := b.check("SetBreakpoint", h, bp); err != nil {
		return err
	}
	if err := b.checkCombinationOf("SetBreakpoint", status.ClrSeqTrigger, h); err != nil {
		return err
	}

	if err := b.program(h, bp); err != nil {
		return err
	}
	b.breakpoints[h] = bp

	if c, ok := b.combinationOf(h); ok {
		if err := b.clearCombination(c); err != nil {
			return err
		}
		warn(b.conn, probe.WarClrCombine)
	}
	return nil
}

// check validates the breakpoint and the trigger capacity. The triggers of the handle `replacing` are not counted.
func (b *Breakpoints) check(op string, replacing probe.Handle, bp probe.Breakpoint) error {
	if err := bp.Validate(); err != nil {
		return parameterError(op, "%v", err)
	}
	if bp.Mode == probe.BpClear {
		return parameterError(op, "use Clear to clear the breakpoint")
	}
	if bp.Mode == probe.BpRange && bp.RangeEnd < bp.Address {
		return parameterError(op, "range end %#x is below start %#x", bp.RangeEnd, bp.Address)
	}

	desc, err := b.conn.Device()
	if err != nil {
		return err
	}

	capacity := probe.MaxTrigger
	if desc.Breakpoints != 0 && desc.Breakpoints < capacity {
		capacity = desc.Breakpoints
	}
	used, regUsed := bp.Triggers(), 0
	if bp.Type == probe.BpTypeRegister && bp.Mode == probe.BpComplex {
		regUsed++
	}
	for h, other := range b.breakpoints {
		if h == replacing {
			continue
		}
		used += other.Triggers()
		if other.Type == probe.BpTypeRegister && other.Mode == probe.BpComplex {
			regUsed++
		}
	}

	if used > capacity {
		return status.Newf(op, status.ResourceErr, "%d memory bus triggers required, but only %d available", used, capacity)
	}
	if desc.RegTriggers != 0 && regUsed > desc.RegTriggers {
		return status.Newf(op, status.ResourceErr, "%d register triggers required, but only %d available", regUsed, desc.RegTriggers)
	}
	return nil
}

func (b *Breakpoints) program(h probe.Handle, bp probe.Breakpoint) error {
	return b.conn.Call(probe.OpSetBreakpoint, probe.Encode(probe.SetBreakpointArgs{Handle: h, Breakpoint: bp}))
}

// allocate returns the unused handle. The handles are not reused until the number wraps around.
func (b *Breakpoints) allocate() probe.Handle {
	for {
		b.lastHandle++
		if b.lastHandle == 0 {
			continue
		}
		if !b.exists(b.lastHandle) {
			return b.lastHandle
		}
	}
}

// Clear releases the handle. The members of the cleared combination remain. If the cleared breakpoint is
// the member of the combination, the combination shrinks or is dissolved and the warning is reported.
func (b *Breakpoints) Clear(h probe.Handle) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sync()

	if !b.exists(h) {
		return parameterError("ClearBreakpoint", "no breakpoint for handle %d", h)
	}
	if b.seqUses(h) {
		return status.Newf("ClearBreakpoint", status.ClrSeqTrigger, "handle %d is used by the sequencer", h)
	}

	if _, ok := b.combinations[h]; ok {
		return b.clearCombination(h)
	}
	if err := b.checkCombinationOf("ClearBreakpoint", status.ClrSeqTrigger, h); err != nil {
		return err
	}

	if c, ok := b.combinationOf(h); ok {
		if err := b.detach(c, h, probe.WarClrBpCombine); err != nil {
			return err
		}
	}

	if err := b.program(h, probe.Breakpoint{Mode: probe.BpClear}); err != nil {
		return err
	}
	delete(b.breakpoints, h)
	return nil
}

// Get reads back the programming of the breakpoint.
func (b *Breakpoints) Get(h probe.Handle) (probe.Breakpoint, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sync()

	cached, ok := b.breakpoints[h]
	if !ok {
		return probe.Breakpoint{}, parameterError("GetBreakpoint", "no breakpoint for handle %d", h)
	}

	var bp probe.Breakpoint
	if err := b.conn.Call(probe.OpGetBreakpoint, probe.Encode(h), &bp); err != nil {
		if status.Is(err, status.InterfaceSupportErr) {
			return cached, nil
		}
		return probe.Breakpoint{}, err
	}
	return bp, nil
}

// Combine creates (CombineSet) or dissolves (CombineClear) the combination. CombineSet returns the handle of the
// new combination. The handles which belong to the other combination are detached from it and the warning is reported.
// CombineClear takes the single combination handle and returns 0.
func (b *Breakpoints) Combine(control probe.CombineControl, handles ...probe.Handle) (probe.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sync()

	switch control {
	case probe.CombineSet:
		return b.combine(handles)
	case probe.CombineClear:
		if len(handles) != 1 {
			return 0, parameterError("CombineBreakpoint", "specify one combination handle")
		}
		h := handles[0]
		if _, ok := b.combinations[h]; !ok {
			return 0, parameterError("CombineBreakpoint", "no combination for handle %d", h)
		}
		if b.seqUses(h) {
			return 0, status.Newf("CombineBreakpoint", status.ClrSeqTrigger, "handle %d is used by the sequencer", h)
		}
		return 0, b.clearCombination(h)
	}
	return 0, parameterError("CombineBreakpoint", "invalid control: %d", int32(control))
}

func (b *Breakpoints) combine(handles []probe.Handle) (probe.Handle, error) {
	if len(handles) < 2 {
		return 0, parameterError("CombineBreakpoint", "at least 2 breakpoints are required")
	}
	seen := make(map[probe.Handle]bool)
	for _, h := range handles {
		if _, ok := b.breakpoints[h]; !ok {
			return 0, parameterError("CombineBreakpoint", "no breakpoint for handle %d", h)
		}
		if seen[h] {
			return 0, parameterError("CombineBreakpoint", "duplicate handle %d", h)
		}
		seen[h] = true
		if b.seqUses(h) {
			return 0, status.Newf("CombineBreakpoint", status.SetSeqTrigger, "handle %d is used by the sequencer", h)
		}
		if err := b.checkCombinationOf("CombineBreakpoint", status.SetSeqTrigger, h); err != nil {
			return 0, err
		}
	}
	if b.live() >= probe.MaxHandle {
		return 0, status.Newf("CombineBreakpoint", status.ResourceErr, "%d handles are in use", b.live())
	}

	for _, h := range handles {
		if c, ok := b.combinationOf(h); ok {
			if err := b.detach(c, h, probe.WarModCombine); err != nil {
				return 0, err
			}
		}
	}

	members := append([]probe.Handle(nil), handles...)
	h := b.allocate()
	if err := b.programCombination(probe.CombineSet, h, members); err != nil {
		return 0, err
	}
	b.combinations[h] = members
	return h, nil
}

// checkCombinationOf fails if the breakpoint belongs to the combination the sequencer uses, because
// the combination would be reprogrammed or dissolved.
func (b *Breakpoints) checkCombinationOf(op string, code status.Code, h probe.Handle) error {
	if c, ok := b.combinationOf(h); ok && b.seqUses(c) {
		return status.Newf(op, code, "combination %d of handle %d is used by the sequencer", c, h)
	}
	return nil
}

// detach removes the member from the combination. The combination is dissolved if less than 2 members remain.
func (b *Breakpoints) detach(c, member probe.Handle, warning probe.WarningCode) error {
	var remaining []probe.Handle
	for _, h := range b.combinations[c] {
		if h != member {
			remaining = append(remaining, h)
		}
	}

	if len(remaining) < 2 {
		if err := b.clearCombination(c); err != nil {
			return err
		}
		warn(b.conn, probe.WarClrCombine)
		return nil
	}

	if err := b.programCombination(probe.CombineSet, c, remaining); err != nil {
		return err
	}
	b.combinations[c] = remaining
	warn(b.conn, warning)
	return nil
}

func (b *Breakpoints) clearCombination(c probe.Handle) error {
	if b.seqUses(c) {
		return status.Newf("CombineBreakpoint", status.ClrSeqTrigger, "combination %d is used by the sequencer", c)
	}
	if err := b.programCombination(probe.CombineClear, c, nil); err != nil {
		return err
	}
	delete(b.combinations, c)
	return nil
}

func (b *Breakpoints) programCombination(control probe.CombineControl, c probe.Handle, members []probe.Handle) error {
	args := probe.CombineArgs{Control: control, Handle: c, Count: uint16(len(members))}
	return b.conn.Call(probe.OpSetCombineBreakpoint, probe.Encode(args, members))
}

// Combination returns the members of the combination.
func (b *Breakpoints) Combination(c probe.Handle) ([]probe.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sync()

	cached, ok := b.combinations[c]
	if !ok {
		return nil, parameterError("GetCombineBreakpoint", "no combination for handle %d", c)
	}

	var reply []byte
	if err := b.conn.Call(probe.OpGetCombineBreakpoint, probe.Encode(c), &reply); err != nil {
		if status.Is(err, status.InterfaceSupportErr) {
			return append([]probe.Handle(nil), cached...), nil
		}
		return nil, err
	}

	var count uint16
	var rest []byte
	if err := probe.Decode(reply, &count, &rest); err != nil {
		return nil, status.Newf("GetCombineBreakpoint", status.InternalErr, "malformed reply: %v", err)
	}
	members := make([]probe.Handle, count)
	if err := probe.Decode(rest, &members); err != nil {
		return nil, status.Newf("GetCombineBreakpoint", status.InternalErr, "malformed reply: %v", err)
	}
	return members, nil
}

// Exists returns true if the handle is live.
func (b *Breakpoints) Exists(h probe.Handle) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sync()
	return b.exists(h)
}

// IsCombination returns true if the handle is the live combination.
func (b *Breakpoints) IsCombination(h probe.Handle) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sync()
	_, ok := b.combinations[h]
	return ok
}

// Live returns the number of the live handles, including the combinations.
func (b *Breakpoints) Live() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sync()
	return b.live()
}

// Handles returns the live handles in the ascending order.
func (b *Breakpoints) Handles() []probe.Handle {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sync()

	var handles []probe.Handle
	for h := range b.breakpoints {
		handles = append(handles, h)
	}
	for h := range b.combinations {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })
	return handles
}

func (b *Breakpoints) exists(h probe.Handle) bool {
	_, isBp := b.breakpoints[h]
	_, isCombination := b.combinations[h]
	return isBp || isCombination
}

func (b *Breakpoints) live() int {
	return len(b.breakpoints) + len(b.combinations)
}

func (b *Breakpoints) combinationOf(h probe.Handle) (probe.Handle, bool) {
	for c, members := range b.combinations {
		for _, member := range members {
			if member == h {
				return c, true
			}
		}
	}
	return 0, false
}
