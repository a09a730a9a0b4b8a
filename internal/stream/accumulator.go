// Package stream translates external agent-run events into internal events,
// reconstructing complete messages and tool calls from incremental deltas.
package stream

import (
	"fmt"
	"sort"

	"weft/internal/agentrun"
)

// PartSnapshot is the accumulated state of one indexed response part.
type PartSnapshot struct {
	Type       agentrun.PartType
	Text       string
	ToolName   string
	ToolCallID string
	Arguments  string
}

// mergeDelta folds one delta into a snapshot. Text concatenates; tool-call
// names and argument JSON grow fragment by fragment.
func mergeDelta(prev PartSnapshot, delta agentrun.PartDelta) PartSnapshot {
	next := prev
	next.Text += delta.Text
	next.ToolName += delta.ToolName
	next.Arguments += delta.Arguments
	return next
}

// Accumulator tracks response parts keyed by part index.
type Accumulator struct {
	parts map[int]PartSnapshot
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{parts: make(map[int]PartSnapshot)}
}

// Start registers a new part at index.
func (a *Accumulator) Start(index int, part agentrun.Part) PartSnapshot {
	snap := PartSnapshot{
		Type:       part.Type,
		Text:       part.Text,
		ToolName:   part.ToolName,
		ToolCallID: part.ToolCallID,
		Arguments:  part.Arguments,
	}
	a.parts[index] = snap
	return snap
}

// Apply folds a delta into the part at index.
func (a *Accumulator) Apply(index int, delta agentrun.PartDelta) (PartSnapshot, error) {
	prev, ok := a.parts[index]
	if !ok {
		return PartSnapshot{}, fmt.Errorf("delta for unknown part index %d", index)
	}
	next := mergeDelta(prev, delta)
	a.parts[index] = next
	return next, nil
}

// Part returns the snapshot at index.
func (a *Accumulator) Part(index int) (PartSnapshot, bool) {
	snap, ok := a.parts[index]
	return snap, ok
}

// FindToolCall returns the lowest-indexed tool-call part with the given
// name. Used to recover a call id when only the tool name survives to the
// end of the stream.
func (a *Accumulator) FindToolCall(name string) (PartSnapshot, bool) {
	indexes := make([]int, 0, len(a.parts))
	for i := range a.parts {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)
	for _, i := range indexes {
		snap := a.parts[i]
		if snap.Type == agentrun.PartToolCall && snap.ToolName == name {
			return snap, true
		}
	}
	return PartSnapshot{}, false
}
