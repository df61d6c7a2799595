package orchestrator

import (
	"sync"

	"github.com/petal-labs/shelfwright/core"
)

// Op is a host-build operation.
type Op string

const (
	// OpOpen starts a container (menu, shelf or group); matched by OpClose.
	OpOpen Op = "open"
	// OpClose ends the most recently opened container.
	OpClose     Op = "close"
	OpSeparator Op = "separator"
	OpLabel     Op = "label"
	// OpItem builds a leaf bound to its command.
	OpItem Op = "item"
)

// Instruction is one host-build call produced by the tree walk.
type Instruction struct {
	Op     Op            `json:"op"`
	Family core.Family   `json:"family"`
	ID     string        `json:"id"`
	Path   string        `json:"path"`
	Kind   core.NodeKind `json:"kind"`
	// Type is the item type a leaf was resolved through.
	Type  string     `json:"type,omitempty"`
	Depth int        `json:"depth"`
	Attrs core.Attrs `json:"attrs,omitempty"`
	// Command is nil for non-leaves and for leaves whose resolver built none.
	Command *core.CommandDescriptor `json:"command,omitempty"`
}

// Host receives build instructions in tree order.
type Host interface {
	Emit(ins Instruction)
}

// HostFunc adapts a function to Host.
type HostFunc func(Instruction)

func (f HostFunc) Emit(ins Instruction) { f(ins) }

// RecordingHost collects instructions in memory.
type RecordingHost struct {
	mu           sync.Mutex
	instructions []Instruction
}

// Emit records ins.
func (h *RecordingHost) Emit(ins Instruction) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.instructions = append(h.instructions, ins)
}

// Instructions returns a copy of the recorded instructions.
func (h *RecordingHost) Instructions() []Instruction {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Instruction, len(h.instructions))
	copy(out, h.instructions)
	return out
}

// Items returns the recorded leaf instructions for family.
func (h *RecordingHost) Items(family core.Family) []Instruction {
	var out []Instruction
	for _, ins := range h.Instructions() {
		if ins.Op == OpItem && ins.Family == family {
			out = append(out, ins)
		}
	}
	return out
}

// Reset discards the recorded instructions.
func (h *RecordingHost) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.instructions = nil
}
