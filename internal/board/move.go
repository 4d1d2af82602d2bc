package board

import (
	"fmt"

	"github.com/hylla/tavla/internal/domain"
)

// Move is one optimistic status change awaiting server confirmation.
type Move struct {
	TaskID string
	From   domain.Status
	To     domain.Status
	Seq    uint64
}

// Phase describes where a task sits in the optimistic update cycle.
type Phase struct {
	Pending bool
	From    domain.Status
	To      domain.Status
}

func (p Phase) String() string {
	if !p.Pending {
		return "confirmed"
	}
	return fmt.Sprintf("pending(%s→%s)", p.From.Code(), p.To.Code())
}

// MoveTracker records in-flight moves per task. A task absent from the
// tracker is confirmed at whatever status the state holds.
type MoveTracker struct {
	seq     uint64
	pending map[string]Move
}

func (t *MoveTracker) begin(id string, from, to domain.Status) Move {
	if t.pending == nil {
		t.pending = map[string]Move{}
	}
	t.seq++
	move := Move{TaskID: id, From: from, To: to, Seq: t.seq}
	t.pending[id] = move
	return move
}

// settle clears move if it is still the latest one for its task.
func (t *MoveTracker) settle(move Move) bool {
	current, ok := t.pending[move.TaskID]
	if !ok || current.Seq != move.Seq {
		return false
	}
	delete(t.pending, move.TaskID)
	return true
}

// Phase reports the optimistic phase of one task.
func (t MoveTracker) Phase(id string) Phase {
	move, ok := t.pending[id]
	if !ok {
		return Phase{}
	}
	return Phase{Pending: true, From: move.From, To: move.To}
}

// PendingCount returns the number of unconfirmed moves.
func (t MoveTracker) PendingCount() int {
	return len(t.pending)
}
