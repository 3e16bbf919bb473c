package orders

import (
	"github.com/tokosaku/backend/pkg/enums"
	pkgerrors "github.com/tokosaku/backend/pkg/errors"
)

var statusRank = map[enums.OrderStatus]int{
	enums.OrderStatusPending:    0,
	enums.OrderStatusProcessing: 1,
	enums.OrderStatusShipped:    2,
	enums.OrderStatusDelivered:  3,
}

// CanTransition reports whether status may move from current to next. The
// lifecycle only moves forward; cancellation is reachable from pending and
// processing only.
func CanTransition(current, next enums.OrderStatus) bool {
	if current == next {
		return true
	}
	if current.IsTerminal() {
		return false
	}
	if next == enums.OrderStatusCancelled {
		return current == enums.OrderStatusPending || current == enums.OrderStatusProcessing
	}
	currentRank, ok := statusRank[current]
	if !ok {
		return false
	}
	nextRank, ok := statusRank[next]
	if !ok {
		return false
	}
	return nextRank > currentRank
}

// EnsureTransition returns a STATE_CONFLICT error when the move is not allowed.
func EnsureTransition(current, next enums.OrderStatus) error {
	if CanTransition(current, next) {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, "order status cannot move from "+current.String()+" to "+next.String())
}
