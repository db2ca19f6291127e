package engine

import (
	"fmt"

	"bigharvest.farm/internal/protocol"
)

// Reject is a failed precondition. The action it rejects left the state untouched.
type Reject struct {
	Code   string
	Reason string
	kind   *Reject
}

func (r *Reject) Error() string { return r.Reason }

// Is matches the sentinel a hinted rejection was derived from.
func (r *Reject) Is(target error) bool {
	t, ok := target.(*Reject)
	if !ok {
		return false
	}
	return r == t || (r.kind != nil && r.kind == t)
}

func (r *Reject) withHint(hint string) *Reject {
	if hint == "" {
		return r
	}
	return &Reject{Code: r.Code, Reason: fmt.Sprintf("%s (did you mean %q?)", r.Reason, hint), kind: r}
}

func rejectf(code, reason string) *Reject { return &Reject{Code: code, Reason: reason} }

var (
	ErrOutOfBounds     = rejectf(protocol.ErrInvalidTarget, "tile is outside the farm")
	ErrUnknownAction   = rejectf(protocol.ErrBadRequest, "unknown action")
	ErrUnknownCrop     = rejectf(protocol.ErrBadRequest, "unknown crop")
	ErrUnknownBuilding = rejectf(protocol.ErrBadRequest, "unknown building")
	ErrUnknownItem     = rejectf(protocol.ErrBadRequest, "unknown item")
	ErrUnknownQuest    = rejectf(protocol.ErrBadRequest, "unknown quest")
	ErrUnknownOrder    = rejectf(protocol.ErrBadRequest, "unknown order")
	ErrBadQuantity     = rejectf(protocol.ErrBadRequest, "quantity must be between 1 and 999")

	ErrLevelTooLow   = rejectf(protocol.ErrNoPermission, "level too low")
	ErrWrongSeason   = rejectf(protocol.ErrBlocked, "crop cannot be planted this season")
	ErrTileOccupied  = rejectf(protocol.ErrConflict, "tile is occupied")
	ErrNotPlowed     = rejectf(protocol.ErrBlocked, "tile is not plowed")
	ErrAlreadyPlowed = rejectf(protocol.ErrConflict, "tile is already plowed")
	ErrNoCrop        = rejectf(protocol.ErrInvalidTarget, "no crop on this tile")
	ErrNoBuilding    = rejectf(protocol.ErrInvalidTarget, "no building on this tile")
	ErrNotReady      = rejectf(protocol.ErrBlocked, "not ready yet")
	ErrFullyGrown    = rejectf(protocol.ErrConflict, "crop is already fully grown")

	ErrNoMoney       = rejectf(protocol.ErrNoResource, "not enough money")
	ErrNoEnergy      = rejectf(protocol.ErrNoResource, "not enough energy")
	ErrStorageFull   = rejectf(protocol.ErrNoResource, "storage is full")
	ErrMissingInputs = rejectf(protocol.ErrNoResource, "missing production inputs")
	ErrHoeBroken     = rejectf(protocol.ErrNoResource, "hoe is broken")
	ErrCanBroken     = rejectf(protocol.ErrNoResource, "watering can is broken")
	ErrNoWater       = rejectf(protocol.ErrNoResource, "no water left")
	ErrNoFertilizer  = rejectf(protocol.ErrNoResource, "no fertilizer left")
	ErrCannotRepair  = rejectf(protocol.ErrNoResource, "no toolkit and not enough money to repair")

	ErrNothingToSell = rejectf(protocol.ErrNoResource, "nothing to sell")
	ErrNotSellable   = rejectf(protocol.ErrBadRequest, "item cannot be sold")
	ErrNotForSale    = rejectf(protocol.ErrBadRequest, "item cannot be bought")

	ErrQuestIncomplete = rejectf(protocol.ErrBlocked, "quest is not completed")
	ErrRewardClaimed   = rejectf(protocol.ErrConflict, "reward already claimed")

	ErrMissingOrderItems = rejectf(protocol.ErrNoResource, "missing items for this order")
	ErrOrderFulfilled    = rejectf(protocol.ErrConflict, "order already fulfilled")
	ErrOrderExpired      = rejectf(protocol.ErrStale, "order has expired")
)
