package engine

import "bigharvest.farm/internal/protocol"

// Action is one player command in transport-neutral form.
type Action struct {
	Kind       string
	X, Y       int
	CropID     string
	BuildingID string
	ItemID     string
	QuestID    string
	OrderID    string
	Qty        int
}

// ActionFromMsg converts a decoded ACT message.
func ActionFromMsg(m protocol.ActMsg) Action {
	return Action{
		Kind:       m.Action,
		X:          m.X,
		Y:          m.Y,
		CropID:     m.CropID,
		BuildingID: m.BuildingID,
		ItemID:     m.ItemID,
		QuestID:    m.QuestID,
		OrderID:    m.OrderID,
		Qty:        m.Qty,
	}
}

type actionHandler func(*Engine, int64, Action) error

var actionDispatch = map[string]actionHandler{
	protocol.ActPlant: func(e *Engine, now int64, a Action) error {
		return e.Plant(now, a.X, a.Y, a.CropID)
	},
	protocol.ActHarvest: func(e *Engine, now int64, a Action) error {
		return e.Harvest(now, a.X, a.Y)
	},
	protocol.ActBuild: func(e *Engine, now int64, a Action) error {
		return e.Build(now, a.X, a.Y, a.BuildingID)
	},
	protocol.ActCollect: func(e *Engine, now int64, a Action) error {
		return e.Collect(now, a.X, a.Y)
	},
	protocol.ActPlow: func(e *Engine, now int64, a Action) error {
		return e.Plow(now, a.X, a.Y)
	},
	protocol.ActWater: func(e *Engine, now int64, a Action) error {
		return e.Water(now, a.X, a.Y)
	},
	protocol.ActFertilize: func(e *Engine, now int64, a Action) error {
		return e.Fertilize(now, a.X, a.Y)
	},
	protocol.ActSellAll: func(e *Engine, now int64, _ Action) error {
		return e.SellAll(now)
	},
	protocol.ActSellItem: func(e *Engine, now int64, a Action) error {
		return e.SellItem(now, a.ItemID)
	},
	protocol.ActRepair: func(e *Engine, now int64, _ Action) error {
		return e.Repair(now)
	},
	protocol.ActClaimQuest: func(e *Engine, now int64, a Action) error {
		return e.ClaimQuestReward(now, a.QuestID)
	},
	protocol.ActFulfillOrder: func(e *Engine, now int64, a Action) error {
		return e.FulfillOrder(now, a.OrderID)
	},
	protocol.ActBuy: func(e *Engine, now int64, a Action) error {
		qty := a.Qty
		if qty == 0 {
			qty = 1
		}
		return e.Buy(now, a.ItemID, qty)
	},
	protocol.ActUpgradeStorage: func(e *Engine, now int64, _ Action) error {
		return e.UpgradeStorage(now)
	},
}

// Apply brings the periodic subsystems up to now, then runs the action.
func (e *Engine) Apply(now int64, a Action) error {
	e.Step(now)
	h := actionDispatch[a.Kind]
	if h == nil {
		return ErrUnknownAction
	}
	return h(e, now, a)
}
