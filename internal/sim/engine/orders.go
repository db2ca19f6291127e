package engine

import "bigharvest.farm/internal/sim/catalogs"

// refreshOrders reposts every order whose window closed at least
// OrderRestockMs ago, fulfilled or not.
func (e *Engine) refreshOrders(now int64) {
	for _, def := range e.cats.Orders.Defs {
		o := e.st.Order(def.ID)
		if o == nil || now < o.ExpiresAt+e.tune.OrderRestockMs {
			continue
		}
		o.PostedAt = now
		o.ExpiresAt = now + def.DurationMs
		o.Completed = false
		e.emit(now, "ORDER_POSTED", "order_id", def.ID, "expires_at", o.ExpiresAt)
	}
}

// FulfillOrder delivers every item an open order asks for and pays its
// reward. Nothing is consumed unless the whole order can be delivered.
func (e *Engine) FulfillOrder(now int64, orderID string) error {
	def, ok := e.cats.Order(orderID)
	if !ok {
		ids := make([]string, 0, len(e.cats.Orders.Defs))
		for _, d := range e.cats.Orders.Defs {
			ids = append(ids, d.ID)
		}
		return ErrUnknownOrder.withHint(catalogs.Suggest(orderID, ids))
	}
	o := e.st.Order(def.ID)
	if o == nil {
		return ErrUnknownOrder
	}
	if o.Completed {
		return ErrOrderFulfilled
	}
	if now >= o.ExpiresAt {
		return ErrOrderExpired
	}
	for _, id := range def.ItemIDs() {
		if e.st.Inventory[id] < def.Items[id] {
			return ErrMissingOrderItems
		}
	}

	for id, n := range def.Items {
		e.st.Inventory[id] -= n
	}
	o.Completed = true
	e.earn(def.RewardMoney)
	e.st.Stats.OrdersFulfilled++
	e.emit(now, "ORDER_FULFILLED", "order_id", def.ID, "items", def.Items, "money", def.RewardMoney, "xp", def.RewardXP)
	e.addXP(now, def.RewardXP)
	return nil
}
