package catalogs

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"sort"
)

type OrderCatalog struct {
	Defs   []OrderDef
	ByID   map[string]OrderDef
	Digest string
}

// OrderDef is a delivery request posted on the order board. Each posting
// stays open for DurationMs and can be fulfilled once.
type OrderDef struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Items       map[string]int `json:"items"`
	RewardMoney int64          `json:"reward_money"`
	RewardXP    int64          `json:"reward_xp"`
	DurationMs  int64          `json:"duration_ms"`
}

// ItemIDs returns the requested item ids in a stable order.
func (d OrderDef) ItemIDs() []string {
	ids := make([]string, 0, len(d.Items))
	for id := range d.Items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (c *Catalogs) Order(id string) (OrderDef, bool) {
	d, ok := c.Orders.ByID[id]
	return d, ok
}

func loadOrders(fsys fs.FS, name string, c *Catalogs) error {
	raw, err := fs.ReadFile(fsys, name)
	if err != nil {
		return err
	}
	c.Orders.Digest = sha256Hex(raw)

	var defs []OrderDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	c.Orders.ByID = make(map[string]OrderDef, len(defs))
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("%s: empty id", name)
		}
		if _, dup := c.Orders.ByID[d.ID]; dup {
			return fmt.Errorf("%s: duplicate id %q", name, d.ID)
		}
		if len(d.Items) == 0 {
			return fmt.Errorf("%s: %s: an order must request at least one item", name, d.ID)
		}
		for item, n := range d.Items {
			if _, ok := c.Items.ByID[item]; !ok {
				return fmt.Errorf("%s: %s: unknown item %q", name, d.ID, item)
			}
			if n <= 0 {
				return fmt.Errorf("%s: %s: quantity of %q must be positive", name, d.ID, item)
			}
		}
		if d.RewardMoney <= 0 || d.RewardXP < 0 || d.DurationMs <= 0 {
			return fmt.Errorf("%s: %s: reward_money and duration_ms must be positive", name, d.ID)
		}
		c.Orders.ByID[d.ID] = d
		c.Orders.Defs = append(c.Orders.Defs, d)
	}
	return nil
}
