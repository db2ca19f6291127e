package protocol

import "encoding/json"

// Action names carried by ACT.
const (
	ActPlant          = "PLANT"
	ActHarvest        = "HARVEST"
	ActBuild          = "BUILD"
	ActCollect        = "COLLECT"
	ActPlow           = "PLOW"
	ActWater          = "WATER"
	ActFertilize      = "FERTILIZE"
	ActSellAll        = "SELL_ALL"
	ActSellItem       = "SELL_ITEM"
	ActRepair         = "REPAIR"
	ActClaimQuest     = "CLAIM_QUEST"
	ActFulfillOrder   = "FULFILL_ORDER"
	ActBuy            = "BUY"
	ActUpgradeStorage = "UPGRADE_STORAGE"
)

// Event is one simulation notification (LEVEL_UP, WEATHER, MARKET, ...).
type Event map[string]interface{}

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Profile         string `json:"profile,omitempty"`
	ClientName      string `json:"client_name,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	SessionID       string          `json:"session_id"`
	Profile         string          `json:"profile"`
	IdleGain        int64           `json:"idle_gain"`
	Level           LevelInfo       `json:"level"`
	Catalogs        CatalogDigests  `json:"catalogs"`
	State           json.RawMessage `json:"state"`
}

type CatalogDigests struct {
	CropsDigest     string `json:"crops_digest"`
	BuildingsDigest string `json:"buildings_digest"`
	ItemsDigest     string `json:"items_digest"`
	QuestsDigest    string `json:"quests_digest"`
	OrdersDigest    string `json:"orders_digest"`
	SeasonsDigest   string `json:"seasons_digest"`
}

type LevelInfo struct {
	Level          int   `json:"level"`
	CurrentLevelXP int64 `json:"current_level_xp"`
	NextLevelXP    int64 `json:"next_level_xp"`
}

// ACT (client -> server)
type ActMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ActID           string `json:"act_id,omitempty"`
	Action          string `json:"action"`
	X               int    `json:"x,omitempty"`
	Y               int    `json:"y,omitempty"`
	CropID          string `json:"crop_id,omitempty"`
	BuildingID      string `json:"building_id,omitempty"`
	ItemID          string `json:"item_id,omitempty"`
	QuestID         string `json:"quest_id,omitempty"`
	OrderID         string `json:"order_id,omitempty"`
	Qty             int    `json:"qty,omitempty"`
}

// ACT_RESULT (server -> client)
type ActResultMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	ActID           string  `json:"act_id,omitempty"`
	Action          string  `json:"action"`
	OK              bool    `json:"ok"`
	Code            string  `json:"code,omitempty"`
	Message         string  `json:"message,omitempty"`
	Events          []Event `json:"events,omitempty"`
}

// STATE (server -> client)
type StateMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	ServerTime      int64           `json:"server_time"`
	Level           LevelInfo       `json:"level"`
	Events          []Event         `json:"events,omitempty"`
	State           json.RawMessage `json:"state"`
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}
