package farm

import (
	"encoding/json"
	"math"
)

type Tile struct {
	Crop            *CropInstance
	Building        *BuildingInstance
	Plowed          bool
	FertilizedBonus bool
}

type CropInstance struct {
	CropID    string
	PlantedAt int64
}

type BuildingInstance struct {
	BuildingID string
	StartedAt  int64
	// LastCollectedAt is nil until the first collection.
	LastCollectedAt *int64
}

func (t Tile) Empty() bool { return t.Crop == nil && t.Building == nil }

func (t Tile) clone() Tile {
	c := t
	if t.Crop != nil {
		cp := *t.Crop
		c.Crop = &cp
	}
	if t.Building != nil {
		b := *t.Building
		if b.LastCollectedAt != nil {
			lc := *b.LastCollectedAt
			b.LastCollectedAt = &lc
		}
		c.Building = &b
	}
	return c
}

// tileJSON is the flat persisted tile shape shared with older saves.
type tileJSON struct {
	Crop                   *string  `json:"crop"`
	CropPlantedAt          *float64 `json:"cropPlantedAt"`
	Building               *string  `json:"building"`
	BuildingStartedAt      *float64 `json:"buildingStartedAt"`
	LastProductCollectedAt *float64 `json:"lastProductCollectedAt"`
	Plowed                 bool     `json:"plowed"`
	FertilizedBonus        bool     `json:"fertilizedBonus"`
}

type tileOut struct {
	Crop                   *string `json:"crop"`
	CropPlantedAt          *int64  `json:"cropPlantedAt"`
	Building               *string `json:"building"`
	BuildingStartedAt      *int64  `json:"buildingStartedAt"`
	LastProductCollectedAt *int64  `json:"lastProductCollectedAt"`
	Plowed                 bool    `json:"plowed"`
	FertilizedBonus        bool    `json:"fertilizedBonus"`
}

func (t Tile) MarshalJSON() ([]byte, error) {
	var out tileOut
	if t.Crop != nil {
		id, at := t.Crop.CropID, t.Crop.PlantedAt
		out.Crop, out.CropPlantedAt = &id, &at
	}
	if t.Building != nil {
		id, at := t.Building.BuildingID, t.Building.StartedAt
		out.Building, out.BuildingStartedAt = &id, &at
		if t.Building.LastCollectedAt != nil {
			lc := *t.Building.LastCollectedAt
			out.LastProductCollectedAt = &lc
		}
	}
	out.Plowed = t.Plowed
	out.FertilizedBonus = t.FertilizedBonus
	return json.Marshal(out)
}

func (t *Tile) UnmarshalJSON(b []byte) error {
	var in tileJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*t = Tile{Plowed: in.Plowed, FertilizedBonus: in.FertilizedBonus}
	if in.Crop != nil && *in.Crop != "" {
		t.Crop = &CropInstance{CropID: *in.Crop, PlantedAt: ms(in.CropPlantedAt)}
	}
	if in.Building != nil && *in.Building != "" {
		t.Building = &BuildingInstance{
			BuildingID: *in.Building,
			StartedAt:  ms(in.BuildingStartedAt),
		}
		if lc := ms(in.LastProductCollectedAt); lc > 0 {
			t.Building.LastCollectedAt = &lc
		}
	}
	return nil
}

func ms(v *float64) int64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) || *v < 0 {
		return 0
	}
	return int64(*v)
}
