package models

import "github.com/goccy/go-json"

// WarStatus is the payload of GET war/status: war-wide counters plus the
// per-planet status list.
type WarStatus struct {
	WarID            int64          `json:"warId"`
	Time             int64          `json:"time"`
	ImpactMultiplier float64        `json:"impactMultiplier"`
	StoryBeatID32    int64          `json:"storyBeatId32"`
	PlanetStatus     []PlanetStatus `json:"planetStatus"`
}

// PlanetStatus keys its planet by Index. The pointer distinguishes a payload
// entry missing the field from the real planet 0.
type PlanetStatus struct {
	Index          *int    `json:"index"`
	Owner          int     `json:"owner"`
	Health         int64   `json:"health"`
	RegenPerSecond float64 `json:"regenPerSecond"`
	Players        int     `json:"players"`
}

// WarInfo is the payload of GET war/info.
type WarInfo struct {
	WarID                int64        `json:"warId"`
	StartDate            int64        `json:"startDate"`
	EndDate              int64        `json:"endDate"`
	MinimumClientVersion string       `json:"minimumClientVersion"`
	PlanetInfos          []PlanetInfo `json:"planetInfos"`
}

type PlanetInfo struct {
	Index        *int     `json:"index"`
	SettingsHash int64    `json:"settingsHash"`
	Position     Position `json:"position"`
	Waypoints    []int32  `json:"waypoints"`
	Sector       int      `json:"sector"`
	MaxHealth    int64    `json:"maxHealth"`
	Disabled     bool     `json:"disabled"`
	InitialOwner int      `json:"initialOwner"`
}

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NewsItem is one entry of the GET war/news list.
type NewsItem struct {
	ID        int64   `json:"id"`
	Published int64   `json:"published"`
	Type      int     `json:"type"`
	TagIDs    []int32 `json:"tagIds"`
	Message   string  `json:"message"`
}

// CampaignPlanet is one entry of the GET war/campaign list.
// ExpireDateTime is epoch seconds with a fractional part, null for
// non-defense campaigns.
type CampaignPlanet struct {
	PlanetIndex    *int     `json:"planetIndex"`
	Name           string   `json:"name"`
	Faction        string   `json:"faction"`
	Players        int      `json:"players"`
	Health         int64    `json:"health"`
	MaxHealth      int64    `json:"maxHealth"`
	Percentage     float64  `json:"percentage"`
	Defense        bool     `json:"defense"`
	MajorOrder     bool     `json:"majorOrder"`
	Biome          Biome    `json:"biome"`
	ExpireDateTime *float64 `json:"expireDateTime"`
}

type Biome struct {
	Slug        string `json:"slug"`
	Description string `json:"description"`
}

// MajorOrder is one entry of the GET war/major-orders list. Task settings are
// deeply nested and version-dependent, so they stay raw JSON.
type MajorOrder struct {
	ID32      int64             `json:"id32"`
	Progress  []int32           `json:"progress"`
	ExpiresIn int64             `json:"expiresIn"`
	Setting   MajorOrderSetting `json:"setting"`
}

type MajorOrderSetting struct {
	Type            int              `json:"type"`
	OverrideTitle   string           `json:"overrideTitle"`
	OverrideBrief   string           `json:"overrideBrief"`
	TaskDescription string           `json:"taskDescription"`
	Tasks           json.RawMessage  `json:"tasks"`
	Reward          MajorOrderReward `json:"reward"`
	Flags           int              `json:"flags"`
}

type MajorOrderReward struct {
	Type   int   `json:"type"`
	ID32   int64 `json:"id32"`
	Amount int64 `json:"amount"`
}

// Planet is one value of the GET planets object, which is keyed by the planet
// index as a string.
type Planet struct {
	Name           string          `json:"name"`
	Sector         string          `json:"sector"`
	Biome          *Biome          `json:"biome"`
	Environmentals json.RawMessage `json:"environmentals"`
}

// HistoryEntry is one entry of GET war/history/{planetIndex}.
type HistoryEntry struct {
	CreatedAt     string `json:"created_at"`
	PlanetIndex   int    `json:"planet_index"`
	CurrentHealth int64  `json:"current_health"`
	MaxHealth     int64  `json:"max_health"`
	PlayerCount   int    `json:"player_count"`
}

// Snapshot is one full pull of the war API. Sections that failed to fetch are
// nil and carry their error in Errors keyed by section name.
type Snapshot struct {
	Status      *WarStatus
	Info        *WarInfo
	News        []NewsItem
	Campaign    []CampaignPlanet
	MajorOrders []MajorOrder
	Planets     map[int]Planet
	History     map[int][]HistoryEntry

	Errors map[string]error
}

// SectionsFetched counts the sections of the snapshot that were retrieved
// successfully. History is counted with the planets section it depends on.
func (s *Snapshot) SectionsFetched() int {
	n := 0
	if s.Status != nil {
		n++
	}
	if s.Info != nil {
		n++
	}
	if s.News != nil {
		n++
	}
	if s.Campaign != nil {
		n++
	}
	if s.MajorOrders != nil {
		n++
	}
	if s.Planets != nil {
		n++
	}
	return n
}
