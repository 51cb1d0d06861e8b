package models

import (
	"time"

	"github.com/google/uuid"
)

// Row types are the flattened, persistable form of the API payloads. Field
// order follows the table columns.

type WarStatusRow struct {
	PlanetIndex      int
	Owner            int
	Health           int64
	RegenPerSecond   float64
	Players          int
	WarID            int64
	Time             int64
	ImpactMultiplier float64
	StoryBeatID32    int64
}

type WarInfoRow struct {
	PlanetIndex          int
	SettingsHash         int64
	PositionX            float64
	PositionY            float64
	Waypoints            []int32
	Sector               int
	MaxHealth            int64
	Disabled             bool
	InitialOwner         int
	WarID                int64
	StartDate            int64
	EndDate              int64
	MinimumClientVersion string
}

type NewsRow struct {
	ID        int64
	Published int64
	Type      int
	TagIDs    []int32
	Message   string
}

type CampaignRow struct {
	PlanetIndex      int
	Name             string
	Faction          string
	Players          int
	Health           int64
	MaxHealth        int64
	Percentage       float64
	Defense          bool
	MajorOrder       bool
	BiomeSlug        string
	BiomeDescription string
	ExpireAt         *time.Time
}

type MajorOrderRow struct {
	ID32            int64
	Progress        []int32
	ExpiresIn       int64
	SettingType     int
	OverrideTitle   string
	OverrideBrief   string
	TaskDescription string
	Tasks           string
	RewardType      int
	RewardID32      int64
	RewardAmount    int64
	Flags           int
}

type PlanetRow struct {
	PlanetIndex      int
	Name             string
	Sector           string
	BiomeSlug        string
	BiomeDescription string
	Environmentals   string
}

type HistoryRow struct {
	CreatedAt     time.Time
	PlanetIndex   int
	CurrentHealth int64
	MaxHealth     int64
	PlayerCount   int
}

// RecordSet holds every row produced from one snapshot. A nil slice means the
// section was not fetched and must not be touched in the database; an empty
// slice means the section was fetched and is empty.
type RecordSet struct {
	Status      []WarStatusRow
	Info        []WarInfoRow
	News        []NewsRow
	Campaign    []CampaignRow
	MajorOrders []MajorOrderRow
	Planets     []PlanetRow
	History     []HistoryRow

	// Skipped counts payload entries dropped during transformation because
	// they were missing their planet index.
	Skipped int
}

// RowCounts maps a table name to the number of rows written to it.
type RowCounts map[string]int

func (c RowCounts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

// IngestRun is the bookkeeping record of one pipeline run.
type IngestRun struct {
	ID         uuid.UUID  `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Status     string     `json:"status"`
	Counts     RowCounts  `json:"row_counts,omitempty"`
	Error      string     `json:"error,omitempty"`
}
