package transform

import (
	"fmt"
	"sort"
	"time"

	"github.com/goccy/go-json"

	"github.com/Sovexe/helldivers2-data-pipeline/internal/models"
)

// Build flattens one snapshot into the row set the loader persists. Sections
// missing from the snapshot stay nil in the result so the loader leaves their
// tables untouched. Entries without a planet index are dropped and counted in
// the result's Skipped field.
func Build(snap *models.Snapshot) (*models.RecordSet, error) {
	rs := &models.RecordSet{}

	if snap.Status != nil {
		var skipped int
		rs.Status, skipped = StatusRows(snap.Status)
		rs.Skipped += skipped
	}
	if snap.Info != nil {
		var skipped int
		rs.Info, skipped = InfoRows(snap.Info)
		rs.Skipped += skipped
	}
	if snap.News != nil {
		rs.News = NewsRows(snap.News)
	}
	if snap.Campaign != nil {
		var skipped int
		rs.Campaign, skipped = CampaignRows(snap.Campaign)
		rs.Skipped += skipped
	}
	if snap.MajorOrders != nil {
		orders, err := MajorOrderRows(snap.MajorOrders)
		if err != nil {
			return nil, fmt.Errorf("transform major orders: %w", err)
		}
		rs.MajorOrders = orders
	}
	if snap.Planets != nil {
		rs.Planets = PlanetRows(snap.Planets)
	}
	if snap.History != nil {
		rs.History = HistoryRows(snap.History)
	}

	return rs, nil
}

// StatusRows denormalizes the war-level counters onto every planet status.
// Entries without an index are skipped; the second return value counts them.
func StatusRows(status *models.WarStatus) ([]models.WarStatusRow, int) {
	skipped := 0
	rows := make([]models.WarStatusRow, 0, len(status.PlanetStatus))
	for _, ps := range status.PlanetStatus {
		if ps.Index == nil {
			skipped++
			continue
		}
		rows = append(rows, models.WarStatusRow{
			PlanetIndex:      *ps.Index,
			Owner:            ps.Owner,
			Health:           ps.Health,
			RegenPerSecond:   ps.RegenPerSecond,
			Players:          ps.Players,
			WarID:            status.WarID,
			Time:             status.Time,
			ImpactMultiplier: status.ImpactMultiplier,
			StoryBeatID32:    status.StoryBeatID32,
		})
	}
	return rows, skipped
}

// InfoRows denormalizes the war-info header onto every planet info. Entries
// without an index are skipped and counted.
func InfoRows(info *models.WarInfo) ([]models.WarInfoRow, int) {
	skipped := 0
	rows := make([]models.WarInfoRow, 0, len(info.PlanetInfos))
	for _, pi := range info.PlanetInfos {
		if pi.Index == nil {
			skipped++
			continue
		}
		rows = append(rows, models.WarInfoRow{
			PlanetIndex:          *pi.Index,
			SettingsHash:         pi.SettingsHash,
			PositionX:            pi.Position.X,
			PositionY:            pi.Position.Y,
			Waypoints:            pi.Waypoints,
			Sector:               pi.Sector,
			MaxHealth:            pi.MaxHealth,
			Disabled:             pi.Disabled,
			InitialOwner:         pi.InitialOwner,
			WarID:                info.WarID,
			StartDate:            info.StartDate,
			EndDate:              info.EndDate,
			MinimumClientVersion: info.MinimumClientVersion,
		})
	}
	return rows, skipped
}

func NewsRows(news []models.NewsItem) []models.NewsRow {
	rows := make([]models.NewsRow, 0, len(news))
	for _, item := range news {
		rows = append(rows, models.NewsRow{
			ID:        item.ID,
			Published: item.Published,
			Type:      item.Type,
			TagIDs:    item.TagIDs,
			Message:   item.Message,
		})
	}
	return rows
}

// CampaignRows flattens the biome and converts the expiry epoch into a
// timestamp. Entries without a planet index are skipped and counted.
func CampaignRows(campaign []models.CampaignPlanet) ([]models.CampaignRow, int) {
	skipped := 0
	rows := make([]models.CampaignRow, 0, len(campaign))
	for _, cp := range campaign {
		if cp.PlanetIndex == nil {
			skipped++
			continue
		}
		row := models.CampaignRow{
			PlanetIndex:      *cp.PlanetIndex,
			Name:             cp.Name,
			Faction:          cp.Faction,
			Players:          cp.Players,
			Health:           cp.Health,
			MaxHealth:        cp.MaxHealth,
			Percentage:       cp.Percentage,
			Defense:          cp.Defense,
			MajorOrder:       cp.MajorOrder,
			BiomeSlug:        cp.Biome.Slug,
			BiomeDescription: cp.Biome.Description,
		}
		if cp.ExpireDateTime != nil {
			sec := int64(*cp.ExpireDateTime)
			nsec := int64((*cp.ExpireDateTime - float64(sec)) * float64(time.Second))
			expire := time.Unix(sec, nsec).UTC()
			row.ExpireAt = &expire
		}
		rows = append(rows, row)
	}
	return rows, skipped
}

// MajorOrderRows flattens order settings and rewards; the task list stays
// JSON and lands in a jsonb column.
func MajorOrderRows(orders []models.MajorOrder) ([]models.MajorOrderRow, error) {
	rows := make([]models.MajorOrderRow, 0, len(orders))
	for _, order := range orders {
		tasks := "null"
		if len(order.Setting.Tasks) > 0 {
			encoded, err := json.Marshal(order.Setting.Tasks)
			if err != nil {
				return nil, fmt.Errorf("encode tasks for order %d: %w", order.ID32, err)
			}
			tasks = string(encoded)
		}

		rows = append(rows, models.MajorOrderRow{
			ID32:            order.ID32,
			Progress:        order.Progress,
			ExpiresIn:       order.ExpiresIn,
			SettingType:     order.Setting.Type,
			OverrideTitle:   order.Setting.OverrideTitle,
			OverrideBrief:   order.Setting.OverrideBrief,
			TaskDescription: order.Setting.TaskDescription,
			Tasks:           tasks,
			RewardType:      order.Setting.Reward.Type,
			RewardID32:      order.Setting.Reward.ID32,
			RewardAmount:    order.Setting.Reward.Amount,
			Flags:           order.Setting.Flags,
		})
	}
	return rows, nil
}

// PlanetRows flattens the planet catalogue. Rows are ordered by planet index
// so repeated runs touch the table in a stable order.
func PlanetRows(planets map[int]models.Planet) []models.PlanetRow {
	indexes := make([]int, 0, len(planets))
	for idx := range planets {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	rows := make([]models.PlanetRow, 0, len(planets))
	for _, idx := range indexes {
		planet := planets[idx]

		row := models.PlanetRow{
			PlanetIndex:    idx,
			Name:           planet.Name,
			Sector:         planet.Sector,
			Environmentals: "[]",
		}
		if planet.Biome != nil {
			row.BiomeSlug = planet.Biome.Slug
			row.BiomeDescription = planet.Biome.Description
		}
		if len(planet.Environmentals) > 0 {
			row.Environmentals = string(planet.Environmentals)
		}

		rows = append(rows, row)
	}
	return rows
}

// HistoryRows converts per-planet history entries. Entries with timestamps
// that do not parse are skipped.
func HistoryRows(history map[int][]models.HistoryEntry) []models.HistoryRow {
	indexes := make([]int, 0, len(history))
	for idx := range history {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	var rows []models.HistoryRow
	for _, idx := range indexes {
		for _, entry := range history[idx] {
			createdAt, err := parseHistoryTime(entry.CreatedAt)
			if err != nil {
				continue
			}
			rows = append(rows, models.HistoryRow{
				CreatedAt:     createdAt,
				PlanetIndex:   idx,
				CurrentHealth: entry.CurrentHealth,
				MaxHealth:     entry.MaxHealth,
				PlayerCount:   entry.PlayerCount,
			})
		}
	}
	return rows
}

func parseHistoryTime(value string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}
