package transform

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sovexe/helldivers2-data-pipeline/internal/models"
)

func intp(v int) *int { return &v }

func TestStatusRows_DenormalizesWarFields(t *testing.T) {
	status := &models.WarStatus{
		WarID:            801,
		Time:             1000000,
		ImpactMultiplier: 0.03,
		StoryBeatID32:    4228527425,
		PlanetStatus: []models.PlanetStatus{
			{Index: intp(0), Owner: 1, Health: 1000000, RegenPerSecond: 1388.9, Players: 12},
			{Index: intp(64), Owner: 2, Health: 525000, RegenPerSecond: 1388.9, Players: 31000},
		},
	}

	rows, skipped := StatusRows(status)
	require.Len(t, rows, 2)
	assert.Zero(t, skipped)

	assert.Equal(t, 0, rows[0].PlanetIndex)
	assert.Equal(t, 64, rows[1].PlanetIndex)
	for _, row := range rows {
		assert.Equal(t, int64(801), row.WarID)
		assert.Equal(t, int64(1000000), row.Time)
		assert.InDelta(t, 0.03, row.ImpactMultiplier, 1e-9)
		assert.Equal(t, int64(4228527425), row.StoryBeatID32)
	}
}

func TestInfoRows_FlattensPositionAndHeader(t *testing.T) {
	info := &models.WarInfo{
		WarID:                801,
		StartDate:            1706040313,
		EndDate:              1833653095,
		MinimumClientVersion: "0.3.0",
		PlanetInfos: []models.PlanetInfo{
			{
				Index:        intp(42),
				SettingsHash: 897386910,
				Position:     models.Position{X: 0.7, Y: -0.2},
				Waypoints:    []int32{43, 44},
				Sector:       5,
				MaxHealth:    1000000,
				InitialOwner: 1,
			},
		},
	}

	rows, skipped := InfoRows(info)
	require.Len(t, rows, 1)
	assert.Zero(t, skipped)

	row := rows[0]
	assert.Equal(t, 42, row.PlanetIndex)
	assert.InDelta(t, 0.7, row.PositionX, 1e-9)
	assert.InDelta(t, -0.2, row.PositionY, 1e-9)
	assert.Equal(t, []int32{43, 44}, row.Waypoints)
	assert.Equal(t, int64(1706040313), row.StartDate)
	assert.Equal(t, "0.3.0", row.MinimumClientVersion)
}

func TestCampaignRows(t *testing.T) {
	expire := 1709840383.805

	tests := []struct {
		name       string
		campaign   models.CampaignPlanet
		wantExpire bool
	}{
		{
			name: "defense campaign with expiry",
			campaign: models.CampaignPlanet{
				PlanetIndex:    intp(126),
				Name:           "Vandalon IV",
				Faction:        "Automaton",
				Players:        52144,
				Health:         423000,
				MaxHealth:      1000000,
				Percentage:     42.3,
				Defense:        true,
				Biome:          models.Biome{Slug: "icemoss", Description: "Frozen tundra"},
				ExpireDateTime: &expire,
			},
			wantExpire: true,
		},
		{
			name: "liberation campaign without expiry",
			campaign: models.CampaignPlanet{
				PlanetIndex: intp(34),
				Name:        "Hellmire",
				Faction:     "Terminids",
				Biome:       models.Biome{Slug: "desolate"},
			},
			wantExpire: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, skipped := CampaignRows([]models.CampaignPlanet{tt.campaign})
			require.Len(t, rows, 1)
			assert.Zero(t, skipped)

			row := rows[0]
			assert.Equal(t, *tt.campaign.PlanetIndex, row.PlanetIndex)
			assert.Equal(t, tt.campaign.Biome.Slug, row.BiomeSlug)
			assert.Equal(t, tt.campaign.Biome.Description, row.BiomeDescription)

			if tt.wantExpire {
				require.NotNil(t, row.ExpireAt)
				assert.Equal(t, int64(1709840383), row.ExpireAt.Unix())
				assert.Equal(t, time.UTC, row.ExpireAt.Location())
			} else {
				assert.Nil(t, row.ExpireAt)
			}
		})
	}
}

func TestStatusRows_SkipsEntriesWithoutIndex(t *testing.T) {
	status := &models.WarStatus{
		WarID: 801,
		PlanetStatus: []models.PlanetStatus{
			{Owner: 2, Health: 5, Players: 7}, // no index field in the payload
			{Index: intp(0), Owner: 1, Health: 1000000, Players: 12},
		},
	}

	rows, skipped := StatusRows(status)
	require.Len(t, rows, 1)
	assert.Equal(t, 1, skipped)
	assert.Equal(t, 0, rows[0].PlanetIndex)
	assert.Equal(t, 12, rows[0].Players)
}

func TestInfoRows_SkipsEntriesWithoutIndex(t *testing.T) {
	info := &models.WarInfo{
		WarID: 801,
		PlanetInfos: []models.PlanetInfo{
			{SettingsHash: 123},
		},
	}

	rows, skipped := InfoRows(info)
	assert.Empty(t, rows)
	assert.Equal(t, 1, skipped)
}

func TestCampaignRows_SkipsEntriesWithoutIndex(t *testing.T) {
	rows, skipped := CampaignRows([]models.CampaignPlanet{
		{Name: "Nowhere", Players: 42},
		{PlanetIndex: intp(34), Name: "Hellmire"},
	})

	require.Len(t, rows, 1)
	assert.Equal(t, 1, skipped)
	assert.Equal(t, 34, rows[0].PlanetIndex)
}

func TestMajorOrderRows_KeepsTasksAsJSON(t *testing.T) {
	orders := []models.MajorOrder{
		{
			ID32:      2179194187,
			Progress:  []int32{1, 0},
			ExpiresIn: 432000,
			Setting: models.MajorOrderSetting{
				Type:            4,
				OverrideTitle:   "MAJOR ORDER",
				TaskDescription: "Liberate the planets",
				Tasks:           []byte(`[{"type":11,"values":[1,126]}]`),
				Reward:          models.MajorOrderReward{Type: 1, ID32: 897894480, Amount: 45},
			},
		},
	}

	rows, err := MajorOrderRows(orders)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, int64(2179194187), row.ID32)
	assert.JSONEq(t, `[{"type":11,"values":[1,126]}]`, row.Tasks)
	assert.Equal(t, int64(45), row.RewardAmount)
}

func TestMajorOrderRows_EmptyTasks(t *testing.T) {
	rows, err := MajorOrderRows([]models.MajorOrder{{ID32: 1}})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "null", rows[0].Tasks)
}

func TestPlanetRows_SortedAndFlattened(t *testing.T) {
	planets := map[int]models.Planet{
		64: {Name: "Meridia", Sector: "Umlaut", Biome: &models.Biome{Slug: "toxic"}},
		0:  {Name: "Super Earth", Sector: "Sol", Environmentals: []byte(`[{"name":"None"}]`)},
		12: {Name: "Pilen V", Sector: "Hydra"},
	}

	rows := PlanetRows(planets)
	require.Len(t, rows, 3)

	assert.Equal(t, []int{0, 12, 64}, []int{rows[0].PlanetIndex, rows[1].PlanetIndex, rows[2].PlanetIndex})
	assert.JSONEq(t, `[{"name":"None"}]`, rows[0].Environmentals)
	assert.Equal(t, "[]", rows[1].Environmentals)
	assert.Equal(t, "toxic", rows[2].BiomeSlug)
	assert.Empty(t, rows[1].BiomeSlug)
}

func TestHistoryRows_SkipsUnparseableTimestamps(t *testing.T) {
	history := map[int][]models.HistoryEntry{
		5: {
			{CreatedAt: "2024-04-08T12:00:00", CurrentHealth: 900000, MaxHealth: 1000000, PlayerCount: 1200},
			{CreatedAt: "not-a-timestamp", CurrentHealth: 1},
			{CreatedAt: "2024-04-08T13:00:00Z", CurrentHealth: 880000, MaxHealth: 1000000, PlayerCount: 1500},
		},
	}

	rows := HistoryRows(history)
	require.Len(t, rows, 2)
	assert.Equal(t, 5, rows[0].PlanetIndex)
	assert.Equal(t, int64(900000), rows[0].CurrentHealth)
	assert.Equal(t, 1500, rows[1].PlayerCount)
}

func TestBuild_LeavesUnfetchedSectionsNil(t *testing.T) {
	snap := &models.Snapshot{
		Status: &models.WarStatus{
			WarID:        801,
			PlanetStatus: []models.PlanetStatus{{Index: intp(1)}, {}},
		},
		News: []models.NewsItem{{ID: 2804, Message: "A dispatch"}},
	}

	rs, err := Build(snap)
	require.NoError(t, err)

	assert.Len(t, rs.Status, 1)
	assert.Equal(t, 1, rs.Skipped)
	assert.Len(t, rs.News, 1)
	assert.Nil(t, rs.Info)
	assert.Nil(t, rs.Campaign)
	assert.Nil(t, rs.MajorOrders)
	assert.Nil(t, rs.Planets)
	assert.Nil(t, rs.History)
}
