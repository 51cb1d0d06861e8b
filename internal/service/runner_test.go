package service

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sovexe/helldivers2-data-pipeline/internal"
	"github.com/Sovexe/helldivers2-data-pipeline/internal/filter"
	"github.com/Sovexe/helldivers2-data-pipeline/internal/models"
)

var errUpstream = errors.New("upstream unavailable")

type fakeWarAPI struct {
	status      *models.WarStatus
	info        *models.WarInfo
	news        []models.NewsItem
	campaign    []models.CampaignPlanet
	majorOrders []models.MajorOrder
	planets     map[int]models.Planet
	history     map[int][]models.HistoryEntry

	failAll bool
}

func (f *fakeWarAPI) WarStatus(context.Context) (*models.WarStatus, error) {
	if f.failAll || f.status == nil {
		return nil, errUpstream
	}
	return f.status, nil
}

func (f *fakeWarAPI) WarInfo(context.Context) (*models.WarInfo, error) {
	if f.failAll || f.info == nil {
		return nil, errUpstream
	}
	return f.info, nil
}

func (f *fakeWarAPI) News(context.Context) ([]models.NewsItem, error) {
	if f.failAll || f.news == nil {
		return nil, errUpstream
	}
	return f.news, nil
}

func (f *fakeWarAPI) Campaign(context.Context) ([]models.CampaignPlanet, error) {
	if f.failAll || f.campaign == nil {
		return nil, errUpstream
	}
	return f.campaign, nil
}

func (f *fakeWarAPI) MajorOrders(context.Context) ([]models.MajorOrder, error) {
	if f.failAll || f.majorOrders == nil {
		return nil, errUpstream
	}
	return f.majorOrders, nil
}

func (f *fakeWarAPI) Planets(context.Context) (map[int]models.Planet, error) {
	if f.failAll || f.planets == nil {
		return nil, errUpstream
	}
	return f.planets, nil
}

func (f *fakeWarAPI) PlanetHistories(_ context.Context, _ []int, _ int) map[int][]models.HistoryEntry {
	return f.history
}

type fakeStore struct {
	inserted []models.IngestRun
	loaded   []*models.RecordSet

	finishedStatus string
	finishedCounts models.RowCounts
	finishedError  string

	loadErr error
}

func (f *fakeStore) LoadSnapshot(_ context.Context, rs *models.RecordSet) (models.RowCounts, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	f.loaded = append(f.loaded, rs)

	counts := make(models.RowCounts)
	if rs.Status != nil {
		counts[internal.SectionWarStatus] = len(rs.Status)
	}
	if rs.Campaign != nil {
		counts[internal.SectionWarCampaign] = len(rs.Campaign)
	}
	return counts, nil
}

func (f *fakeStore) InsertRun(_ context.Context, run models.IngestRun) error {
	f.inserted = append(f.inserted, run)
	return nil
}

func (f *fakeStore) FinishRun(_ context.Context, _ uuid.UUID, status string, counts models.RowCounts, errText string) error {
	f.finishedStatus = status
	f.finishedCounts = counts
	f.finishedError = errText
	return nil
}

func intp(v int) *int { return &v }

func fullAPI() *fakeWarAPI {
	return &fakeWarAPI{
		status: &models.WarStatus{
			WarID:        801,
			PlanetStatus: []models.PlanetStatus{{Index: intp(0), Players: 100}},
		},
		info: &models.WarInfo{
			WarID:       801,
			PlanetInfos: []models.PlanetInfo{{Index: intp(0)}},
		},
		news:        []models.NewsItem{{ID: 1, Message: "dispatch"}},
		campaign:    []models.CampaignPlanet{{PlanetIndex: intp(0), Players: 500}, {PlanetIndex: intp(1), Players: 3}},
		majorOrders: []models.MajorOrder{{ID32: 9}},
		planets:     map[int]models.Planet{0: {Name: "Super Earth"}},
	}
}

func noFilter(t *testing.T) *filter.Filter {
	t.Helper()
	f, err := filter.New("")
	require.NoError(t, err)
	return f
}

func TestRunOnce_AllSectionsSucceed(t *testing.T) {
	store := &fakeStore{}
	r := NewRunner(fullAPI(), store, noFilter(t), false, 0, slog.Default())

	err := r.RunOnce(context.Background())
	require.NoError(t, err)

	require.Len(t, store.inserted, 1)
	assert.Equal(t, internal.RunStatusRunning, store.inserted[0].Status)

	assert.Equal(t, internal.RunStatusSucceeded, store.finishedStatus)
	assert.Empty(t, store.finishedError)
	require.Len(t, store.loaded, 1)
	assert.Len(t, store.loaded[0].Status, 1)
}

func TestRunOnce_PartialWhenSectionFails(t *testing.T) {
	api := fullAPI()
	api.news = nil // news endpoint down

	store := &fakeStore{}
	r := NewRunner(api, store, noFilter(t), false, 0, slog.Default())

	err := r.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, internal.RunStatusPartial, store.finishedStatus)
	assert.Contains(t, store.finishedError, internal.SectionWarNews)
	require.Len(t, store.loaded, 1)
	assert.Nil(t, store.loaded[0].News)
	assert.NotNil(t, store.loaded[0].Status)
}

func TestRunOnce_FailsWhenNothingFetched(t *testing.T) {
	store := &fakeStore{}
	r := NewRunner(&fakeWarAPI{failAll: true}, store, noFilter(t), false, 0, slog.Default())

	err := r.RunOnce(context.Background())
	require.Error(t, err)
	assert.True(t, models.IsNoSectionsFetchedErr(err))
	assert.Equal(t, internal.RunStatusFailed, store.finishedStatus)
	assert.Empty(t, store.loaded)
}

func TestRunOnce_FailsWhenLoadFails(t *testing.T) {
	store := &fakeStore{loadErr: errors.New("connection reset")}
	r := NewRunner(fullAPI(), store, noFilter(t), false, 0, slog.Default())

	err := r.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load snapshot")
	assert.Equal(t, internal.RunStatusFailed, store.finishedStatus)
	assert.Contains(t, store.finishedError, "connection reset")
}

func TestRunOnce_AppliesCampaignFilter(t *testing.T) {
	f, err := filter.New("players > 100")
	require.NoError(t, err)

	store := &fakeStore{}
	r := NewRunner(fullAPI(), store, f, false, 0, slog.Default())

	require.NoError(t, r.RunOnce(context.Background()))

	require.Len(t, store.loaded, 1)
	require.Len(t, store.loaded[0].Campaign, 1)
	assert.Equal(t, 0, store.loaded[0].Campaign[0].PlanetIndex)
	assert.Equal(t, 1, store.finishedCounts[internal.SectionWarCampaign])
}

func TestRunOnce_IncludesHistoryWhenEnabled(t *testing.T) {
	api := fullAPI()
	api.history = map[int][]models.HistoryEntry{
		0: {{CreatedAt: "2024-04-08T12:00:00Z", CurrentHealth: 10}},
	}

	store := &fakeStore{}
	r := NewRunner(api, store, noFilter(t), true, 0, slog.Default())

	require.NoError(t, r.RunOnce(context.Background()))

	require.Len(t, store.loaded, 1)
	require.Len(t, store.loaded[0].History, 1)
	assert.Equal(t, int64(10), store.loaded[0].History[0].CurrentHealth)
}

func TestStart_IntervalLoopStopsOnCancel(t *testing.T) {
	store := &fakeStore{}
	r := NewRunner(fullAPI(), store, noFilter(t), false, 10*time.Millisecond, slog.Default())

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	err := r.Start(ctx)
	require.NoError(t, err)

	// Initial run plus at least one tick.
	assert.GreaterOrEqual(t, len(store.inserted), 2)
}

func TestStart_IntervalLoopContinuesAfterFailedRun(t *testing.T) {
	store := &fakeStore{}
	r := NewRunner(&fakeWarAPI{failAll: true}, store, noFilter(t), false, 10*time.Millisecond, slog.Default())

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	err := r.Start(ctx)
	require.NoError(t, err)

	// Every run fails, yet each tick still starts a fresh one.
	assert.GreaterOrEqual(t, len(store.inserted), 2)
	assert.Equal(t, internal.RunStatusFailed, store.finishedStatus)
}
