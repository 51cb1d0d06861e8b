package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/Sovexe/helldivers2-data-pipeline/internal"
	"github.com/Sovexe/helldivers2-data-pipeline/internal/filter"
	"github.com/Sovexe/helldivers2-data-pipeline/internal/models"
	"github.com/Sovexe/helldivers2-data-pipeline/internal/transform"
)

// snapshotSections is the number of top-level war API sections in a full
// snapshot; a run that fetched fewer is partial.
const snapshotSections = 6

type WarAPI interface {
	WarStatus(ctx context.Context) (*models.WarStatus, error)
	WarInfo(ctx context.Context) (*models.WarInfo, error)
	News(ctx context.Context) ([]models.NewsItem, error)
	Campaign(ctx context.Context) ([]models.CampaignPlanet, error)
	MajorOrders(ctx context.Context) ([]models.MajorOrder, error)
	Planets(ctx context.Context) (map[int]models.Planet, error)
	PlanetHistories(ctx context.Context, planetIndexes []int, workers int) map[int][]models.HistoryEntry
}

type SnapshotStore interface {
	LoadSnapshot(ctx context.Context, rs *models.RecordSet) (models.RowCounts, error)
	InsertRun(ctx context.Context, run models.IngestRun) error
	FinishRun(ctx context.Context, id uuid.UUID, status string, counts models.RowCounts, errText string) error
}

// Runner drives one fetch → transform → load pass over the war API, and
// optionally repeats it on an interval.
type Runner struct {
	api            WarAPI
	store          SnapshotStore
	campaignFilter *filter.Filter
	includeHistory bool
	interval       time.Duration
	log            *slog.Logger
}

func NewRunner(
	api WarAPI,
	store SnapshotStore,
	campaignFilter *filter.Filter,
	includeHistory bool,
	interval time.Duration,
	log *slog.Logger,
) *Runner {
	return &Runner{
		api:            api,
		store:          store,
		campaignFilter: campaignFilter,
		includeHistory: includeHistory,
		interval:       interval,
		log:            log,
	}
}

// Start executes a single run when no interval is configured, or loops until
// the context is cancelled otherwise. In interval mode a failed run keeps the
// loop alive so a transient upstream outage heals on the next tick.
func (r *Runner) Start(ctx context.Context) error {
	if r.interval <= 0 {
		return r.RunOnce(ctx)
	}

	if err := r.RunOnce(ctx); err != nil {
		r.log.ErrorContext(ctx, "ingest run failed", slog.Any("error", err))
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.InfoContext(ctx, "ingest loop stopped")
			return nil
		case <-ticker.C:
			if err := r.RunOnce(ctx); err != nil {
				r.log.ErrorContext(ctx, "ingest run failed", slog.Any("error", err))
			}
		}
	}
}

// RunOnce performs one full ingestion run and records its verdict in the run
// bookkeeping table.
func (r *Runner) RunOnce(ctx context.Context) error {
	runID := uuid.New()
	log := r.log.With(slog.String("run_id", runID.String()))

	log.InfoContext(ctx, "pipeline started")

	run := models.IngestRun{
		ID:        runID,
		StartedAt: time.Now().UTC(),
		Status:    internal.RunStatusRunning,
	}
	if err := r.store.InsertRun(ctx, run); err != nil {
		return fmt.Errorf("record run start: %w", err)
	}

	snap := r.fetchSnapshot(ctx, log)

	fetched := snap.SectionsFetched()
	if fetched == 0 {
		r.finishRun(ctx, log, runID, internal.RunStatusFailed, nil, sectionErrorText(snap))
		return models.ErrNoSectionsFetched
	}

	if r.campaignFilter != nil && r.campaignFilter.Enabled && snap.Campaign != nil {
		campaign, err := r.filterCampaign(snap.Campaign)
		if err != nil {
			r.finishRun(ctx, log, runID, internal.RunStatusFailed, nil, err.Error())
			return fmt.Errorf("filter campaign: %w", err)
		}
		log.InfoContext(ctx, "campaign filter applied",
			slog.String("expression", r.campaignFilter.Expression),
			slog.Int("kept", len(campaign)),
			slog.Int("dropped", len(snap.Campaign)-len(campaign)))
		snap.Campaign = campaign
	}

	rs, err := transform.Build(snap)
	if err != nil {
		r.finishRun(ctx, log, runID, internal.RunStatusFailed, nil, err.Error())
		return fmt.Errorf("transform snapshot: %w", err)
	}
	if rs.Skipped > 0 {
		log.WarnContext(ctx, "skipped entries missing planet index",
			slog.Int("entries", rs.Skipped))
	}

	counts, err := r.store.LoadSnapshot(ctx, rs)
	if err != nil {
		r.finishRun(ctx, log, runID, internal.RunStatusFailed, nil, err.Error())
		return fmt.Errorf("load snapshot: %w", err)
	}

	status := internal.RunStatusSucceeded
	if fetched < snapshotSections {
		status = internal.RunStatusPartial
	}

	r.finishRun(ctx, log, runID, status, counts, sectionErrorText(snap))

	log.InfoContext(ctx, "pipeline finished",
		slog.String("status", status),
		slog.Int("sections_fetched", fetched),
		slog.Int("rows_stored", counts.Total()))

	return nil
}

func (r *Runner) fetchSnapshot(ctx context.Context, log *slog.Logger) *models.Snapshot {
	snap := &models.Snapshot{
		Errors: make(map[string]error),
	}

	fail := func(section string, err error) {
		snap.Errors[section] = err
		log.ErrorContext(ctx, "failed to fetch section",
			slog.String("section", section),
			slog.Any("error", err))
	}

	if status, err := r.api.WarStatus(ctx); err != nil {
		fail(internal.SectionWarStatus, err)
	} else {
		snap.Status = status
	}

	if info, err := r.api.WarInfo(ctx); err != nil {
		fail(internal.SectionWarInfo, err)
	} else {
		snap.Info = info
	}

	if news, err := r.api.News(ctx); err != nil {
		fail(internal.SectionWarNews, err)
	} else {
		snap.News = news
	}

	if campaign, err := r.api.Campaign(ctx); err != nil {
		fail(internal.SectionWarCampaign, err)
	} else {
		snap.Campaign = campaign
	}

	if orders, err := r.api.MajorOrders(ctx); err != nil {
		fail(internal.SectionMajorOrders, err)
	} else {
		snap.MajorOrders = orders
	}

	if planets, err := r.api.Planets(ctx); err != nil {
		fail(internal.SectionPlanets, err)
	} else {
		snap.Planets = planets
	}

	if r.includeHistory && snap.Planets != nil {
		indexes := make([]int, 0, len(snap.Planets))
		for idx := range snap.Planets {
			indexes = append(indexes, idx)
		}
		sort.Ints(indexes)

		snap.History = r.api.PlanetHistories(ctx, indexes, internal.HistoryFetchWorkers)
	}

	return snap
}

// filterCampaign keeps the campaign entries the configured expression matches.
// Entries are evaluated in their wire shape, so expressions use the API field
// names (players, defense, faction, ...).
func (r *Runner) filterCampaign(campaign []models.CampaignPlanet) ([]models.CampaignPlanet, error) {
	kept := make([]models.CampaignPlanet, 0, len(campaign))

	for _, cp := range campaign {
		encoded, err := json.Marshal(cp)
		if err != nil {
			return nil, fmt.Errorf("encode campaign entry: %w", err)
		}

		matches, err := r.campaignFilter.Matches(encoded)
		if err != nil {
			return nil, fmt.Errorf("evaluate campaign filter: %w", err)
		}
		if matches {
			kept = append(kept, cp)
		}
	}

	return kept, nil
}

func (r *Runner) finishRun(ctx context.Context, log *slog.Logger, id uuid.UUID, status string, counts models.RowCounts, errText string) {
	if err := r.store.FinishRun(ctx, id, status, counts, errText); err != nil {
		log.ErrorContext(ctx, "failed to record run verdict",
			slog.String("status", status),
			slog.Any("error", err))
	}
}

func sectionErrorText(snap *models.Snapshot) string {
	if len(snap.Errors) == 0 {
		return ""
	}

	sections := make([]string, 0, len(snap.Errors))
	for section := range snap.Errors {
		sections = append(sections, section)
	}
	sort.Strings(sections)

	parts := make([]string, 0, len(sections))
	for _, section := range sections {
		parts = append(parts, fmt.Sprintf("%s: %v", section, snap.Errors[section]))
	}

	return strings.Join(parts, "; ")
}
