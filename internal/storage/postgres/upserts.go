package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/Sovexe/helldivers2-data-pipeline/internal"
	"github.com/Sovexe/helldivers2-data-pipeline/internal/models"
)

// LoadSnapshot writes every fetched section of the record set in a single
// transaction. Nil sections are left untouched so a partially fetched
// snapshot never clobbers tables it has no data for.
func (s *Store) LoadSnapshot(ctx context.Context, rs *models.RecordSet) (models.RowCounts, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	counts := make(models.RowCounts)

	if rs.Status != nil {
		n, err := upsertWarStatus(ctx, tx, rs.Status)
		if err != nil {
			return nil, fmt.Errorf("upsert war status: %w", err)
		}
		counts[internal.SectionWarStatus] = n
	}

	if rs.Info != nil {
		n, err := upsertWarInfo(ctx, tx, rs.Info)
		if err != nil {
			return nil, fmt.Errorf("upsert war info: %w", err)
		}
		counts[internal.SectionWarInfo] = n
	}

	if rs.News != nil {
		n, err := insertNews(ctx, tx, rs.News)
		if err != nil {
			return nil, fmt.Errorf("insert war news: %w", err)
		}
		counts[internal.SectionWarNews] = n
	}

	if rs.Campaign != nil {
		n, err := upsertCampaign(ctx, tx, rs.Campaign)
		if err != nil {
			return nil, fmt.Errorf("upsert war campaign: %w", err)
		}
		counts[internal.SectionWarCampaign] = n
	}

	if rs.MajorOrders != nil {
		n, err := upsertMajorOrders(ctx, tx, rs.MajorOrders)
		if err != nil {
			return nil, fmt.Errorf("upsert major orders: %w", err)
		}
		counts[internal.SectionMajorOrders] = n
	}

	if rs.Planets != nil {
		n, err := upsertPlanets(ctx, tx, rs.Planets)
		if err != nil {
			return nil, fmt.Errorf("upsert planets: %w", err)
		}
		counts[internal.SectionPlanets] = n
	}

	if rs.History != nil {
		n, err := upsertHistory(ctx, tx, rs.History)
		if err != nil {
			return nil, fmt.Errorf("upsert planet history: %w", err)
		}
		counts[internal.SectionHistory] = n
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	s.logger.InfoContext(ctx, "snapshot stored",
		slog.Int("tables", len(counts)),
		slog.Int("rows", counts.Total()))

	return counts, nil
}

func upsertWarStatus(ctx context.Context, tx pgx.Tx, rows []models.WarStatusRow) (int, error) {
	const query = `
		INSERT INTO war_status (planet_index, owner, health, regen_per_second, players, war_id, time, impact_multiplier, story_beat_id32)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (planet_index) DO UPDATE
		SET owner = EXCLUDED.owner,
		    health = EXCLUDED.health,
		    regen_per_second = EXCLUDED.regen_per_second,
		    players = EXCLUDED.players,
		    war_id = EXCLUDED.war_id,
		    time = EXCLUDED.time,
		    impact_multiplier = EXCLUDED.impact_multiplier,
		    story_beat_id32 = EXCLUDED.story_beat_id32`

	for _, r := range rows {
		_, err := tx.Exec(ctx, query,
			r.PlanetIndex, r.Owner, r.Health, r.RegenPerSecond, r.Players,
			r.WarID, r.Time, r.ImpactMultiplier, r.StoryBeatID32)
		if err != nil {
			return 0, fmt.Errorf("planet %d: %w", r.PlanetIndex, err)
		}
	}

	return len(rows), nil
}

func upsertWarInfo(ctx context.Context, tx pgx.Tx, rows []models.WarInfoRow) (int, error) {
	const query = `
		INSERT INTO war_info (planet_index, settings_hash, position_x, position_y, waypoints, sector, max_health, disabled, initial_owner, war_id, start_date, end_date, minimum_client_version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (planet_index) DO UPDATE
		SET settings_hash = EXCLUDED.settings_hash,
		    position_x = EXCLUDED.position_x,
		    position_y = EXCLUDED.position_y,
		    waypoints = EXCLUDED.waypoints,
		    sector = EXCLUDED.sector,
		    max_health = EXCLUDED.max_health,
		    disabled = EXCLUDED.disabled,
		    initial_owner = EXCLUDED.initial_owner,
		    war_id = EXCLUDED.war_id,
		    start_date = EXCLUDED.start_date,
		    end_date = EXCLUDED.end_date,
		    minimum_client_version = EXCLUDED.minimum_client_version`

	for _, r := range rows {
		_, err := tx.Exec(ctx, query,
			r.PlanetIndex, r.SettingsHash, r.PositionX, r.PositionY, r.Waypoints,
			r.Sector, r.MaxHealth, r.Disabled, r.InitialOwner,
			r.WarID, r.StartDate, r.EndDate, r.MinimumClientVersion)
		if err != nil {
			return 0, fmt.Errorf("planet %d: %w", r.PlanetIndex, err)
		}
	}

	return len(rows), nil
}

// insertNews keeps existing rows: dispatches are immutable once published.
func insertNews(ctx context.Context, tx pgx.Tx, rows []models.NewsRow) (int, error) {
	const query = `
		INSERT INTO war_news (id, published, type, tag_ids, message)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING`

	inserted := 0
	for _, r := range rows {
		tag, err := tx.Exec(ctx, query, r.ID, r.Published, r.Type, r.TagIDs, r.Message)
		if err != nil {
			return 0, fmt.Errorf("news item %d: %w", r.ID, err)
		}
		inserted += int(tag.RowsAffected())
	}

	return inserted, nil
}

func upsertCampaign(ctx context.Context, tx pgx.Tx, rows []models.CampaignRow) (int, error) {
	const query = `
		INSERT INTO war_campaign (planet_index, name, faction, players, health, max_health, percentage, defense, major_order, biome_slug, biome_description, expire_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (planet_index) DO UPDATE
		SET name = EXCLUDED.name,
		    faction = EXCLUDED.faction,
		    players = EXCLUDED.players,
		    health = EXCLUDED.health,
		    max_health = EXCLUDED.max_health,
		    percentage = EXCLUDED.percentage,
		    defense = EXCLUDED.defense,
		    major_order = EXCLUDED.major_order,
		    biome_slug = EXCLUDED.biome_slug,
		    biome_description = EXCLUDED.biome_description,
		    expire_at = EXCLUDED.expire_at`

	for _, r := range rows {
		_, err := tx.Exec(ctx, query,
			r.PlanetIndex, r.Name, r.Faction, r.Players, r.Health, r.MaxHealth,
			r.Percentage, r.Defense, r.MajorOrder, r.BiomeSlug, r.BiomeDescription, r.ExpireAt)
		if err != nil {
			return 0, fmt.Errorf("planet %d: %w", r.PlanetIndex, err)
		}
	}

	return len(rows), nil
}

func upsertMajorOrders(ctx context.Context, tx pgx.Tx, rows []models.MajorOrderRow) (int, error) {
	const query = `
		INSERT INTO war_major_orders (id32, progress, expires_in, setting_type, setting_override_title, setting_override_brief, setting_task_description, setting_tasks, setting_reward_type, setting_reward_id32, setting_reward_amount, setting_flags)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id32) DO UPDATE
		SET progress = EXCLUDED.progress,
		    expires_in = EXCLUDED.expires_in,
		    setting_type = EXCLUDED.setting_type,
		    setting_override_title = EXCLUDED.setting_override_title,
		    setting_override_brief = EXCLUDED.setting_override_brief,
		    setting_task_description = EXCLUDED.setting_task_description,
		    setting_tasks = EXCLUDED.setting_tasks,
		    setting_reward_type = EXCLUDED.setting_reward_type,
		    setting_reward_id32 = EXCLUDED.setting_reward_id32,
		    setting_reward_amount = EXCLUDED.setting_reward_amount,
		    setting_flags = EXCLUDED.setting_flags`

	for _, r := range rows {
		_, err := tx.Exec(ctx, query,
			r.ID32, r.Progress, r.ExpiresIn, r.SettingType,
			r.OverrideTitle, r.OverrideBrief, r.TaskDescription, r.Tasks,
			r.RewardType, r.RewardID32, r.RewardAmount, r.Flags)
		if err != nil {
			return 0, fmt.Errorf("order %d: %w", r.ID32, err)
		}
	}

	return len(rows), nil
}

func upsertPlanets(ctx context.Context, tx pgx.Tx, rows []models.PlanetRow) (int, error) {
	const query = `
		INSERT INTO planets (planet_index, name, sector, biome_slug, biome_description, environmentals)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (planet_index) DO UPDATE
		SET name = EXCLUDED.name,
		    sector = EXCLUDED.sector,
		    biome_slug = EXCLUDED.biome_slug,
		    biome_description = EXCLUDED.biome_description,
		    environmentals = EXCLUDED.environmentals`

	for _, r := range rows {
		_, err := tx.Exec(ctx, query,
			r.PlanetIndex, r.Name, r.Sector, r.BiomeSlug, r.BiomeDescription, r.Environmentals)
		if err != nil {
			return 0, fmt.Errorf("planet %d: %w", r.PlanetIndex, err)
		}
	}

	return len(rows), nil
}

func upsertHistory(ctx context.Context, tx pgx.Tx, rows []models.HistoryRow) (int, error) {
	const query = `
		INSERT INTO planet_history (planet_index, created_at, current_health, max_health, player_count)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (planet_index, created_at) DO UPDATE
		SET current_health = EXCLUDED.current_health,
		    max_health = EXCLUDED.max_health,
		    player_count = EXCLUDED.player_count`

	for _, r := range rows {
		_, err := tx.Exec(ctx, query,
			r.PlanetIndex, r.CreatedAt, r.CurrentHealth, r.MaxHealth, r.PlayerCount)
		if err != nil {
			return 0, fmt.Errorf("planet %d at %s: %w", r.PlanetIndex, r.CreatedAt, err)
		}
	}

	return len(rows), nil
}
