package client

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/goccy/go-json"
	"github.com/spf13/cast"
	"github.com/tidwall/gjson"

	"github.com/Sovexe/helldivers2-data-pipeline/internal"
	"github.com/Sovexe/helldivers2-data-pipeline/internal/models"
)

// WarAPIClient fetches galactic-war data from the Helldivers training manual
// API. All methods retry transient failures with backoff; 4xx responses are
// not retried.
type WarAPIClient struct {
	baseURL    string
	retries    uint
	httpClient *http.Client
	log        *slog.Logger
}

func NewWarAPIClient(baseURL string, timeout time.Duration, retries uint, log *slog.Logger) *WarAPIClient {
	if timeout <= 0 {
		timeout = internal.DefaultHTTPTimeout
	}
	if retries == 0 {
		retries = internal.FetchRetryAttempts
	}

	return &WarAPIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		retries: retries,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

func (c *WarAPIClient) get(ctx context.Context, path string) ([]byte, error) {
	url := c.baseURL + "/" + path

	var body []byte

	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("build request: %w", err))
			}

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return fmt.Errorf("get %s: %w", url, err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				err := fmt.Errorf("get %s: unexpected status %d", url, resp.StatusCode)
				if resp.StatusCode >= http.StatusBadRequest && resp.StatusCode < http.StatusInternalServerError {
					return retry.Unrecoverable(err)
				}
				return err
			}

			body, err = io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("read response from %s: %w", url, err)
			}

			return nil
		},
		retry.Context(ctx),
		retry.Attempts(c.retries),
		retry.Delay(internal.FetchInitialRetryDelay),
		retry.MaxDelay(internal.FetchMaxRetryDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}

	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: response from %s is not valid JSON", models.ErrInvalidPayload, url)
	}

	return body, nil
}

func (c *WarAPIClient) WarStatus(ctx context.Context) (*models.WarStatus, error) {
	body, err := c.get(ctx, internal.EndpointWarStatus)
	if err != nil {
		return nil, err
	}

	if !gjson.GetBytes(body, "planetStatus").IsArray() {
		return nil, fmt.Errorf("%w: war status has no planetStatus list", models.ErrInvalidPayload)
	}

	var status models.WarStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, fmt.Errorf("decode war status: %w", err)
	}

	c.log.DebugContext(ctx, "fetched war status", slog.Int("planet_count", len(status.PlanetStatus)))

	return &status, nil
}

func (c *WarAPIClient) WarInfo(ctx context.Context) (*models.WarInfo, error) {
	body, err := c.get(ctx, internal.EndpointWarInfo)
	if err != nil {
		return nil, err
	}

	if !gjson.GetBytes(body, "planetInfos").IsArray() {
		return nil, fmt.Errorf("%w: war info has no planetInfos list", models.ErrInvalidPayload)
	}

	var info models.WarInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("decode war info: %w", err)
	}

	c.log.DebugContext(ctx, "fetched war info", slog.Int("planet_count", len(info.PlanetInfos)))

	return &info, nil
}

func (c *WarAPIClient) News(ctx context.Context) ([]models.NewsItem, error) {
	body, err := c.get(ctx, internal.EndpointWarNews)
	if err != nil {
		return nil, err
	}

	// A null body would decode into a nil slice and read as "not fetched".
	if !gjson.ParseBytes(body).IsArray() {
		return nil, fmt.Errorf("%w: war news payload is not a list", models.ErrInvalidPayload)
	}

	var news []models.NewsItem
	if err := json.Unmarshal(body, &news); err != nil {
		return nil, fmt.Errorf("decode war news: %w", err)
	}

	c.log.DebugContext(ctx, "fetched war news", slog.Int("item_count", len(news)))

	return news, nil
}

func (c *WarAPIClient) Campaign(ctx context.Context) ([]models.CampaignPlanet, error) {
	body, err := c.get(ctx, internal.EndpointWarCampaign)
	if err != nil {
		return nil, err
	}

	if !gjson.ParseBytes(body).IsArray() {
		return nil, fmt.Errorf("%w: war campaign payload is not a list", models.ErrInvalidPayload)
	}

	var campaign []models.CampaignPlanet
	if err := json.Unmarshal(body, &campaign); err != nil {
		return nil, fmt.Errorf("decode war campaign: %w", err)
	}

	c.log.DebugContext(ctx, "fetched war campaign", slog.Int("planet_count", len(campaign)))

	return campaign, nil
}

func (c *WarAPIClient) MajorOrders(ctx context.Context) ([]models.MajorOrder, error) {
	body, err := c.get(ctx, internal.EndpointMajorOrders)
	if err != nil {
		return nil, err
	}

	if !gjson.ParseBytes(body).IsArray() {
		return nil, fmt.Errorf("%w: major orders payload is not a list", models.ErrInvalidPayload)
	}

	var orders []models.MajorOrder
	if err := json.Unmarshal(body, &orders); err != nil {
		return nil, fmt.Errorf("decode major orders: %w", err)
	}

	c.log.DebugContext(ctx, "fetched major orders", slog.Int("order_count", len(orders)))

	return orders, nil
}

// Planets fetches the planet catalogue. The API keys the object by the planet
// index as a string; entries whose key does not parse as an integer are
// dropped with a warning.
func (c *WarAPIClient) Planets(ctx context.Context) (map[int]models.Planet, error) {
	body, err := c.get(ctx, internal.EndpointPlanets)
	if err != nil {
		return nil, err
	}

	if !gjson.ParseBytes(body).IsObject() {
		return nil, fmt.Errorf("%w: planets payload is not an object", models.ErrInvalidPayload)
	}

	var raw map[string]models.Planet
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode planets: %w", err)
	}

	planets := make(map[int]models.Planet, len(raw))
	for key, planet := range raw {
		idx, err := cast.ToIntE(key)
		if err != nil {
			c.log.WarnContext(ctx, "skipping planet with non-numeric index",
				slog.String("index", key))
			continue
		}
		planets[idx] = planet
	}

	c.log.DebugContext(ctx, "fetched planets", slog.Int("planet_count", len(planets)))

	return planets, nil
}

func (c *WarAPIClient) PlanetHistory(ctx context.Context, planetIndex int) ([]models.HistoryEntry, error) {
	body, err := c.get(ctx, fmt.Sprintf("%s/%d", internal.EndpointWarHistory, planetIndex))
	if err != nil {
		return nil, err
	}

	if !gjson.ParseBytes(body).IsArray() {
		return nil, fmt.Errorf("%w: history payload for planet %d is not a list", models.ErrInvalidPayload, planetIndex)
	}

	var history []models.HistoryEntry
	if err := json.Unmarshal(body, &history); err != nil {
		return nil, fmt.Errorf("decode history for planet %d: %w", planetIndex, err)
	}

	return history, nil
}

// PlanetHistories fetches history for the given planets with a bounded number
// of concurrent requests. Planets whose history cannot be fetched are logged
// and left out of the result.
func (c *WarAPIClient) PlanetHistories(ctx context.Context, planetIndexes []int, workers int) map[int][]models.HistoryEntry {
	if workers <= 0 {
		workers = internal.HistoryFetchWorkers
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		history = make(map[int][]models.HistoryEntry, len(planetIndexes))
	)

	sem := make(chan struct{}, workers)

	for _, idx := range planetIndexes {
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		sem <- struct{}{}

		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			entries, err := c.PlanetHistory(ctx, idx)
			if err != nil {
				c.log.WarnContext(ctx, "failed to fetch planet history",
					slog.Int("planet_index", idx),
					slog.Any("error", err))
				return
			}

			mu.Lock()
			history[idx] = entries
			mu.Unlock()
		}()
	}

	wg.Wait()

	c.log.DebugContext(ctx, "fetched planet histories",
		slog.Int("requested", len(planetIndexes)),
		slog.Int("fetched", len(history)))

	return history
}
