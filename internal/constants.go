package internal

import "time"

// Default values
const (
	// War API endpoint paths, relative to the configured base URL
	EndpointWarStatus   = "war/status"
	EndpointWarInfo     = "war/info"
	EndpointWarNews     = "war/news"
	EndpointWarCampaign = "war/campaign"
	EndpointMajorOrders = "war/major-orders"
	EndpointPlanets     = "planets"
	EndpointWarHistory  = "war/history"

	// Snapshot section names used in logs and run bookkeeping
	SectionWarStatus   = "war_status"
	SectionWarInfo     = "war_info"
	SectionWarNews     = "war_news"
	SectionWarCampaign = "war_campaign"
	SectionMajorOrders = "war_major_orders"
	SectionPlanets     = "planets"
	SectionHistory     = "planet_history"

	// Ingest run status constants
	RunStatusRunning   = "Running"
	RunStatusSucceeded = "Succeeded"
	RunStatusPartial   = "Partial"
	RunStatusFailed    = "Failed"

	// War API client constants
	DefaultHTTPTimeout     = 30 * time.Second
	FetchRetryAttempts     = 4
	FetchInitialRetryDelay = 500 * time.Millisecond
	FetchMaxRetryDelay     = 5 * time.Second

	// HistoryFetchWorkers bounds concurrent per-planet history requests.
	HistoryFetchWorkers = 4

	// Postgres client constants
	PostgresConnectionTimeout = 10 * time.Second
	PostgresConnectionRetries = 12
	PostgresInitialRetryDelay = 1 * time.Second
	PostgresMaxRetryDelay     = 30 * time.Second
	PostgresMaxConnectionWait = 2 * time.Minute

	// Status server constants
	ServerReadTimeout     = 5 * time.Second
	ServerWriteTimeout    = 10 * time.Second
	ServerIdleTimeout     = 60 * time.Second
	ServerShutdownTimeout = 10 * time.Second
)
