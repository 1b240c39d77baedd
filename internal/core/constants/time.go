package constants

import "time"

const (
	// History deduplication
	HistoryDedupWindow   = 24 * time.Hour
	ImportDedupTolerance = 60 * time.Second
	HistoryRetentionDays = 365
	HistoryRetentionSpan = time.Duration(HistoryRetentionDays) * 24 * time.Hour

	// Refresh leases
	StaleRefreshTimeout = 5 * time.Minute

	// Change detection
	DefaultPollInterval = 5 * time.Second

	// Growth windows, in days
	WeeklyWindowDays    = 7
	MonthlyWindowDays   = 30
	QuarterlyWindowDays = 90

	Day = 24 * time.Hour
)
