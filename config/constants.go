package config

import "time"

// Intake constants
const (
	// DefaultDedupThreshold is the normalized-title similarity at which two candidates are the same event
	DefaultDedupThreshold = 0.8

	// DefaultDedupWindow is how far back intake looks for duplicate titles
	DefaultDedupWindow = 7 * 24 * time.Hour
)

// Scoring constants
const (
	// DefaultRejectBelow rejects candidates whose total score is lower than this
	DefaultRejectBelow = 30

	// DefaultApproveAt approves candidates whose total score reaches this
	DefaultApproveAt = 60
)

// Verification constants
const (
	// DefaultSearchBudget caps search queries per topic
	DefaultSearchBudget = 3

	// DefaultMinCredibleSources is the independent credible source gate
	DefaultMinCredibleSources = 3

	// DefaultMinPrimaryCitations is the academic/primary citation alternative gate
	DefaultMinPrimaryCitations = 2

	// DefaultCredibleThreshold is the credibility a source needs to count toward the gate
	DefaultCredibleThreshold = 0.5
)

// Drafting constants
const (
	DefaultDraftRetryBudget = 2
	DefaultMaxRevisions     = 2
	DefaultReadingLevelMin  = 7.5
	DefaultReadingLevelMax  = 8.5
	DefaultMaxWords         = 900
)

// Editorial constants
const (
	DefaultReplyDeadlineUrgent = 48 * time.Hour
	DefaultReplyDeadline       = 72 * time.Hour
)

// Monitoring and ledger constants
const (
	DefaultMonitorWindow  = 7 * 24 * time.Hour
	DefaultLedgerHalfLife = 90 * 24 * time.Hour
)

// Worker and provider constants
const (
	DefaultWorkers         = 4
	DefaultBatchSize       = 25
	DefaultProviderTimeout = 20 * time.Second
	DefaultProviderRetries = 3
	DefaultInitialBackoff  = 500 * time.Millisecond
	DefaultMaxBackoff      = 10 * time.Second
)

// Stage names used for schedules and manual runs
const (
	StageIntake   = "intake"
	StageEvaluate = "evaluate"
	StageVerify   = "verify"
	StageDraft    = "draft"
	StageReplies  = "replies"
	StagePublish  = "publish"
	StageMonitor  = "monitor"
)
