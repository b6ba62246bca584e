package model

// Status is the lifecycle status of a Job.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
	StatusRetrying  Status = "RETRYING"
)

// Terminal reports whether status has no further transitions (other than
// Retry(dead_letter_id), which starts a fresh lifecycle pass rather than
// resuming this one).
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Priority is the broker priority band for a Job.
type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

// BrokerPriority returns the AMQP message priority (0-10) for the band.
func (p Priority) BrokerPriority() uint8 {
	switch p {
	case PriorityHigh:
		return 10
	case PriorityLow:
		return 1
	default:
		return 5
	}
}

// Queue returns the durable queue name bound to this priority band.
func (p Priority) Queue() string {
	switch p {
	case PriorityHigh:
		return "jobs.high"
	case PriorityLow:
		return "jobs.low"
	default:
		return "jobs.medium"
	}
}

// JobType is a member of the fixed, build-time job type registry.
type JobType string

const (
	TypeSendEmail      JobType = "send_email"
	TypeProcessVideo   JobType = "process_video"
	TypeScrapeWebsite  JobType = "scrape_website"
)

// KnownJobTypes lists every job type the build supports. Used to validate
// incoming submissions and scheduled-job definitions.
var KnownJobTypes = map[JobType]bool{
	TypeSendEmail:     true,
	TypeProcessVideo:  true,
	TypeScrapeWebsite: true,
}
