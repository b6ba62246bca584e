package model

import (
	"time"

	"github.com/google/uuid"
)

// Job is the unit of work submitted to the queue. It is the store's
// source-of-truth record for a job's lifecycle, retry history, and
// dead-letter transition.
type Job struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	JobType     JobType   `json:"job_type" gorm:"column:job_type;not null;size:50;index:idx_jobs_job_type"`
	Priority    Priority  `json:"priority" gorm:"column:priority;not null;size:10;index:idx_jobs_priority"`
	Status      Status    `json:"status" gorm:"column:status;not null;size:20;index:idx_jobs_status"`
	Payload     Payload   `json:"payload" gorm:"column:payload;not null"`
	MaxRetries  int       `json:"max_retries" gorm:"column:max_retries;not null;default:3"`
	RetryCount  int       `json:"retry_count" gorm:"column:retry_count;not null;default:0"`

	CreatedAt     time.Time  `json:"created_at" gorm:"column:created_at;not null;index:idx_jobs_created_at"`
	StartedAt     *time.Time `json:"started_at,omitempty" gorm:"column:started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty" gorm:"column:completed_at"`
	ScheduledFor  *time.Time `json:"scheduled_for,omitempty" gorm:"column:scheduled_for;index:idx_jobs_scheduled_for"`

	WorkerID     *string `json:"worker_id,omitempty" gorm:"column:worker_id;size:100"`
	ErrorMessage *string `json:"error_message,omitempty" gorm:"column:error_message;type:text"`

	RetryAttempts []RetryAttempt `json:"-" gorm:"foreignKey:JobID;constraint:OnDelete:CASCADE"`
}

// TableName pins the GORM table name.
func (Job) TableName() string {
	return "jobs"
}

// NewJob builds a Job in PENDING status for submission. The caller decides
// whether to publish immediately or leave ScheduledFor in the future.
func NewJob(jobType JobType, priority Priority, payload Payload, maxRetries int, scheduledFor *time.Time) *Job {
	if priority == "" {
		priority = PriorityMedium
	}
	return &Job{
		ID:           uuid.New(),
		JobType:      jobType,
		Priority:     priority,
		Status:       StatusPending,
		Payload:      payload,
		MaxRetries:   maxRetries,
		RetryCount:   0,
		CreatedAt:    time.Now().UTC(),
		ScheduledFor: scheduledFor,
	}
}

// RetryAttempt is one failed execution attempt, owned by its Job.
type RetryAttempt struct {
	ID             uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	JobID          uuid.UUID  `json:"job_id" gorm:"column:job_id;not null;index:idx_retry_attempts_job_id"`
	AttemptNumber  int        `json:"attempt_number" gorm:"column:attempt_number;not null"`
	StartedAt      time.Time  `json:"started_at" gorm:"column:started_at;not null"`
	FailedAt       time.Time  `json:"failed_at" gorm:"column:failed_at;not null"`
	ErrorMessage   string     `json:"error_message" gorm:"column:error_message;type:text"`
	ErrorTraceback string     `json:"error_traceback,omitempty" gorm:"column:error_traceback;type:text"`
	NextRetryAt    *time.Time `json:"next_retry_at,omitempty" gorm:"column:next_retry_at"`
}

// TableName pins the GORM table name.
func (RetryAttempt) TableName() string {
	return "retry_attempts"
}

// DeadLetter is created exactly once, when a Job exhausts its retries.
type DeadLetter struct {
	ID               uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	JobID            uuid.UUID `json:"job_id" gorm:"column:job_id;not null;unique;index:idx_dead_letters_job_id"`
	JobType          JobType   `json:"job_type" gorm:"column:job_type;not null;index:idx_dead_letters_job_type"`
	Payload          Payload   `json:"payload" gorm:"column:payload;not null"`
	TotalAttempts    int       `json:"total_attempts" gorm:"column:total_attempts;not null"`
	FirstAttemptAt   time.Time `json:"first_attempt_at" gorm:"column:first_attempt_at;not null"`
	FinalFailureAt   time.Time `json:"final_failure_at" gorm:"column:final_failure_at;not null"`
	FailureReason    string    `json:"failure_reason" gorm:"column:failure_reason;type:text;not null"`
	AllErrorMessages StringList `json:"all_error_messages" gorm:"column:all_error_messages"`
}

// TableName pins the GORM table name.
func (DeadLetter) TableName() string {
	return "dead_letters"
}

// ScheduledJob is a recurring job definition materialized by the cron
// scheduler into ordinary Job rows on each fire.
type ScheduledJob struct {
	ID              uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	Name            string     `json:"name" gorm:"column:name;not null;unique;index:idx_scheduled_jobs_name"`
	JobType         JobType    `json:"job_type" gorm:"column:job_type;not null"`
	CronExpression  string     `json:"cron_expression" gorm:"column:cron_expression;not null"`
	Payload         Payload    `json:"payload" gorm:"column:payload;not null"`
	Priority        Priority   `json:"priority" gorm:"column:priority;not null;default:MEDIUM"`
	IsActive        bool       `json:"is_active" gorm:"column:is_active;not null;default:true"`
	LastRunAt       *time.Time `json:"last_run_at,omitempty" gorm:"column:last_run_at"`
	NextRunAt       time.Time  `json:"next_run_at" gorm:"column:next_run_at;not null;index:idx_scheduled_jobs_next_run_at"`
	CreatedAt       time.Time  `json:"created_at" gorm:"column:created_at;not null"`
}

// TableName pins the GORM table name.
func (ScheduledJob) TableName() string {
	return "scheduled_jobs"
}
