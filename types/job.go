package types

// JobMeta identifies a job execution for logging and notifications.
type JobMeta struct {
	// JobID is the orchestrator-assigned job id (UUID).
	JobID string
	// Worker is the worker index executing the job, or -1 outside a worker.
	Worker int
	// Prompt is the generation prompt, carried for log correlation.
	Prompt string
}
