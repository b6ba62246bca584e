package store

import "github.com/ragbendra/distributed-job-queue/internal/model"

// allowedTransitions is the guard table behind every status mutation
// (spec.md §4.1's state machine). Store.Retry(dead_letter_id) re-entering
// PENDING from FAILED is deliberately NOT in this table — it is a fresh
// lifecycle pass, implemented as its own operation, not a guarded
// transition.
var allowedTransitions = map[model.Status]map[model.Status]bool{
	model.StatusPending: {
		model.StatusRunning:   true,
		model.StatusCancelled: true,
		model.StatusFailed:    true, // e.g. no handler registered for job_type
	},
	model.StatusRetrying: {
		model.StatusRunning:   true,
		model.StatusCancelled: true,
		model.StatusFailed:    true,
	},
	model.StatusRunning: {
		model.StatusCompleted: true,
		model.StatusRetrying:  true,
		model.StatusFailed:    true,
	},
	model.StatusCompleted: {},
	model.StatusFailed:    {},
	model.StatusCancelled: {},
}

func canTransition(from, to model.Status) bool {
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}
