// File: api/schemas/schemas.go
package schemas

import "time"

// Generation is one raw provider response to one task attempt. It is immutable
// once created and tagged with enough identity to locate its artifact on disk.
type Generation struct {
	Step            int    `json:"step"`             // Step counter value when produced.
	TaskIndex       int    `json:"task_index"`       // Index into the task list that was answered.
	PlaybookVersion int    `json:"playbook_version"` // Playbook version active during generation.
	Text            string `json:"text"`             // Verbatim provider output.
}

// StepRecord is the ledger row written after every completed generation step.
type StepRecord struct {
	RunID           string        `json:"run_id"`
	Step            int           `json:"step"`
	TaskIndex       int           `json:"task_index"`
	PlaybookVersion int           `json:"playbook_version"`
	Duration        time.Duration `json:"duration"`
	Timestamp       time.Time     `json:"timestamp"`
}

// UpdateRecord is the ledger row written after every completed playbook update.
type UpdateRecord struct {
	RunID      string        `json:"run_id"`
	Step       int           `json:"step"`        // Step that triggered the update.
	NewVersion int           `json:"new_version"` // Version number of the playbook produced.
	BatchSize  int           `json:"batch_size"`  // Generations folded into this update.
	Attempts   int           `json:"attempts"`    // Provider attempts consumed (1 = no retries).
	Duration   time.Duration `json:"duration"`
	Timestamp  time.Time     `json:"timestamp"`
}
