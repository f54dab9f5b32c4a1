package dto

// JobSummaryDTO leaves Completions and Parallelism nil when the Job spec does.
type JobSummaryDTO struct {
	MetaDTO
	Completions *int32 `json:"completions"`
	Parallelism *int32 `json:"parallelism"`
}
