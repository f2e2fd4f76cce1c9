package domain

import "time"

const (
	MaxQuestionLength = 10000
	MaxSolutionLength = 50000
)

// Recognition is the raw output of the recognition engine for one image.
type Recognition struct {
	Question string `json:"question"`
	Solution string `json:"solution"`
}

// RecognitionResult is persisted 1:1 with an upload and shares its identifier.
type RecognitionResult struct {
	ID        string    `json:"id"`
	Question  string    `json:"question"`
	Solution  string    `json:"solution"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type RecognitionOutcome struct {
	Recognition
	Cached bool
}

// Recognition outcome labels reported to workflow observers.
const (
	OutcomeFresh         = "fresh"
	OutcomeCached        = "cached"
	OutcomeRaceResolved  = "race_resolved"
	OutcomeEngineFailed  = "engine_failed"
	OutcomePersistFailed = "persist_failed"
)
