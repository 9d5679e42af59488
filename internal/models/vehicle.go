package models

import (
	"time"

	"github.com/google/uuid"
)

// VehicleRef is a catalog entry returned by search
type VehicleRef struct {
	ID           int64    `json:"id" db:"id"`
	Make         string   `json:"make" db:"make"`
	Model        string   `json:"model" db:"model"`
	Year         int      `json:"year" db:"year"`
	Price        float64  `json:"price" db:"price"`
	Mileage      int      `json:"mileage" db:"mileage"`
	FuelType     string   `json:"fuel_type" db:"fuel_type"`
	Transmission string   `json:"transmission" db:"transmission"`
	VehicleType  string   `json:"vehicle_type" db:"vehicle_type"`
	EngineSize   *float64 `json:"engine_size,omitempty" db:"engine_size"`
	Horsepower   *int     `json:"horsepower,omitempty" db:"horsepower"`
}

// TurnOutcome labels how a turn ended
type TurnOutcome string

const (
	OutcomeResults           TurnOutcome = "results"
	OutcomeNoNewResults      TurnOutcome = "no_new_results"
	OutcomeNoResults         TurnOutcome = "no_results"
	OutcomeClarification     TurnOutcome = "clarification"
	OutcomeClarificationLoop TurnOutcome = "clarification_loop"
	OutcomeOffTopic          TurnOutcome = "off_topic"
	OutcomeSuggestion        TurnOutcome = "suggestion"
	OutcomeRephrase          TurnOutcome = "rephrase"
	OutcomeExtractionFailed  TurnOutcome = "extraction_failed"
	OutcomeSearchFailed      TurnOutcome = "search_failed"
)

// ChatTurn is one persisted exchange of the chat history
type ChatTurn struct {
	ID               uuid.UUID   `json:"id"`
	UserID           string      `json:"user_id"`
	SessionID        uuid.UUID   `json:"session_id"`
	UserMessage      string      `json:"user_message"`
	AssistantMessage string      `json:"assistant_message"`
	Outcome          TurnOutcome `json:"outcome"`
	Parameters       *Criteria   `json:"parameters,omitempty"`
	ShownVehicleIDs  []int64     `json:"shown_vehicle_ids,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
}
