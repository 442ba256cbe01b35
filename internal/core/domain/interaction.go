package domain

import "time"

// InteractionRecord is the audit row emitted after a completed turn.
// Response and Score slots beyond the attempts actually made stay empty.
type InteractionRecord struct {
	ID         string    `json:"id"`
	StudentID  string    `json:"student_id"`
	Degree     string    `json:"degree"`
	Major      string    `json:"major"`
	Course     string    `json:"course"`
	SourceType string    `json:"source_type"`
	Question   string    `json:"question"`
	Response1  string    `json:"response_1"`
	Response2  string    `json:"response_2,omitempty"`
	Response3  string    `json:"response_3,omitempty"`
	Score1     float64   `json:"score_1"`
	Score2     float64   `json:"score_2,omitempty"`
	Score3     float64   `json:"score_3,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

const (
	SourceTypeCourse = "course"
	SourceTypeWeb    = "web"
)

// BuildInteractionRecord flattens a finished turn's response history
// into the fixed-width audit shape. Slots fill oldest-first, so
// response_1 is the initial attempt and later slots stay empty when
// fewer than three attempts were made.
func BuildInteractionRecord(id string, state *ConversationState) InteractionRecord {
	rec := InteractionRecord{
		ID:        id,
		StudentID: state.Profile.StudentID,
		Degree:    state.Profile.Degree,
		Major:     state.Profile.Major,
		Course:    state.CourseName,
		Question:  state.Query,
		CreatedAt: time.Now().UTC(),
	}
	if state.CourseContentFound {
		rec.SourceType = SourceTypeCourse
	} else {
		rec.SourceType = SourceTypeWeb
	}
	history := state.ResponseHistory
	if len(history) == 0 && state.FinalResponse != "" {
		history = []ResponseAttempt{{Response: state.FinalResponse, Score: state.EvaluationScores["overall"]}}
	}
	if len(history) > 0 {
		rec.Response1, rec.Score1 = history[0].Response, history[0].Score
	}
	if len(history) > 1 {
		rec.Response2, rec.Score2 = history[1].Response, history[1].Score
	}
	if len(history) > 2 {
		rec.Response3, rec.Score3 = history[2].Response, history[2].Score
	}
	return rec
}
