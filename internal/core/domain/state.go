package domain

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// StudentProfile carries the background used for answer personalization.
// Degree selects the complexity tier, Major drives the adaptation clause.
type StudentProfile struct {
	StudentID string `json:"student_id"`
	Degree    string `json:"degree"`
	Major     string `json:"major"`
}

// ResponseAttempt is one generated answer and the overall score it
// received, kept for audit logging across the refinement loop.
type ResponseAttempt struct {
	Response string  `json:"response"`
	Score    float64 `json:"score"`
}

// MaxRefinementAttempts bounds the evaluation/refinement loop.
const MaxRefinementAttempts = 3

// ConversationState is the mutable record threaded through every
// pipeline stage. One instance per thread, read-modify-written by one
// stage at a time. Messages and the agent log survive across turns;
// everything else is reset when a new turn starts.
type ConversationState struct {
	ThreadID string    `json:"thread_id"`
	Messages []Message `json:"messages"`

	Query        string `json:"query"`
	RefinedQuery string `json:"refined_query,omitempty"`

	IsVague           bool     `json:"is_vague"`
	FollowUpQuestions []string `json:"follow_up_questions,omitempty"`
	PendingFollowUp   bool     `json:"pending_follow_up"`
	AccumulatedQuery  string   `json:"accumulated_query,omitempty"`

	IsRelevant      bool   `json:"is_relevant"`
	RelevanceReason string `json:"relevance_reason,omitempty"`

	CourseContentFound bool             `json:"course_content_found"`
	CourseContext      string           `json:"course_context,omitempty"`
	CourseCitations    []Citation       `json:"course_citations,omitempty"`
	RetrievedChunks    []RetrievedChunk `json:"retrieved_chunks,omitempty"`

	WebSearchResults   string     `json:"web_search_results,omitempty"`
	WebSearchCitations []Citation `json:"web_search_citations,omitempty"`

	FinalResponse     string     `json:"final_response,omitempty"`
	ResponseCitations []Citation `json:"response_citations,omitempty"`

	EvaluationScores   map[string]float64 `json:"evaluation_scores,omitempty"`
	EvaluationPassed   bool               `json:"evaluation_passed"`
	RefinementAttempts int                `json:"refinement_attempts"`
	ResponseHistory    []ResponseAttempt  `json:"response_history,omitempty"`

	AgentLog *AgentLog `json:"-"`

	Profile    StudentProfile `json:"profile"`
	CourseName string         `json:"course_name"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewConversationState(threadID, courseName string, profile StudentProfile) *ConversationState {
	now := time.Now().UTC()
	return &ConversationState{
		ThreadID:   threadID,
		Profile:    profile,
		CourseName: courseName,
		AgentLog:   NewAgentLog(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// ResetTurn clears every per-turn field and installs the new query.
// Messages, the agent log, the pending follow-up marker and the
// accumulated query survive; stale retrieval or evaluation results from
// the previous turn must not.
func (s *ConversationState) ResetTurn(query string) {
	s.Query = query
	s.RefinedQuery = ""
	s.IsVague = false
	s.FollowUpQuestions = nil
	s.IsRelevant = false
	s.RelevanceReason = ""
	s.CourseContentFound = false
	s.CourseContext = ""
	s.CourseCitations = nil
	s.RetrievedChunks = nil
	s.WebSearchResults = ""
	s.WebSearchCitations = nil
	s.FinalResponse = ""
	s.ResponseCitations = nil
	s.EvaluationScores = nil
	s.EvaluationPassed = false
	s.RefinementAttempts = 0
	s.ResponseHistory = nil
	s.UpdatedAt = time.Now().UTC()
}

// Clone produces a deep copy safe to hand across the state-store
// boundary while the original keeps being mutated by the pipeline.
func (s *ConversationState) Clone() *ConversationState {
	out := *s
	out.Messages = append([]Message(nil), s.Messages...)
	out.FollowUpQuestions = append([]string(nil), s.FollowUpQuestions...)
	out.CourseCitations = append([]Citation(nil), s.CourseCitations...)
	out.RetrievedChunks = append([]RetrievedChunk(nil), s.RetrievedChunks...)
	out.WebSearchCitations = append([]Citation(nil), s.WebSearchCitations...)
	out.ResponseCitations = append([]Citation(nil), s.ResponseCitations...)
	out.ResponseHistory = append([]ResponseAttempt(nil), s.ResponseHistory...)
	if s.EvaluationScores != nil {
		out.EvaluationScores = make(map[string]float64, len(s.EvaluationScores))
		for k, v := range s.EvaluationScores {
			out.EvaluationScores[k] = v
		}
	}
	// The agent log is shared between clones on purpose: it is a
	// diagnostic side-channel with its own locking, not turn state.
	return &out
}

type AskRequest struct {
	ThreadID   string         `json:"thread_id,omitempty"`
	Query      string         `json:"query"`
	CourseName string         `json:"course_name"`
	Profile    StudentProfile `json:"profile"`
}

// Outcome tells the caller what kind of text came back for a turn.
type Outcome string

const (
	OutcomeAnswered       Outcome = "answered"
	OutcomeFollowUp       Outcome = "follow_up"
	OutcomeNotRelevant    Outcome = "not_relevant"
	OutcomeGreeting       Outcome = "greeting"
	OutcomeBelowThreshold Outcome = "below_threshold"
)

type AskResult struct {
	ThreadID           string             `json:"thread_id"`
	Outcome            Outcome            `json:"outcome"`
	Response           string             `json:"response"`
	FollowUpQuestion   string             `json:"follow_up_question,omitempty"`
	Citations          []Citation         `json:"citations,omitempty"`
	SourceType         string             `json:"source_type"`
	EvaluationScores   map[string]float64 `json:"evaluation_scores,omitempty"`
	RefinementAttempts int                `json:"refinement_attempts"`
}
