package domain

// Stage is the closed set of pipeline states the orchestrator routes
// between. Routing decisions always return one of these values; string
// comparison against ad-hoc literals is not used anywhere else.
type Stage string

const (
	StageQueryRefinement Stage = "query_refinement"
	StageRelevance       Stage = "relevance"
	StageCourseRAG       Stage = "course_rag"
	StageWebSearch       Stage = "web_search"
	StagePersonalization Stage = "personalization"
	StageEvaluation      Stage = "evaluation"
	StageRefinement      Stage = "refinement"
	StageEnd             Stage = "end"
)
