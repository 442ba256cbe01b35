package engine

import "github.com/prismlab/course-tutor/internal/core/domain"

// nextStage is the single routing function of the state machine. It is
// pure over the state and returns a member of the closed Stage set, so
// the transition graph stays exhaustively checkable.
func nextStage(current domain.Stage, state *domain.ConversationState) domain.Stage {
	switch current {
	case domain.StageQueryRefinement:
		if state.IsVague {
			return domain.StageEnd
		}
		return domain.StageRelevance
	case domain.StageRelevance:
		if !state.IsRelevant {
			return domain.StageEnd
		}
		return domain.StageCourseRAG
	case domain.StageCourseRAG:
		if state.CourseContentFound {
			return domain.StagePersonalization
		}
		return domain.StageWebSearch
	case domain.StageWebSearch:
		return domain.StagePersonalization
	case domain.StagePersonalization:
		return domain.StageEvaluation
	case domain.StageEvaluation:
		if state.EvaluationPassed {
			return domain.StageEnd
		}
		if state.RefinementAttempts < domain.MaxRefinementAttempts {
			return domain.StageRefinement
		}
		return domain.StageEnd
	case domain.StageRefinement:
		return domain.StageEvaluation
	default:
		return domain.StageEnd
	}
}
