package ports

import (
	"context"

	"github.com/prismlab/course-tutor/internal/core/domain"
)

// TutorService is the inbound contract for running one tutoring turn.
type TutorService interface {
	Ask(ctx context.Context, req domain.AskRequest) (*domain.AskResult, error)
	ThreadEvents(ctx context.Context, threadID string) ([]domain.AgentMessage, error)
}
