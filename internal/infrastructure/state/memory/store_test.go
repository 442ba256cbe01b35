package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/prismlab/course-tutor/internal/core/domain"
)

func TestLoadMissingThreadReturnsNotFound(t *testing.T) {
	store := NewStore()
	if _, err := store.Load(context.Background(), "absent"); !domain.IsKind(err, domain.ErrThreadNotFound) {
		t.Fatalf("err = %v, want thread not found", err)
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	store := NewStore()
	state := domain.NewConversationState("t1", "Gamification", domain.StudentProfile{StudentID: "s1", Degree: "Master"})
	state.Messages = append(state.Messages, domain.Message{Role: domain.RoleUser, Content: "hi"})

	if err := store.Save(context.Background(), state); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := store.Load(context.Background(), "t1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.CourseName != "Gamification" || len(loaded.Messages) != 1 {
		t.Fatalf("loaded = %+v", loaded)
	}
}

func TestLoadReturnsIsolatedCopy(t *testing.T) {
	store := NewStore()
	state := domain.NewConversationState("t1", "Gamification", domain.StudentProfile{})
	state.Messages = append(state.Messages, domain.Message{Role: domain.RoleUser, Content: "original"})
	if err := store.Save(context.Background(), state); err != nil {
		t.Fatalf("save: %v", err)
	}

	first, _ := store.Load(context.Background(), "t1")
	first.Messages[0].Content = "mutated"
	first.Messages = append(first.Messages, domain.Message{Role: domain.RoleAssistant, Content: "extra"})

	second, _ := store.Load(context.Background(), "t1")
	if second.Messages[0].Content != "original" || len(second.Messages) != 1 {
		t.Fatalf("shared state leaked: %+v", second.Messages)
	}
}

func TestSaveRejectsMissingThreadID(t *testing.T) {
	store := NewStore()
	err := store.Save(context.Background(), &domain.ConversationState{})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("err = %v, want invalid input", err)
	}
}

func TestConcurrentSaveAndLoad(t *testing.T) {
	store := NewStore()
	base := domain.NewConversationState("t1", "Gamification", domain.StudentProfile{})
	if err := store.Save(context.Background(), base); err != nil {
		t.Fatalf("save: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				state, err := store.Load(context.Background(), "t1")
				if err != nil {
					t.Errorf("load: %v", err)
					return
				}
				state.Messages = append(state.Messages, domain.Message{Role: domain.RoleUser, Content: "x"})
				if err := store.Save(context.Background(), state); err != nil {
					t.Errorf("save: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()
}
