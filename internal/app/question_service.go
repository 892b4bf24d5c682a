package app

import (
	"context"
	"fmt"
	"strings"

	"timed-quiz-service/internal/domain"
)

const minPromptLength = 5

// QuestionService manages the question bank. Reads go through the cache,
// writes go to the store and then invalidate the cache.
type QuestionService struct {
	store QuestionStore
	cache QuestionRepository
}

// NewQuestionService wires a store with an optional read cache. When cache is
// nil reads go straight to the store.
func NewQuestionService(store QuestionStore, cache QuestionRepository) *QuestionService {
	if cache == nil {
		cache = store
	}
	return &QuestionService{store: store, cache: cache}
}

// ListQuestions satisfies QuestionRepository so the session service can score
// against the cached bank.
func (s *QuestionService) ListQuestions(ctx context.Context) ([]domain.Question, error) {
	return s.cache.ListQuestions(ctx)
}

// Create validates and stores a new question.
func (s *QuestionService) Create(ctx context.Context, prompt, answer string) (domain.Question, error) {
	if strings.TrimSpace(prompt) == "" || strings.TrimSpace(answer) == "" {
		return domain.Question{}, domain.NewValidationError("question", "Question and answer cannot be empty")
	}
	if err := validatePrompt(prompt); err != nil {
		return domain.Question{}, err
	}
	q := domain.Question{
		Prompt: strings.TrimSpace(prompt),
		Answer: strings.TrimSpace(answer),
	}
	if err := s.store.CreateQuestion(ctx, &q); err != nil {
		return domain.Question{}, fmt.Errorf("create question: %w", err)
	}
	return q, s.invalidate(ctx)
}

// Edit updates the non-empty fields of an existing question.
func (s *QuestionService) Edit(ctx context.Context, id int64, prompt, answer string) (domain.Question, error) {
	if id <= 0 {
		return domain.Question{}, domain.NewValidationError("id", "Question ID is required")
	}
	q, err := s.store.GetQuestion(ctx, id)
	if err != nil {
		return domain.Question{}, err
	}
	if prompt != "" {
		if err := validatePrompt(prompt); err != nil {
			return domain.Question{}, err
		}
		q.Prompt = strings.TrimSpace(prompt)
	}
	if answer != "" {
		if strings.TrimSpace(answer) == "" {
			return domain.Question{}, domain.NewValidationError("answer", "Answer cannot be empty")
		}
		q.Answer = strings.TrimSpace(answer)
	}
	if err := s.store.UpdateQuestion(ctx, q); err != nil {
		return domain.Question{}, fmt.Errorf("update question: %w", err)
	}
	return q, s.invalidate(ctx)
}

// Delete removes a question.
func (s *QuestionService) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return domain.NewValidationError("id", "Question ID is required")
	}
	if err := s.store.DeleteQuestion(ctx, id); err != nil {
		return err
	}
	return s.invalidate(ctx)
}

func (s *QuestionService) invalidate(ctx context.Context) error {
	inv, ok := s.cache.(QuestionCacheInvalidator)
	if !ok {
		return nil
	}
	if err := inv.Invalidate(ctx); err != nil {
		return fmt.Errorf("invalidate question cache: %w", err)
	}
	return nil
}

func validatePrompt(prompt string) error {
	if len([]rune(strings.TrimSpace(prompt))) < minPromptLength {
		return domain.NewValidationError("question", fmt.Sprintf("Question must be at least %d characters long", minPromptLength))
	}
	return nil
}
