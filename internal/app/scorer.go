package app

import (
	"strconv"
	"strings"

	"timed-quiz-service/internal/domain"
)

// CalculateScore counts answers that match the canonical answer of their
// question, ignoring case and surrounding whitespace. Entries whose ID is not
// an integer or not in the question set are skipped.
func CalculateScore(answers domain.Answers, questions []domain.Question) int {
	canonical := make(map[int64]string, len(questions))
	for _, q := range questions {
		canonical[q.ID] = normalizeAnswer(q.Answer)
	}

	score := 0
	for rawID, answer := range answers {
		id, err := strconv.ParseInt(strings.TrimSpace(rawID), 10, 64)
		if err != nil {
			continue
		}
		want, ok := canonical[id]
		if !ok {
			continue
		}
		if normalizeAnswer(answer) == want {
			score++
		}
	}
	return score
}

func normalizeAnswer(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
