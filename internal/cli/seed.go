package cli

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/domain"
	"timed-quiz-service/internal/infra/postgres"
)

// NewSeedCmd inserts the starter trivia questions into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert the starter trivia questions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if cfg.Postgres.URL == "" {
				return fmt.Errorf("postgres url not configured")
			}
			log := cfg.Logger()
			if err := runMigrationsWithConfig(cmd.Context(), cfg, log); err != nil {
				return err
			}
			db := postgres.OpenDB(cfg.Postgres.URL)
			defer db.Close()
			questions := app.NewQuestionService(postgres.NewQuestionStore(db), nil)
			return seedQuestions(cmd.Context(), questions, force, log)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "insert even if the question bank is not empty")
	return cmd
}

func seedQuestions(ctx context.Context, questions *app.QuestionService, force bool, log logrus.FieldLogger) error {
	existing, err := questions.ListQuestions(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 && !force {
		log.WithField("count", len(existing)).Info("question bank already populated, skipping seed")
		return nil
	}
	for _, q := range triviaQuestions() {
		if _, err := questions.Create(ctx, q.Prompt, q.Answer); err != nil {
			return fmt.Errorf("seed %q: %w", q.Prompt, err)
		}
	}
	log.WithField("count", len(triviaQuestions())).Info("seeded trivia questions")
	return nil
}

func triviaQuestions() []domain.Question {
	return []domain.Question{
		{ID: 1, Prompt: "Which planet in our solar system is known for its prominent ring system?", Answer: "Saturn"},
		{ID: 2, Prompt: "What is the chemical symbol for gold?", Answer: "Au"},
		{ID: 3, Prompt: "In which city is the famous Louvre Museum located?", Answer: "Paris"},
		{ID: 4, Prompt: "What is the tallest mammal in the world?", Answer: "Giraffe"},
		{ID: 5, Prompt: "Which element has the atomic number 1?", Answer: "Hydrogen"},
		{ID: 6, Prompt: "Who wrote the play 'Romeo and Juliet'?", Answer: "William Shakespeare"},
		{ID: 7, Prompt: "What is the capital of Australia?", Answer: "Canberra"},
		{ID: 8, Prompt: "How many continents are there on Earth?", Answer: "Seven"},
		{ID: 9, Prompt: "What is the main ingredient in traditional Japanese miso soup?", Answer: "Miso (fermented soybean paste)"},
		{ID: 10, Prompt: "Which gas do plants absorb from the atmosphere during photosynthesis?", Answer: "Carbon dioxide"},
	}
}
