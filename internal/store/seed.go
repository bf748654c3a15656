package store

import (
	"context"
	"fmt"
	"log/slog"
)

// SeedDemoQuestions fills an empty question bank with a small demo set so
// the engine is playable without an external content pipeline.
// Idempotent: does nothing if any questions exist.
func (s *SQLiteStore) SeedDemoQuestions(ctx context.Context, logger *slog.Logger) error {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions`).Scan(&count); err != nil {
		return fmt.Errorf("counting questions: %w", err)
	}
	if count > 0 {
		return nil
	}

	demo := []struct {
		topic, prompt, answer string
	}{
		{"science", "Which planet is known as the Red Planet?", "Mars"},
		{"science", "What gas do plants absorb from the atmosphere?", "Carbon dioxide"},
		{"science", "What is the chemical symbol for gold?", "Au"},
		{"science", "How many bones does an adult human have?", "206"},
		{"science", "What force keeps planets in orbit around the sun?", "Gravity"},
		{"science", "What is the hardest natural substance on Earth?", "Diamond"},
		{"science", "What particle carries a negative charge?", "Electron"},
		{"science", "Which organ produces insulin?", "Pancreas"},
		{"science", "What is the speed of light in km/s, to the nearest thousand?", "300000"},
		{"science", "What is H2O commonly known as?", "Water"},
		{"history", "In which year did the Second World War end?", "1945"},
		{"history", "Who was the first president of the United States?", "George Washington"},
		{"history", "Which empire built the Colosseum?", "Roman"},
		{"history", "In which year did the Berlin Wall fall?", "1989"},
		{"history", "Who painted the Mona Lisa?", "Leonardo da Vinci"},
		{"history", "Which ship sank on its maiden voyage in 1912?", "Titanic"},
		{"history", "What ancient wonder stood in Alexandria?", "Lighthouse"},
		{"history", "Who was the first human in space?", "Yuri Gagarin"},
		{"history", "Which year did the French Revolution begin?", "1789"},
		{"history", "What wall divided a European capital for 28 years?", "Berlin Wall"},
	}

	for _, q := range demo {
		if _, err := s.db.ExecContext(ctx, `
			INSERT INTO questions (topic, prompt, correct_answer) VALUES (?, ?, ?)
		`, q.topic, q.prompt, q.answer); err != nil {
			return fmt.Errorf("seeding question: %w", err)
		}
	}

	logger.Info("demo questions seeded", "count", len(demo))
	return nil
}
