package cli

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"quizsync-service/internal/config"
	"quizsync-service/internal/domain"
)

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	cfg := config.Default()
	cfg.Log.Level = "chatty"
	if _, err := newLogger(cfg); err == nil {
		t.Fatalf("expected invalid level error")
	}

	cfg.Log.Level = "debug"
	cfg.Log.Development = true
	if _, err := newLogger(cfg); err != nil {
		t.Fatalf("newLogger: %v", err)
	}
}

func TestQuestionSourceFallsBackToDemoSet(t *testing.T) {
	ctx := context.Background()
	source := newQuestionSource(config.Default(), nil)

	questions, err := source.LoadQuestionSet(ctx, "demo")
	if err != nil {
		t.Fatalf("load demo: %v", err)
	}
	if len(questions) == 0 {
		t.Fatalf("expected demo questions")
	}
	if _, err := source.LoadQuestionSet(ctx, "missing"); !errors.Is(err, domain.ErrQuestionSetNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestQuestionSourceReadsDirectory(t *testing.T) {
	dir := t.TempDir()
	csv := "Q,A1,A2,CAT\nCapital of France?,Paris,Lyon,MULTICHOICE\n"
	if err := os.WriteFile(filepath.Join(dir, "geo.csv"), []byte(csv), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	cfg := config.Default()
	cfg.Questions.Dir = dir
	questions, err := newQuestionSource(cfg, nil).LoadQuestionSet(context.Background(), "geo")
	if err != nil {
		t.Fatalf("load geo: %v", err)
	}
	if len(questions) != 1 || questions[0].Answers[0] != "Paris" {
		t.Fatalf("unexpected questions %+v", questions)
	}
}
