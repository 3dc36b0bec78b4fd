package cli

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"quizsync-service/internal/config"
	"quizsync-service/internal/infra/blob"
	"quizsync-service/internal/infra/csvsource"
	"quizsync-service/internal/infra/postgres"
)

// NewImportCmd stores a spreadsheet export as a named question set.
func NewImportCmd(configPath *string) *cobra.Command {
	var name, file, mediaDir string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a CSV question file into the question store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), *configPath, name, file, mediaDir)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "question set name")
	cmd.Flags().StringVar(&file, "file", "", "path to the CSV file")
	cmd.Flags().StringVar(&mediaDir, "media", "", "directory holding the media files the CSV refers to")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runImport(ctx context.Context, configPath, name, file, mediaDir string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	}

	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()
	questions, err := csvsource.Parse(f)
	if err != nil {
		return fmt.Errorf("parse %s: %w", file, err)
	}

	if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
		return err
	}
	pool, err := postgres.OpenPool(ctx, cfg.Postgres.URL)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := postgres.NewQuestionStore(pool).SaveQuestionSet(ctx, name, questions); err != nil {
		return err
	}
	logger.Infow("imported question set", "set", name, "questions", len(questions))

	needed := csvsource.MediaFilenames(questions)
	if len(needed) == 0 {
		return nil
	}
	if mediaDir == "" || cfg.Blob.Endpoint == "" {
		logger.Warnw("media files not uploaded; they will be dropped unless already in the blob store",
			"files", needed)
		return nil
	}
	return uploadMedia(ctx, cfg, logger, mediaDir, needed)
}

func uploadMedia(ctx context.Context, cfg config.Config, logger *zap.SugaredLogger, dir string, needed []string) error {
	store, err := blob.NewMinioStore(blobOptions(cfg), logger)
	if err != nil {
		return err
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read media dir: %w", err)
	}
	// filenames in spreadsheets rarely match the case on disk
	byLower := make(map[string]string, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			byLower[strings.ToLower(e.Name())] = e.Name()
		}
	}

	var missing []string
	for _, want := range needed {
		onDisk, ok := byLower[strings.ToLower(want)]
		if !ok {
			missing = append(missing, want)
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, onDisk))
		if err != nil {
			return fmt.Errorf("read %s: %w", onDisk, err)
		}
		contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(onDisk)))
		if _, err := store.Upload(ctx, path.Join("media", want), data, contentType); err != nil {
			return err
		}
		logger.Infow("uploaded media", "file", want, "size", humanize.Bytes(uint64(len(data))))
	}
	if len(missing) > 0 {
		logger.Warnw("media files missing from directory", "files", missing)
	}
	return nil
}
