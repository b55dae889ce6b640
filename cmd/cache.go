package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hbarnett99/so-you-made-a-mix/internal/formatter"
	"github.com/hbarnett99/so-you-made-a-mix/internal/repositories"
	"github.com/hbarnett99/so-you-made-a-mix/internal/shared"
	"github.com/urfave/cli/v3"
)

// openCandidates opens the cache database regardless of database.enabled, so it can be inspected.
func (r *Runner) openCandidates() (*sql.DB, *repositories.CandidateRepository, error) {
	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return nil, nil, err
	}
	return db, repositories.NewCandidateRepository(db), nil
}

// CacheList prints the most recently cached candidates.
func (r *Runner) CacheList(ctx context.Context, cmd *cli.Command) error {
	db, repo, err := r.openCandidates()
	if err != nil {
		return err
	}
	defer db.Close()

	candidates, err := repo.List(ctx, cmd.Int("limit"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(candidates, true)
	}

	total, err := repo.Count(ctx)
	if err != nil {
		return err
	}
	if err := r.writePlain("%s\n", formatter.CandidateTable(candidates)); err != nil {
		return err
	}
	return r.writePlain("%d of %d cached candidates\n", len(candidates), total)
}

// CacheClear removes every cached candidate.
func (r *Runner) CacheClear(ctx context.Context, cmd *cli.Command) error {
	db, repo, err := r.openCandidates()
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := repo.Clear(ctx)
	if err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}

	r.logger.Info("cache cleared", "removed", n)
	return r.writePlain("✓ Removed %d cached candidates\n", n)
}
