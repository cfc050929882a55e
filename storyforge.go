// Package storyforge keeps a novel project's character and organization
// graph synchronized with its generated narrative. It covers both ends of
// the writing loop: materializing newly mentioned entities before a chapter
// is written, and folding a finished chapter's analyzed changes back into
// the graph.
package storyforge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/storyforge/go-storyforge/pkg/elaborate"
	"github.com/storyforge/go-storyforge/pkg/llm"
	"github.com/storyforge/go-storyforge/pkg/mentions"
	"github.com/storyforge/go-storyforge/pkg/prompts"
	"github.com/storyforge/go-storyforge/pkg/reconcile"
	"github.com/storyforge/go-storyforge/pkg/resolver"
	"github.com/storyforge/go-storyforge/pkg/store"
	"github.com/storyforge/go-storyforge/pkg/types"
)

var (
	// ErrNoProject is returned when the referenced project does not exist.
	ErrNoProject = errors.New("project not found")
	// ErrNoLLM is returned when an operation needs a language model but
	// the client was built without one.
	ErrNoLLM = errors.New("no LLM client configured")
)

// StoryForge is the main interface for narrative entity synchronization.
type StoryForge interface {
	// SyncMentions extracts entity mentions from freshly generated
	// narrative units and materializes every entity that is not yet
	// persisted.
	SyncMentions(ctx context.Context, projectID string, units []types.NarrativeUnit) (*resolver.Report, error)

	// ApplyAnalysis folds one chapter's extracted change records into the
	// persisted graph.
	ApplyAnalysis(ctx context.Context, projectID string, batch types.AnalysisBatch) (*reconcile.Report, error)

	// Close closes all connections and cleans up resources.
	Close(ctx context.Context) error
}

// Config holds configuration for the StoryForge client.
type Config struct {
	Logger *slog.Logger
}

// Client is the main implementation of the StoryForge interface.
type Client struct {
	store      store.Store
	llm        llm.Client
	prompts    prompts.Library
	resolver   *resolver.Resolver
	reconciler *reconcile.Reconciler
	logger     *slog.Logger
}

// NewClient creates a new StoryForge client. The LLM client may be nil, in
// which case SyncMentions refuses to elaborate missing entities while
// ApplyAnalysis keeps working.
func NewClient(graphStore store.Store, llmClient llm.Client, config *Config) *Client {
	if config == nil {
		config = &Config{}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	library := prompts.NewLibrary()
	elaborator := elaborate.NewElaborator(llmClient, library, logger)

	return &Client{
		store:      graphStore,
		llm:        llmClient,
		prompts:    library,
		resolver:   resolver.NewResolver(elaborator, logger),
		reconciler: reconcile.NewReconciler(logger),
		logger:     logger,
	}
}

// SyncMentions extracts mentions from the units, creates every entity that
// has no persisted record yet, and commits the batch. Entities that fail to
// elaborate are reported and skipped; the rest of the batch still lands.
func (c *Client) SyncMentions(ctx context.Context, projectID string, units []types.NarrativeUnit) (*resolver.Report, error) {
	set := mentions.Extract(units)
	if set.Len() == 0 {
		return &resolver.Report{}, nil
	}
	if c.llm == nil {
		return nil, ErrNoLLM
	}

	tx, err := c.store.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	report, err := c.resolver.Resolve(ctx, tx, projectID, set)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNoProject, projectID)
		}
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit resolved entities: %w", err)
	}
	return report, nil
}

// ApplyAnalysis folds the batch into the graph and commits. Individual
// deltas that cannot be applied are reported and skipped; a failing flush
// rolls the whole batch back.
func (c *Client) ApplyAnalysis(ctx context.Context, projectID string, batch types.AnalysisBatch) (*reconcile.Report, error) {
	if _, err := c.projectExists(ctx, projectID); err != nil {
		return nil, err
	}

	tx, err := c.store.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	report, err := c.reconciler.Apply(ctx, tx, projectID, batch)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit reconciled changes: %w", err)
	}
	return report, nil
}

func (c *Client) projectExists(ctx context.Context, projectID string) (*types.Project, error) {
	tx, err := c.store.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	project, err := tx.GetProject(ctx, projectID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNoProject, projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("load project %s: %w", projectID, err)
	}
	return project, nil
}

// Close closes the store and the LLM client.
func (c *Client) Close(ctx context.Context) error {
	var errs []error
	if c.llm != nil {
		if err := c.llm.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := c.store.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
