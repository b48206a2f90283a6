// Package pipeline drives the harvest stages: category traversal, entity
// id resolution, metadata and summary fetching, and table assembly. Every
// stage is checkpointed so an interrupted run resumes from the last
// completed stage.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/psivak/filmwiki/internal/checkpoint"
	"github.com/psivak/filmwiki/internal/clean"
	"github.com/psivak/filmwiki/internal/config"
	"github.com/psivak/filmwiki/internal/storage"
	"github.com/psivak/filmwiki/internal/summary"
	"github.com/psivak/filmwiki/internal/types"
	"github.com/psivak/filmwiki/internal/wikiapi"
	"github.com/psivak/filmwiki/internal/wikidata"
)

// Stage names, in execution order. subcats and films are global; the rest
// run per category group.
const (
	StageSubcats   = "subcats"
	StageFilms     = "films"
	StageQIDs      = "qids"
	StageMetadata  = "metadata"
	StageSummaries = "summaries"
	StageAssemble  = "assemble"
)

// AllStages lists every stage in execution order.
var AllStages = []string{
	StageSubcats, StageFilms, StageQIDs, StageMetadata, StageSummaries, StageAssemble,
}

// ParseStages validates a stage-selection list. "all" selects everything.
func ParseStages(names []string) (map[string]bool, error) {
	selected := make(map[string]bool, len(AllStages))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "all" {
			for _, s := range AllStages {
				selected[s] = true
			}
			continue
		}
		known := false
		for _, s := range AllStages {
			if s == name {
				known = true
				break
			}
		}
		if !known {
			return nil, fmt.Errorf("%w: %q (valid: all, %s)",
				types.ErrUnknownStage, name, strings.Join(AllStages, ", "))
		}
		selected[name] = true
	}
	return selected, nil
}

// Pipeline wires the resolvers, fetchers, checkpoint store and exporter.
type Pipeline struct {
	cfg       *config.Config
	wiki      *wikiapi.Client
	wikidata  *wikidata.Client
	summaries *summary.Fetcher
	store     *checkpoint.Store
	exporter  storage.Exporter
	logger    *slog.Logger
}

// New builds a Pipeline with all collaborators constructed from config.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Pipeline, error) {
	store, err := checkpoint.NewStore(cfg.Checkpoint.Dir, logger)
	if err != nil {
		return nil, err
	}
	exporter, err := storage.NewExporter(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		cfg:       cfg,
		wiki:      wikiapi.NewClient(cfg, logger),
		wikidata:  wikidata.NewClient(cfg, logger),
		summaries: summary.NewFetcher(summary.FromAppConfig(cfg), logger),
		store:     store,
		exporter:  exporter,
		logger:    logger.With("component", "pipeline"),
	}, nil
}

// Close releases the exporter.
func (p *Pipeline) Close() error {
	return p.exporter.Close()
}

// Run executes the selected stages, optionally restricted to one category
// group. A stage that is not selected must already have its checkpoint
// artifact; otherwise the group (or the whole run, for global stages) is
// skipped with an operator-visible message rather than aborting the rest.
func (p *Pipeline) Run(ctx context.Context, selected map[string]bool, onlyGroup string) error {
	subcats, err := p.subcatsStage(ctx, selected[StageSubcats])
	if err != nil {
		return err
	}

	films, err := p.filmsStage(ctx, selected[StageFilms], subcats)
	if err != nil {
		return err
	}

	groups := make([]string, 0, len(films))
	for group := range films {
		groups = append(groups, group)
	}
	sort.Strings(groups)

	if onlyGroup != "" {
		if _, ok := films[onlyGroup]; !ok {
			return fmt.Errorf("%w: %q (available: %s)",
				types.ErrUnknownGroup, onlyGroup, strings.Join(groups, ", "))
		}
		groups = []string{onlyGroup}
	}

	for _, group := range groups {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.runGroup(ctx, selected, group, films[group]); err != nil {
			// A fatal error in one group does not corrupt checkpoints
			// already written; move on to the next group.
			p.logger.Error("group failed", "group", group, "error", err)
		}
	}
	return nil
}

// runGroup executes the per-group stages for one category group.
func (p *Pipeline) runGroup(ctx context.Context, selected map[string]bool, group string, titles []string) error {
	p.logger.Info("processing group", "group", group, "titles", len(titles))

	ids, err := p.qidsStage(ctx, selected[StageQIDs], group, titles)
	if err != nil {
		return err
	}
	if ids == nil {
		return nil // prerequisite missing, already reported
	}

	meta, err := p.metadataStage(ctx, selected[StageMetadata], group, ids)
	if err != nil {
		return err
	}
	if meta == nil {
		return nil
	}

	sums, err := p.summariesStage(ctx, selected[StageSummaries], group, ids)
	if err != nil {
		return err
	}
	if sums == nil {
		return nil
	}

	if !selected[StageAssemble] {
		return nil
	}
	return p.assembleStage(ctx, group, ids, meta, sums)
}

// subcatsStage discovers the direct subcategories of every target group.
func (p *Pipeline) subcatsStage(ctx context.Context, run bool) (map[string][]string, error) {
	artifact := checkpoint.ArtifactName(StageSubcats, "")
	subcats := make(map[string][]string)

	if p.store.Has(artifact) {
		if err := p.store.Load(artifact, &subcats); err != nil {
			return nil, err
		}
		return subcats, nil
	}
	if !run {
		p.logger.Error("subcategories checkpoint not found; run the subcats stage first")
		return nil, &types.StageError{Stage: StageSubcats, Err: types.ErrMissingCheckpoint}
	}

	p.logger.Info("building subcategories", "groups", len(p.cfg.Sources.TargetGroups))
	for _, group := range p.cfg.Sources.TargetGroups {
		members, err := p.wiki.CategoryMembers(ctx, group, wikiapi.MemberSubcats)
		if err != nil {
			return nil, &types.StageError{Stage: StageSubcats, Group: group, Err: err}
		}
		subcats[group] = members
	}

	if err := p.store.Save(artifact, subcats); err != nil {
		return nil, err
	}
	return subcats, nil
}

// filmsStage unions each group's direct member pages with the pages of all
// its subcategories.
func (p *Pipeline) filmsStage(ctx context.Context, run bool, subcats map[string][]string) (map[string][]string, error) {
	artifact := checkpoint.ArtifactName(StageFilms, "")
	films := make(map[string][]string)

	if p.store.Has(artifact) {
		if err := p.store.Load(artifact, &films); err != nil {
			return nil, err
		}
		return films, nil
	}
	if !run {
		p.logger.Error("films checkpoint not found; run the films stage first")
		return nil, &types.StageError{Stage: StageFilms, Err: types.ErrMissingCheckpoint}
	}

	p.logger.Info("building film lists", "groups", len(subcats))
	for group, cats := range subcats {
		seen := make(map[string]bool)

		pages, err := p.wiki.CategoryMembers(ctx, group, wikiapi.MemberPages)
		if err != nil {
			return nil, &types.StageError{Stage: StageFilms, Group: group, Err: err}
		}
		for _, page := range pages {
			seen[page] = true
		}

		for _, cat := range cats {
			pages, err := p.wiki.CategoryMembers(ctx, wikiapi.StripCategoryPrefix(cat), wikiapi.MemberPages)
			if err != nil {
				return nil, &types.StageError{Stage: StageFilms, Group: group, Err: err}
			}
			for _, page := range pages {
				seen[page] = true
			}
		}

		titles := make([]string, 0, len(seen))
		for title := range seen {
			titles = append(titles, title)
		}
		sort.Strings(titles)
		films[group] = titles
		p.logger.Info("group films discovered", "group", group, "films", len(titles))
	}

	if err := p.store.Save(artifact, films); err != nil {
		return nil, err
	}
	return films, nil
}

// qidsStage resolves titles to entity ids for one group. Returns a nil map
// (and nil error) when the stage is unselected and its checkpoint missing.
func (p *Pipeline) qidsStage(ctx context.Context, run bool, group string, titles []string) (map[string]string, error) {
	artifact := checkpoint.ArtifactName(StageQIDs, group)
	ids := make(map[string]string)

	if p.store.Has(artifact) {
		if err := p.store.Load(artifact, &ids); err != nil {
			return nil, err
		}
		return ids, nil
	}
	if !run {
		p.logger.Warn("qids checkpoint missing, skipping group", "group", group)
		return nil, nil
	}

	p.logger.Info("resolving entity ids", "group", group, "titles", len(titles))
	ids, err := p.wiki.ResolveEntityIDs(ctx, titles)
	if err != nil {
		return nil, &types.StageError{Stage: StageQIDs, Group: group, Err: err}
	}

	if err := p.store.Save(artifact, ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// metadataStage fetches structured metadata for one group's entity ids.
func (p *Pipeline) metadataStage(ctx context.Context, run bool, group string, ids map[string]string) (map[string]*types.Metadata, error) {
	artifact := checkpoint.ArtifactName(StageMetadata, group)
	meta := make(map[string]*types.Metadata)

	if p.store.Has(artifact) {
		if err := p.store.Load(artifact, &meta); err != nil {
			return nil, err
		}
		return meta, nil
	}
	if !run {
		p.logger.Warn("metadata checkpoint missing, skipping group", "group", group)
		return nil, nil
	}

	qids := make([]string, 0, len(ids))
	for _, qid := range ids {
		qids = append(qids, qid)
	}
	sort.Strings(qids)

	p.logger.Info("fetching metadata", "group", group, "ids", len(qids))
	meta, err := p.wikidata.FetchMetadata(ctx, qids)
	if err != nil {
		return nil, &types.StageError{Stage: StageMetadata, Group: group, Err: err}
	}

	if err := p.store.Save(artifact, meta); err != nil {
		return nil, err
	}
	return meta, nil
}

// summariesStage fetches page summaries for one group's titles. Absent
// summaries are stored as empty strings in the artifact and restored to
// nil on load.
func (p *Pipeline) summariesStage(ctx context.Context, run bool, group string, ids map[string]string) (map[string]*string, error) {
	artifact := checkpoint.ArtifactName(StageSummaries, group)

	if p.store.Has(artifact) {
		flat := make(map[string]string)
		if err := p.store.Load(artifact, &flat); err != nil {
			return nil, err
		}
		return inflateSummaries(flat), nil
	}
	if !run {
		p.logger.Warn("summaries checkpoint missing, skipping group", "group", group)
		return nil, nil
	}

	titles := make([]string, 0, len(ids))
	for title := range ids {
		titles = append(titles, title)
	}
	sort.Strings(titles)

	p.logger.Info("fetching summaries", "group", group, "titles", len(titles))
	sums, err := p.summaries.FetchAll(ctx, titles)
	if err != nil {
		return nil, &types.StageError{Stage: StageSummaries, Group: group, Err: err}
	}

	if err := p.store.Save(artifact, flattenSummaries(sums)); err != nil {
		return nil, err
	}
	return sums, nil
}

// assembleStage joins, cleans, enriches, reports and exports one group.
func (p *Pipeline) assembleStage(ctx context.Context, group string, ids map[string]string, meta map[string]*types.Metadata, sums map[string]*string) error {
	p.logger.Info("assembling table", "group", group)

	rows := clean.Assemble(ids, meta, sums)
	rows = clean.Clean(rows)
	clean.Enrich(rows)

	reportPath, err := storage.WriteReport(p.cfg.Storage.ReportsDir, group, clean.Report(rows))
	if err != nil {
		return &types.StageError{Stage: StageAssemble, Group: group, Err: err}
	}
	p.logger.Info("quality report written", "group", group, "path", reportPath)

	if err := p.exporter.Export(ctx, group, rows); err != nil {
		return &types.StageError{Stage: StageAssemble, Group: group, Err: err}
	}
	p.logger.Info("group complete", "group", group, "rows", len(rows))
	return nil
}

func flattenSummaries(sums map[string]*string) map[string]string {
	flat := make(map[string]string, len(sums))
	for title, s := range sums {
		if s == nil {
			flat[title] = ""
		} else {
			flat[title] = *s
		}
	}
	return flat
}

func inflateSummaries(flat map[string]string) map[string]*string {
	sums := make(map[string]*string, len(flat))
	for title, s := range flat {
		if s == "" {
			sums[title] = nil
		} else {
			v := s
			sums[title] = &v
		}
	}
	return sums
}
