package build

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/docsforge/internal/addons"
	"git.home.luguber.info/inful/docsforge/internal/buildenv"
	"git.home.luguber.info/inful/docsforge/internal/builder"
	_ "git.home.luguber.info/inful/docsforge/internal/builder/mkdocs"
	_ "git.home.luguber.info/inful/docsforge/internal/builder/sphinx"
	"git.home.luguber.info/inful/docsforge/internal/checkout"
	"git.home.luguber.info/inful/docsforge/internal/config"
	errs "git.home.luguber.info/inful/docsforge/internal/errors"
	"git.home.luguber.info/inful/docsforge/internal/logfields"
	"git.home.luguber.info/inful/docsforge/internal/metrics"
	"git.home.luguber.info/inful/docsforge/internal/project"
	"git.home.luguber.info/inful/docsforge/internal/pythonenv"
	"git.home.luguber.info/inful/docsforge/internal/search"
	"git.home.luguber.info/inful/docsforge/internal/syncer"
	"git.home.luguber.info/inful/docsforge/internal/workspace"
)

// Runner is the production Service implementation.
type Runner struct {
	Cfg       *config.Config
	Store     *project.Store
	Workspace *workspace.Manager
	Env       buildenv.Environment
	Checkout  *checkout.Client
	Recorder  metrics.Recorder
	Syncer    syncer.Syncer
	// Archiver is optional; set when sync.archive is configured.
	Archiver *syncer.Archiver
	// PublishRoot is where published sites live, locally or on app servers.
	PublishRoot string
}

// Run implements Service.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	recorder := r.Recorder
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}

	result := &Result{
		BuildID:   uuid.NewString(),
		StartTime: time.Now(),
	}

	p, v, err := r.resolve(ctx, req)
	if err != nil {
		return r.finish(ctx, result, nil, nil, recorder, req.SkipSync, err)
	}
	result.Doctype = p.Doctype

	slog.Info("Starting build",
		logfields.BuildID(result.BuildID),
		logfields.Project(p.Slug), logfields.Version(v.Slug),
		logfields.Doctype(p.Doctype))

	err = r.execute(ctx, result, p, v)
	return r.finish(ctx, result, p, v, recorder, req.SkipSync, err)
}

func (r *Runner) resolve(ctx context.Context, req Request) (*project.Project, *project.Version, error) {
	p, err := r.Store.GetProject(ctx, req.ProjectSlug)
	if err != nil {
		return nil, nil, err
	}
	v, err := r.Store.GetVersion(ctx, p.ID, req.VersionSlug)
	if err != nil {
		return nil, nil, err
	}
	return p, v, nil
}

func (r *Runner) execute(ctx context.Context, result *Result, p *project.Project, v *project.Version) error {
	checkoutPath := r.Workspace.CheckoutPath(p.Slug, v.Slug)
	outputPath := r.Workspace.ArtifactPath(p.Slug, v.Slug, "html")
	envPath := r.Workspace.EnvPath(p.Slug, v.Slug)
	result.OutputPath = outputPath

	slog.Debug("Checking out sources", logfields.Stage("checkout"), logfields.Project(p.Slug))
	if err := r.Checkout.Checkout(ctx, p, v, checkoutPath); err != nil {
		return err
	}

	projectCfg, err := config.LoadProjectConfig(checkoutPath)
	if err != nil {
		return errs.Wrap(err, errs.CategoryConfig, errs.SeverityFatal, "invalid project configuration")
	}
	doctype := r.doctype(p, projectCfg)
	result.Doctype = doctype

	slog.Debug("Preparing python environment", logfields.Stage("pythonenv"), logfields.Project(p.Slug))
	env := pythonenv.New(pythonenv.Options{
		Project:      p,
		Version:      v,
		Config:       projectCfg,
		Env:          r.Env,
		CheckoutPath: checkoutPath,
		EnvPath:      envPath,
		Doctype:      doctype,
	})
	if err := env.Setup(ctx); err != nil {
		return err
	}
	if err := env.InstallCore(ctx); err != nil {
		return err
	}
	if err := env.InstallUserRequirements(ctx); err != nil {
		return err
	}

	if err := r.Workspace.EnsureDir(outputPath); err != nil {
		return errs.WorkspaceError("create output dir", err)
	}

	bld, err := builder.New(doctype, &builder.Build{
		Project:       p,
		Version:       v,
		Config:        projectCfg,
		Media:         r.Cfg.Media,
		Env:           r.Env,
		CheckoutPath:  checkoutPath,
		OutputPath:    outputPath,
		PythonBinPath: env.BinPath(),
	})
	if err != nil {
		return errs.Wrap(err, errs.CategoryBuild, errs.SeverityFatal, "unsupported doctype")
	}

	slog.Debug("Injecting platform configuration", logfields.Stage("append_config"), logfields.Project(p.Slug))
	if err := bld.AppendConfig(ctx); err != nil {
		return err
	}

	slog.Debug("Running generator", logfields.Stage("generate"), logfields.Project(p.Slug))
	if err := bld.Run(ctx); err != nil {
		return errs.BuildFailed("generate", err)
	}

	slog.Debug("Indexing for search", logfields.Stage("search"), logfields.Project(p.Slug))
	idx, err := search.BuildIndex(outputPath, p.Slug, v.Slug)
	if err != nil {
		return errs.BuildFailed("search_index", err)
	}
	if err := idx.Write(outputPath); err != nil {
		return errs.BuildFailed("search_index", err)
	}

	r.writeAddons(ctx, result, p, v, outputPath)

	return nil
}

// writeAddons drops the addons document next to the built pages. The site is
// servable without it, so failures only warn.
func (r *Runner) writeAddons(ctx context.Context, result *Result, p *project.Project, v *project.Version, outputPath string) {
	versions, err := r.Store.ListVersions(ctx, p.ID, true)
	if err != nil {
		slog.Warn("Failed to list versions for addons document",
			logfields.Project(p.Slug), logfields.Error(err))
		return
	}

	// The document ships with the pages it describes, so the snapshot is the
	// in-flight build. Generation already succeeded by this point.
	b := &project.Build{
		ID:        result.BuildID,
		ProjectID: p.ID,
		VersionID: v.ID,
		State:     "finished",
		Outcome:   string(StatusSuccess),
		StartedAt: result.StartTime,
		EndedAt:   time.Now(),
	}

	assembler := &addons.Assembler{ProductionDomain: r.Cfg.Media.ProductionDomain}
	data, err := addons.MarshalDocument(assembler.Assemble(p, v, versions, b))
	if err != nil {
		slog.Warn("Failed to assemble addons document",
			logfields.Project(p.Slug), logfields.Error(err))
		return
	}
	if err := os.WriteFile(filepath.Join(outputPath, addons.DocumentFileName), data, 0o644); err != nil {
		slog.Warn("Failed to write addons document",
			logfields.Project(p.Slug), logfields.Error(err))
	}
}

// doctype prefers what the checkout declares over the stored project record;
// the repository is the source of truth once checked out.
func (r *Runner) doctype(p *project.Project, cfg *config.ProjectConfig) string {
	if cfg.MkDocs != nil {
		return project.DoctypeMkDocs
	}
	if p.Doctype != "" && p.Doctype != project.DoctypeMkDocs {
		return p.Doctype
	}
	return project.DoctypeSphinx
}

// finish publishes on success, records metrics and persists the build.
func (r *Runner) finish(ctx context.Context, result *Result, p *project.Project, v *project.Version, recorder metrics.Recorder, skipSync bool, err error) (*Result, error) {
	if err == nil && p != nil && !skipSync {
		err = r.publish(ctx, result, p, v)
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	result.Err = err

	switch {
	case err == nil:
		result.Status = StatusSuccess
	case ctx.Err() != nil:
		result.Status = StatusCanceled
	default:
		result.Status = StatusFailed
	}

	recorder.ObserveBuildDuration(result.Doctype, result.Duration)
	recorder.IncBuildOutcome(result.Doctype, outcomeLabel(result.Status))

	if p != nil && v != nil {
		r.record(ctx, result, p, v)
	}

	if err != nil {
		slog.Error("Build failed",
			logfields.BuildID(result.BuildID), logfields.Error(err),
			logfields.DurationMS(float64(result.Duration.Milliseconds())))
		return result, err
	}
	slog.Info("Build finished",
		logfields.BuildID(result.BuildID),
		logfields.DurationMS(float64(result.Duration.Milliseconds())))
	return result, nil
}

func (r *Runner) publish(ctx context.Context, result *Result, p *project.Project, v *project.Version) error {
	if r.Syncer == nil {
		return nil
	}
	if r.PublishRoot == "" {
		return nil
	}
	dest := filepath.Join(r.PublishRoot, p.Slug, v.Slug)

	slog.Debug("Publishing build", logfields.Stage("sync"), logfields.Project(p.Slug), logfields.Path(dest))
	if err := r.Syncer.Sync(ctx, result.OutputPath, dest); err != nil {
		return err
	}

	if r.Archiver != nil {
		if _, err := r.Archiver.ArchiveBuild(ctx, result.BuildID, result.OutputPath); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) record(ctx context.Context, result *Result, p *project.Project, v *project.Version) {
	b := &project.Build{
		ID:        result.BuildID,
		ProjectID: p.ID,
		VersionID: v.ID,
		State:     "finished",
		Outcome:   string(result.Status),
		StartedAt: result.StartTime,
		EndedAt:   result.EndTime,
	}
	if err := r.Store.RecordBuild(ctx, b); err != nil {
		slog.Warn("Failed to record build", logfields.BuildID(result.BuildID), logfields.Error(err))
	}
	if result.Status == StatusSuccess {
		if err := r.Store.MarkVersionBuilt(ctx, v.ID); err != nil {
			slog.Warn("Failed to mark version built", logfields.Version(v.Slug), logfields.Error(err))
		}
	}
}

func outcomeLabel(s Status) metrics.BuildOutcomeLabel {
	switch s {
	case StatusSuccess:
		return metrics.OutcomeSuccess
	case StatusCanceled:
		return metrics.OutcomeCanceled
	default:
		return metrics.OutcomeFailure
	}
}
