package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"git.home.luguber.info/inful/docsforge/internal/build"
	"git.home.luguber.info/inful/docsforge/internal/buildenv"
	"git.home.luguber.info/inful/docsforge/internal/builder"
	"git.home.luguber.info/inful/docsforge/internal/checkout"
	"git.home.luguber.info/inful/docsforge/internal/config"
	"git.home.luguber.info/inful/docsforge/internal/daemon"
	"git.home.luguber.info/inful/docsforge/internal/logfields"
	"git.home.luguber.info/inful/docsforge/internal/metrics"
	"git.home.luguber.info/inful/docsforge/internal/preview"
	"git.home.luguber.info/inful/docsforge/internal/project"
	"git.home.luguber.info/inful/docsforge/internal/storage"
	"git.home.luguber.info/inful/docsforge/internal/syncer"
	"git.home.luguber.info/inful/docsforge/internal/version"
	"git.home.luguber.info/inful/docsforge/internal/workspace"
)

var CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"docsforge.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `help:"Print version and exit"`

	Build struct {
		Project  string `arg:"" help:"Project slug"`
		Version  string `arg:"" optional:"" default:"latest" help:"Version slug"`
		SkipSync bool   `help:"Build without publishing the result"`
	} `cmd:"" help:"Build one project version"`

	Discover struct {
		Project string `arg:"" help:"Project slug"`
		Version string `arg:"" optional:"" default:"latest" help:"Version slug"`
	} `cmd:"" help:"Check out a project and report the detected documentation setup"`

	Sync struct {
		Project string `arg:"" help:"Project slug"`
		Version string `arg:"" optional:"" default:"latest" help:"Version slug"`
	} `cmd:"" help:"Publish the last build output without rebuilding"`

	Watch struct {
		Project  string        `arg:"" help:"Project slug"`
		Version  string        `arg:"" optional:"" default:"latest" help:"Version slug"`
		Debounce time.Duration `default:"500ms" help:"Settle time before rebuilding"`
	} `cmd:"" help:"Build, then rebuild whenever checked-out sources change"`

	Pull struct {
		Host    string `arg:"" help:"Build host to pull from"`
		Project string `arg:"" help:"Project slug"`
		Version string `arg:"" optional:"" default:"latest" help:"Version slug"`
	} `cmd:"" help:"Fetch a published version from a build host into the local publish root"`

	Trigger struct {
		Project string `arg:"" help:"Project slug"`
		Version string `arg:"" optional:"" default:"latest" help:"Version slug"`
	} `cmd:"" help:"Enqueue a build job on the daemon queue"`

	Daemon struct{} `cmd:"" help:"Consume build jobs and run scheduled rebuilds"`
}

func main() {
	ctx := kong.Parse(&CLI, kong.Name("docsforge"), kong.Vars{"version": version.Version})

	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))

	cfg, err := config.Load(CLI.Config)
	if err != nil {
		slog.Error("Failed to load configuration", logfields.Error(err))
		os.Exit(1)
	}

	switch cmd := commandName(ctx.Command()); cmd {
	case "build":
		if err := runBuild(cfg, CLI.Build.Project, CLI.Build.Version, CLI.Build.SkipSync); err != nil {
			slog.Error("Build failed", logfields.Error(err))
			os.Exit(1)
		}
	case "discover":
		if err := runDiscover(cfg, CLI.Discover.Project, CLI.Discover.Version); err != nil {
			slog.Error("Discover failed", logfields.Error(err))
			os.Exit(1)
		}
	case "sync":
		if err := runSync(cfg, CLI.Sync.Project, CLI.Sync.Version); err != nil {
			slog.Error("Sync failed", logfields.Error(err))
			os.Exit(1)
		}
	case "watch":
		if err := runWatch(cfg, CLI.Watch.Project, CLI.Watch.Version, CLI.Watch.Debounce); err != nil {
			slog.Error("Watch failed", logfields.Error(err))
			os.Exit(1)
		}
	case "pull":
		if err := runPull(cfg, buildenv.NewLocalEnvironment(nil), CLI.Pull.Host, CLI.Pull.Project, CLI.Pull.Version); err != nil {
			slog.Error("Pull failed", logfields.Error(err))
			os.Exit(1)
		}
	case "trigger":
		if err := runTrigger(cfg, CLI.Trigger.Project, CLI.Trigger.Version); err != nil {
			slog.Error("Trigger failed", logfields.Error(err))
			os.Exit(1)
		}
	case "daemon":
		if err := runDaemon(cfg); err != nil {
			slog.Error("Daemon failed", logfields.Error(err))
			os.Exit(1)
		}
	}
}

// commandName strips argument placeholders from kong's command path.
func commandName(command string) string {
	return strings.Fields(command)[0]
}

// service bundles everything a build needs, wired from the configuration.
type service struct {
	cfg      *config.Config
	store    *project.Store
	ws       *workspace.Manager
	registry *prom.Registry
	runner   *build.Runner
}

func newService(cfg *config.Config) (*service, error) {
	store, err := project.NewStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open project database: %w", err)
	}

	var ws *workspace.Manager
	if cfg.Workspace.Persistent {
		ws = workspace.NewPersistentManager(cfg.Workspace.Root, "docsforge")
	} else {
		ws = workspace.NewManager(cfg.Workspace.Root)
	}
	if err := ws.Create(); err != nil {
		_ = store.Close()
		return nil, err
	}

	recorder := metrics.Recorder(metrics.NoopRecorder{})
	var registry *prom.Registry
	if cfg.Metrics.Enabled {
		registry = prom.NewRegistry()
		recorder = metrics.NewPrometheusRecorder(registry)
	}

	env := buildenv.NewLocalEnvironment(recorder)
	sync, err := syncer.New(cfg.Sync, env, recorder)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	var archiver *syncer.Archiver
	if cfg.Sync.Archive {
		artifacts, err := storage.NewFSStore(cfg.Sync.ArchiveDir)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("open artifact store: %w", err)
		}
		archiver = syncer.NewArchiver(artifacts)
	}

	return &service{
		cfg:      cfg,
		store:    store,
		ws:       ws,
		registry: registry,
		runner: &build.Runner{
			Cfg:         cfg,
			Store:       store,
			Workspace:   ws,
			Env:         env,
			Checkout:    checkout.NewClient(recorder),
			Recorder:    recorder,
			Syncer:      sync,
			Archiver:    archiver,
			PublishRoot: cfg.Sync.PublishRoot,
		},
	}, nil
}

// Close tears the service down. Ephemeral workspaces are removed; persistent
// ones survive for incremental fetches.
func (s *service) Close() {
	if err := s.ws.Cleanup(); err != nil {
		slog.Warn("Failed to cleanup workspace", logfields.Error(err))
	}
	if err := s.store.Close(); err != nil {
		slog.Warn("Failed to close project database", logfields.Error(err))
	}
}

func runBuild(cfg *config.Config, projectSlug, versionSlug string, skipSync bool) error {
	svc, err := newService(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	result, err := svc.runner.Run(context.Background(), build.Request{
		ProjectSlug: projectSlug,
		VersionSlug: versionSlug,
		SkipSync:    skipSync,
		Trigger:     string(daemon.TriggerManual),
	})
	if err != nil {
		return err
	}

	slog.Info("Build finished",
		logfields.BuildID(result.BuildID),
		logfields.Doctype(result.Doctype),
		logfields.Path(result.OutputPath),
		logfields.DurationMS(float64(result.Duration.Milliseconds())))
	return nil
}

func runDiscover(cfg *config.Config, projectSlug, versionSlug string) error {
	svc, err := newService(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx := context.Background()
	p, err := svc.store.GetProject(ctx, projectSlug)
	if err != nil {
		return err
	}
	v, err := svc.store.GetVersion(ctx, p.ID, versionSlug)
	if err != nil {
		return err
	}

	checkoutPath := svc.ws.CheckoutPath(p.Slug, v.Slug)
	slog.Info("Checking out sources", logfields.Project(p.Slug), logfields.Version(v.Slug))
	if err := svc.runner.Checkout.Checkout(ctx, p, v, checkoutPath); err != nil {
		return err
	}

	projectCfg, err := config.LoadProjectConfig(checkoutPath)
	if err != nil {
		return err
	}
	switch {
	case projectCfg.MkDocs != nil:
		slog.Info("Project declares mkdocs", logfields.Doctype(project.DoctypeMkDocs))
	case projectCfg.Sphinx != nil:
		slog.Info("Project declares sphinx", logfields.Doctype(p.Doctype))
	default:
		slog.Info("No project configuration file, falling back to stored doctype",
			logfields.Doctype(p.Doctype))
	}

	for _, name := range []string{"conf.py", "mkdocs.yml"} {
		path, err := builder.FindConfigFile(checkoutPath, name)
		switch {
		case errors.Is(err, builder.ErrConfigNotFound):
			slog.Info("Configuration file not found", slog.String("name", name))
		case errors.Is(err, builder.ErrConfigAmbiguous):
			slog.Warn("Multiple candidate configuration files", slog.String("name", name))
		case err != nil:
			return err
		default:
			slog.Info("Configuration file found", slog.String("name", name), logfields.Path(path))
		}
	}

	slog.Info("Documentation directory", logfields.Path(builder.FindDocsDir(checkoutPath)))
	return nil
}

func runSync(cfg *config.Config, projectSlug, versionSlug string) error {
	if cfg.Sync.PublishRoot == "" {
		return fmt.Errorf("sync requires a configured publish_root")
	}

	svc, err := newService(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx := context.Background()
	p, err := svc.store.GetProject(ctx, projectSlug)
	if err != nil {
		return err
	}
	v, err := svc.store.GetVersion(ctx, p.ID, versionSlug)
	if err != nil {
		return err
	}

	src := svc.ws.ArtifactPath(p.Slug, v.Slug, "html")
	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("no build output for %s/%s, build first: %w", p.Slug, v.Slug, err)
	}

	dest := filepath.Join(cfg.Sync.PublishRoot, p.Slug, v.Slug)
	slog.Info("Publishing build output",
		logfields.Project(p.Slug), logfields.Version(v.Slug), logfields.Path(dest))
	return svc.runner.Syncer.Sync(ctx, src, dest)
}

func runWatch(cfg *config.Config, projectSlug, versionSlug string, debounce time.Duration) error {
	svc, err := newService(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	req := build.Request{
		ProjectSlug: projectSlug,
		VersionSlug: versionSlug,
		SkipSync:    true,
		Trigger:     string(daemon.TriggerManual),
	}
	result, err := svc.runner.Run(ctx, req)
	if err != nil {
		return err
	}
	slog.Info("Initial build finished, watching for changes", logfields.Path(result.OutputPath))

	// Rebuilds rewrite conf.py or mkdocs.yml inside the checkout, so change
	// events settling right after a build are our own writes.
	var lastBuild atomic.Int64
	lastBuild.Store(time.Now().UnixNano())
	rebuild := func(ctx context.Context) {
		if time.Since(time.Unix(0, lastBuild.Load())) < debounce*2 {
			return
		}
		slog.Info("Sources changed, rebuilding",
			logfields.Project(projectSlug), logfields.Version(versionSlug))
		if _, err := svc.runner.Run(ctx, req); err != nil {
			slog.Error("Rebuild failed", logfields.Error(err))
		}
		lastBuild.Store(time.Now().UnixNano())
	}

	watcher, err := preview.NewWatcher(rebuild, debounce)
	if err != nil {
		return err
	}
	defer func() {
		_ = watcher.Close()
	}()

	p, err := svc.store.GetProject(ctx, projectSlug)
	if err != nil {
		return err
	}
	if err := watcher.Add(svc.ws.CheckoutPath(p.Slug, versionSlug)); err != nil {
		return err
	}

	if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// runPull fetches a published version from a build host. App servers use it
// to catch up on a push they missed; the publish root layout is the same on
// both ends.
func runPull(cfg *config.Config, env buildenv.Environment, host, projectSlug, versionSlug string) error {
	if cfg.Sync.PublishRoot == "" {
		return fmt.Errorf("pull requires a configured publish_root")
	}

	path := filepath.Join(cfg.Sync.PublishRoot, projectSlug, versionSlug)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return err
	}

	slog.Info("Pulling published build",
		logfields.Project(projectSlug), logfields.Version(versionSlug),
		logfields.Target(host), logfields.Path(path))
	return syncer.NewPuller(cfg.Sync, env, nil).Pull(context.Background(), host, path, path)
}

func runTrigger(cfg *config.Config, projectSlug, versionSlug string) error {
	queue, err := daemon.NewQueue(cfg.Daemon)
	if err != nil {
		return err
	}
	defer queue.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	job := daemon.NewBuildJob(projectSlug, versionSlug, daemon.TriggerManual)
	if err := queue.Enqueue(ctx, job); err != nil {
		return err
	}
	slog.Info("Build job enqueued",
		logfields.BuildID(job.ID),
		logfields.Project(projectSlug), logfields.Version(versionSlug))
	return nil
}

func runDaemon(cfg *config.Config) error {
	svc, err := newService(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	queue, err := daemon.NewQueue(cfg.Daemon)
	if err != nil {
		return err
	}
	defer queue.Close()

	if cfg.Metrics.Enabled && cfg.Metrics.Listen != "" {
		go serveMetrics(cfg.Metrics.Listen, svc.registry)
	}

	if cfg.Daemon.Schedule != "" {
		interval, err := time.ParseDuration(cfg.Daemon.Schedule)
		if err != nil {
			return fmt.Errorf("invalid daemon schedule %q: %w", cfg.Daemon.Schedule, err)
		}
		sched, err := daemon.NewScheduler(queue, func() []*daemon.BuildJob {
			return rebuildJobs(svc.store)
		})
		if err != nil {
			return err
		}
		if _, err := sched.ScheduleRebuilds(interval); err != nil {
			return err
		}
		sched.Start()
		defer func() {
			if err := sched.Stop(); err != nil {
				slog.Warn("Failed to stop scheduler", logfields.Error(err))
			}
		}()
		slog.Info("Periodic rebuilds scheduled", slog.Duration("interval", interval))
	}

	slog.Info("Daemon started, waiting for build jobs",
		slog.String("version", version.Version))

	err = queue.Consume(ctx, func(ctx context.Context, job *daemon.BuildJob) error {
		_, err := svc.runner.Run(ctx, build.Request{
			ProjectSlug: job.Project,
			VersionSlug: job.Version,
			Trigger:     string(job.Trigger),
		})
		return err
	})
	if errors.Is(err, context.Canceled) {
		slog.Info("Daemon stopped")
		return nil
	}
	return err
}

// rebuildJobs enumerates every active version as a scheduled build job.
func rebuildJobs(store *project.Store) []*daemon.BuildJob {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	projects, err := store.ListProjects(ctx)
	if err != nil {
		slog.Warn("Failed to list projects for rebuild", logfields.Error(err))
		return nil
	}

	var jobs []*daemon.BuildJob
	for _, p := range projects {
		versions, err := store.ListVersions(ctx, p.ID, false)
		if err != nil {
			slog.Warn("Failed to list versions for rebuild",
				logfields.Project(p.Slug), logfields.Error(err))
			continue
		}
		for _, v := range versions {
			if !v.Active {
				continue
			}
			jobs = append(jobs, daemon.NewBuildJob(p.Slug, v.Slug, daemon.TriggerSchedule))
		}
	}
	return jobs
}

func serveMetrics(listen string, registry *prom.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	slog.Info("Metrics endpoint listening", slog.String("addr", listen))
	if err := http.ListenAndServe(listen, mux); err != nil {
		slog.Error("Metrics endpoint failed", logfields.Error(err))
	}
}
