package cli

import (
	"context"
	"io"
	"net/url"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/matzehuels/aurgrab/pkg/aur"
	"github.com/matzehuels/aurgrab/pkg/aurweb"
	"github.com/matzehuels/aurgrab/pkg/buildinfo"
	"github.com/matzehuels/aurgrab/pkg/cache"
	"github.com/matzehuels/aurgrab/pkg/config"
	"github.com/matzehuels/aurgrab/pkg/engine"
	"github.com/matzehuels/aurgrab/pkg/errors"
	"github.com/matzehuels/aurgrab/pkg/localdb"
)

// =============================================================================
// Constants
// =============================================================================

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	stdout io.Writer
	stderr io.Writer

	cfg   *config.Config
	flags globalFlags
	out   *ui // results, on stdout
	err   *ui // status and spinner, on stderr
}

// globalFlags are the persistent flags every command shares. Values that
// also exist in the config file only override it when set explicitly.
type globalFlags struct {
	configPath  string
	aurURL      string
	threads     int
	targetDir   string
	timeout     time.Duration
	ignore      []string
	ignoreRepos []string
	dbPath      string
	color       string
	format      string
	delim       string
	noCache     bool
	refresh     bool
	verbose     bool
}

// New creates a CLI writing results to stdout and logs to stderr.
func New(stdout, stderr io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(stderr, level),
		stdout: stdout,
		stderr: stderr,
		cfg:    config.Default(),
		out:    newUI(stdout, config.ColorAuto),
		err:    newUI(stderr, config.ColorAuto),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "aurgrab",
		Short: "aurgrab searches and downloads packages from the AUR",
		Long: `aurgrab queries the Arch User Repository, downloads build snapshots
and their AUR dependencies in parallel, and checks installed foreign packages
for updates.`,
		Version:           buildinfo.Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
	}
	root.SetVersionTemplate(buildinfo.Template())
	root.SetOut(c.stdout)
	root.SetErr(c.stderr)

	f := root.PersistentFlags()
	f.StringVar(&c.flags.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/aurgrab/config.toml)")
	f.StringVar(&c.flags.aurURL, "aur-url", config.DefaultAURURL, "aurweb base URL")
	f.IntVar(&c.flags.threads, "threads", config.DefaultMaxThreads, "maximum number of concurrent jobs")
	f.StringVarP(&c.flags.targetDir, "target", "t", ".", "directory to download into")
	f.DurationVar(&c.flags.timeout, "timeout", config.DefaultTimeout, "timeout for a single request")
	f.StringSliceVar(&c.flags.ignore, "ignore", nil, "package names to ignore (repeatable)")
	f.StringSliceVar(&c.flags.ignoreRepos, "ignore-repo", nil, "sync repositories to ignore (repeatable)")
	f.StringVar(&c.flags.dbPath, "dbpath", config.DefaultDBPath, "pacman database root")
	f.StringVar(&c.flags.color, "color", config.ColorAuto, "colorize output: auto, always or never")
	f.StringVar(&c.flags.format, "format", "", "print each result through a format string")
	f.StringVar(&c.flags.delim, "list-delim", "  ", "separator for list fields in --format")
	f.BoolVar(&c.flags.noCache, "no-cache", false, "disable the response cache")
	f.BoolVar(&c.flags.refresh, "refresh", false, "ignore cached responses, storing fresh ones")
	f.BoolVarP(&c.flags.verbose, "verbose", "v", false, "enable verbose logging")

	root.AddCommand(c.searchCommand())
	root.AddCommand(c.msearchCommand())
	root.AddCommand(c.infoCommand())
	root.AddCommand(c.downloadCommand())
	root.AddCommand(c.updateCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.versionCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// setup loads the configuration, lays the explicitly set flags over it and
// attaches the logger to the command context.
func (c *CLI) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(c.flags.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("aur-url") {
		cfg.AURURL = c.flags.aurURL
	}
	if flags.Changed("threads") {
		cfg.MaxThreads = c.flags.threads
	}
	if flags.Changed("target") {
		cfg.TargetDir = c.flags.targetDir
	}
	if flags.Changed("timeout") {
		cfg.Timeout.Duration = c.flags.timeout
	}
	if flags.Changed("dbpath") {
		cfg.Pacman.DBPath = c.flags.dbPath
	}
	if flags.Changed("color") {
		cfg.Color = c.flags.color
	}
	if c.flags.noCache {
		cfg.Cache.Backend = config.BackendNone
	}
	cfg.IgnorePkgs = append(cfg.IgnorePkgs, c.flags.ignore...)
	cfg.IgnoreRepos = append(cfg.IgnoreRepos, c.flags.ignoreRepos...)
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.cfg = cfg

	if c.flags.verbose {
		c.SetLogLevel(LogDebug)
	}
	c.out = newUI(c.stdout, cfg.Color)
	c.err = newUI(c.stderr, cfg.Color)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(withLogger(ctx, c.Logger.With("cmd", cmd.Name())))
	return nil
}

// =============================================================================
// Runtime Factories
// =============================================================================

// openCache builds the configured response cache backend.
func (c *CLI) openCache(ctx context.Context) (cache.Cache, error) {
	cc := c.cfg.Cache
	switch cc.Backend {
	case config.BackendNone:
		return cache.NewNullCache(), nil
	case config.BackendMemory:
		return cache.NewMemoryCache(cc.MemorySize)
	case config.BackendRedis:
		return cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     cc.RedisAddr,
			Password: cc.RedisPassword,
			DB:       cc.RedisDB,
		})
	}
	dir, err := c.cacheDir()
	if err != nil {
		loggerFromContext(ctx).Debug("no cache directory, caching disabled", "err", err)
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(dir)
}

func (c *CLI) cacheDir() (string, error) {
	if c.cfg.Cache.Dir != "" {
		return c.cfg.Cache.Dir, nil
	}
	return config.CacheDir()
}

// newPool creates an engine pool whose workers each own an aurweb client
// sharing the response cache. Workers log through the logger in ctx.
func (c *CLI) newPool(ctx context.Context, cc cache.Cache) *engine.Pool {
	scope := c.cfg.AURURL
	if u, err := url.Parse(c.cfg.AURURL); err == nil && u.Host != "" {
		scope = u.Host
	}
	opts := aurweb.Options{
		BaseURL: c.cfg.AURURL,
		Timeout: c.cfg.Timeout.Duration,
		Cache:   cc,
		Keyer:   cache.NewScopedKeyer(cache.NewDefaultKeyer(), scope+":"),
		TTL:     c.cfg.Cache.TTL.Duration,
		Refresh: c.flags.refresh,
	}
	return engine.NewPool(engine.Options{
		MaxThreads: c.cfg.MaxThreads,
		Logger:     loggerFromContext(ctx),
		NewClient: func() engine.Client {
			return aurweb.NewClient(opts)
		},
	})
}

// openDB loads the pacman databases.
func (c *CLI) openDB() (*localdb.DB, error) {
	return localdb.Open(localdb.Options{
		DBPath:      c.cfg.Pacman.DBPath,
		Repos:       c.cfg.Pacman.Repos,
		IgnoreRepos: c.cfg.IgnoreRepos,
	})
}

// run executes task over targets with a fresh cache and pool, showing a
// spinner on an interactive stderr.
func (c *CLI) run(ctx context.Context, task engine.Task, targets []string) (*engine.Result, error) {
	logger := loggerFromContext(ctx)
	cc, err := c.openCache(ctx)
	if err != nil {
		logger.Warn("cache unavailable, continuing without it", "backend", c.cfg.Cache.Backend, "err", errors.UserMessage(err))
		cc = cache.NewNullCache()
	}
	defer cc.Close()

	if c.interactive() {
		s := newSpinner(ctx, c.err, task.Name()+"...")
		s.Start()
		defer s.Stop()
	}

	start := time.Now()
	res, err := c.newPool(ctx, cc).Run(ctx, task, targets)
	if err != nil {
		return nil, err
	}
	logger.Debug("run finished", "run", res.RunID, "results", len(res.Packages), "elapsed", time.Since(start).Round(time.Millisecond))
	return res, nil
}

func (c *CLI) interactive() bool {
	if c.flags.verbose {
		return false
	}
	f, ok := c.stderr.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

// formatted prints every package through --format and reports whether a
// format was given.
func (c *CLI) formatted(pkgs []*aur.Package) bool {
	if c.flags.format == "" {
		return false
	}
	f := newFormatter(c.flags.format, c.cfg.AURURL, c.flags.delim)
	for _, p := range aur.Dedup(pkgs) {
		io.WriteString(c.stdout, f.Format(p)+"\n")
	}
	return true
}
