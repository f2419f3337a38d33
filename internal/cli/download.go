package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/aurgrab/pkg/aur"
	"github.com/matzehuels/aurgrab/pkg/engine"
	"github.com/matzehuels/aurgrab/pkg/errors"
)

type downloadOpts struct {
	deps  bool
	force bool
}

// downloadCommand creates the download command.
func (c *CLI) downloadCommand() *cobra.Command {
	var opts downloadOpts

	cmd := &cobra.Command{
		Use:   "download PACKAGE...",
		Short: "Download build snapshots, optionally with their AUR dependencies",
		Long: `Download and unpack the build snapshot of each package into the target
directory, one directory per package base. With --deps, the depends,
makedepends and checkdepends of every downloaded PKGBUILD are resolved: names
that are installed or provided by a sync repository are skipped, the rest are
downloaded from the AUR as well.`,
		Aliases: []string{"get"},
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := loggerFromContext(cmd.Context())
			task, err := c.downloadTask(logger, opts)
			if err != nil {
				return err
			}

			prog := newProgress(logger)
			res, err := c.run(cmd.Context(), task, args)
			if err != nil {
				return err
			}
			if len(res.Packages) > 0 {
				prog.done(fmt.Sprintf("Downloaded %d packages", len(res.Packages)))
			}
			if !c.formatted(res.Packages) {
				c.printDownloads(res.Packages, task.TargetDir)
			}
			return status(res)
		},
	}

	cmd.Flags().BoolVarP(&opts.deps, "deps", "d", false, "also download AUR dependencies")
	cmd.Flags().BoolVarP(&opts.force, "force", "f", false, "overwrite existing directories and download repo packages")

	return cmd
}

// downloadTask builds a DownloadTask from the configuration. The target
// directory is created when missing.
func (c *CLI) downloadTask(logger *log.Logger, opts downloadOpts) (*engine.DownloadTask, error) {
	dir, err := filepath.Abs(c.cfg.TargetDir)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFilesystem, err, "target directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeFilesystem, err, "create %s", dir)
	}

	task := &engine.DownloadTask{
		TargetDir: dir,
		Force:     opts.force,
		GetDeps:   opts.deps,
		Ignore:    slices.Clone(c.cfg.IgnorePkgs),
	}

	db, err := c.openDB()
	if err != nil {
		logger.Warn("local database unavailable, repo checks disabled", "err", errors.UserMessage(err))
	} else {
		task.DB = db
	}
	return task, nil
}

func (c *CLI) printDownloads(pkgs []*aur.Package, dir string) {
	for _, p := range aur.Dedup(pkgs) {
		c.out.success("%s %s", c.out.name.Render(p.Name), c.out.version.Render(p.Version))
		c.out.file(filepath.Join(dir, p.Base()))
	}
}
