package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/matzehuels/aurgrab/pkg/aur"
	"github.com/matzehuels/aurgrab/pkg/engine"
)

type updateOpts struct {
	download bool
	downloadOpts
}

// updateCommand creates the update command.
func (c *CLI) updateCommand() *cobra.Command {
	var opts updateOpts

	cmd := &cobra.Command{
		Use:   "update [PACKAGE...]",
		Short: "Check installed foreign packages for AUR updates",
		Long: `Compare installed packages against the AUR. Without arguments every
foreign package (installed, but not provided by any sync repository) is
checked. Exits non-zero when updates are available, unless --download is
given and they were downloaded.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := loggerFromContext(cmd.Context())
			db, err := c.openDB()
			if err != nil {
				return err
			}

			targets := args
			if len(targets) == 0 {
				for _, e := range db.Foreign() {
					targets = append(targets, e.Name)
				}
				logger.Debug("checking foreign packages", "count", len(targets))
			}

			task := &engine.UpdateTask{DB: db, Ignore: slices.Clone(c.cfg.IgnorePkgs)}
			if opts.download {
				dl, err := c.downloadTask(logger, opts.downloadOpts)
				if err != nil {
					return err
				}
				dl.DB = db
				task.Download = dl
			}

			res, err := c.run(cmd.Context(), task, targets)
			if err != nil {
				return err
			}

			updates := outdated(res.Packages)
			if !c.formatted(updates) {
				c.printUpdates(updates)
			}
			if len(res.Failed) > 0 {
				return partial
			}
			if len(updates) > 0 && !opts.download {
				return partial
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.download, "download", false, "download packages with updates")
	cmd.Flags().BoolVarP(&opts.deps, "deps", "d", false, "with --download, also download AUR dependencies")
	cmd.Flags().BoolVarP(&opts.force, "force", "f", false, "with --download, overwrite existing directories")

	return cmd
}

// outdated keeps the records of an update run that are updates themselves,
// dropping dependencies pulled in by --download.
func outdated(pkgs []*aur.Package) []*aur.Package {
	return slices.DeleteFunc(slices.Clone(pkgs), func(p *aur.Package) bool {
		return p.LocalVersion == ""
	})
}

func (c *CLI) printUpdates(pkgs []*aur.Package) {
	u := c.out
	for _, p := range aur.Dedup(pkgs) {
		fmt.Fprintf(u.w, "%s %s %s %s %s\n",
			u.title.Render("::"), u.name.Render(p.Name),
			u.bad.Render(p.LocalVersion), u.dim.Render(iconArrow), u.version.Render(p.Version))
	}
}
