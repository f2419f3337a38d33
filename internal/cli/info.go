package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/aurgrab/pkg/aur"
	"github.com/matzehuels/aurgrab/pkg/engine"
)

// infoCommand creates the info command.
func (c *CLI) infoCommand() *cobra.Command {
	var recipe bool

	cmd := &cobra.Command{
		Use:   "info PACKAGE...",
		Short: "Show detailed package information",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.run(cmd.Context(), &engine.InfoTask{Recipe: recipe}, args)
			if err != nil {
				return err
			}
			if !c.formatted(res.Packages) {
				c.printInfo(res.Packages)
			}
			return status(res)
		},
	}

	cmd.Flags().BoolVar(&recipe, "recipe", false, "read dependency fields from the PKGBUILD")

	return cmd
}

// printInfo prints a key/value block per package.
func (c *CLI) printInfo(pkgs []*aur.Package) {
	u := c.out
	base := strings.TrimSuffix(c.cfg.AURURL, "/")
	list := func(l []string) string {
		if len(l) == 0 {
			return u.dim.Render("None")
		}
		return strings.Join(l, "  ")
	}

	for _, p := range aur.Dedup(pkgs) {
		u.keyValue("Repository", u.title.Render("aur"))
		u.keyValue("Name", u.name.Render(p.Name))
		if p.Base() != p.Name {
			u.keyValue("Package Base", p.Base())
		}
		u.keyValue("Version", u.version.Render(p.Version))
		u.keyValue("URL", u.link.Render(p.URL))
		u.keyValue("AUR Page", u.link.Render(base+"/packages/"+p.Name))
		u.keyValue("Keywords", list(p.Keywords))
		u.keyValue("Licenses", list(p.License))
		u.keyValue("Depends On", list(p.Depends))
		u.keyValue("Makedepends", list(p.MakeDepends))
		u.keyValue("Checkdepends", list(p.CheckDepends))
		u.keyValue("Optional Deps", list(p.OptDepends))
		u.keyValue("Provides", list(p.Provides))
		u.keyValue("Conflicts With", list(p.Conflicts))
		u.keyValue("Replaces", list(p.Replaces))
		maintainer := p.Maintainer
		if maintainer == "" {
			maintainer = "(orphan)"
		}
		u.keyValue("Maintainer", maintainer)
		u.keyValue("Votes", fmt.Sprint(p.NumVotes))
		u.keyValue("Popularity", fmt.Sprintf("%.2f", p.Popularity))
		if p.OutOfDate {
			since := "yes"
			if p.OutOfDateSince > 0 {
				since = "yes, since " + formatTime(p.OutOfDateSince)
			}
			u.keyValue("Out of Date", u.bad.Render(since))
		} else {
			u.keyValue("Out of Date", "No")
		}
		if p.FirstSubmitted > 0 {
			u.keyValue("Submitted", formatTime(p.FirstSubmitted))
		}
		if p.LastModified > 0 {
			u.keyValue("Last Modified", formatTime(p.LastModified))
		}
		u.keyValue("Description", p.Description)
		u.newline()
	}
}

func formatTime(unix int64) string {
	return time.Unix(unix, 0).UTC().Format(time.DateTime)
}
