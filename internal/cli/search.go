package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/aurgrab/pkg/aur"
	"github.com/matzehuels/aurgrab/pkg/aurweb"
	"github.com/matzehuels/aurgrab/pkg/engine"
	"github.com/matzehuels/aurgrab/pkg/errors"
)

type searchOpts struct {
	by      string
	literal bool
}

// searchCommand creates the search command.
func (c *CLI) searchCommand() *cobra.Command {
	var opts searchOpts

	cmd := &cobra.Command{
		Use:   "search PATTERN...",
		Short: "Search the AUR by regular expression",
		Long: `Search the AUR. Each pattern is a case-insensitive regular expression
matched against package names, and descriptions when searching by name-desc.
Results of all patterns are merged into one sorted list.`,
		Example: `  aurgrab search '^python-.*requests'
  aurgrab search --by depends --literal qt6-base`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.by != "" && !slices.Contains(aurweb.SearchBy, opts.by) {
				return errors.New(errors.ErrCodeInvalidInput, "unknown search field %q (valid: %s)", opts.by, strings.Join(aurweb.SearchBy, ", "))
			}
			task := &engine.SearchTask{By: opts.by, Literal: opts.literal}
			return c.runListing(cmd, task, args)
		},
	}

	cmd.Flags().StringVar(&opts.by, "by", "", "search field: "+strings.Join(aurweb.SearchBy, ", "))
	cmd.Flags().BoolVar(&opts.literal, "literal", false, "treat patterns as plain substrings")

	return cmd
}

// msearchCommand creates the msearch command.
func (c *CLI) msearchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "msearch MAINTAINER...",
		Short: "List packages by maintainer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runListing(cmd, engine.MSearchTask{}, args)
		},
	}
}

// runListing runs a search-like task and prints the result list.
func (c *CLI) runListing(cmd *cobra.Command, task engine.Task, args []string) error {
	res, err := c.run(cmd.Context(), task, args)
	if err != nil {
		return err
	}
	logger := loggerFromContext(cmd.Context())
	for _, target := range res.Empty {
		logger.Warn("no results found", "target", target)
	}
	if !c.formatted(res.Packages) {
		c.printListing(logger, res.Packages)
	}
	return status(res)
}

// printListing prints one entry per package, marking installed ones when
// the local database is readable.
func (c *CLI) printListing(logger *log.Logger, pkgs []*aur.Package) {
	db, err := c.openDB()
	if err != nil {
		logger.Debug("local database unavailable", "err", errors.UserMessage(err))
	}

	u := c.out
	for _, p := range aur.Dedup(pkgs) {
		line := u.title.Render("aur/") + u.name.Render(p.Name) + " " + u.version.Render(p.Version) +
			u.dim.Render(fmt.Sprintf(" (%d, %.2f)", p.NumVotes, p.Popularity))
		if p.OutOfDate {
			line += " " + u.bad.Render("<!>")
		}
		if db != nil {
			if v, ok := db.Installed(p.Name); ok {
				line += " " + u.title.Render(installedTag(v, p.Version))
			}
		}
		fmt.Fprintln(u.w, line)
		if p.Description != "" {
			fmt.Fprintln(u.w, "    "+p.Description)
		}
	}
}

func installedTag(local, remote string) string {
	if local == remote {
		return "[installed]"
	}
	return "[installed: " + local + "]"
}
