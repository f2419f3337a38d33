package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/aurgrab/pkg/buildinfo"
)

// completionCommand creates the completion command for generating shell completions.
func (c *CLI) completionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for aurgrab.

To load completions:

Bash:
  $ source <(aurgrab completion bash)

  # To load completions for each session, execute once:
  $ aurgrab completion bash > /usr/share/bash-completion/completions/aurgrab

Zsh:
  $ aurgrab completion zsh > "${fpath[1]}/_aurgrab"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ aurgrab completion fish | source

  # To load completions for each session, execute once:
  $ aurgrab completion fish > ~/.config/fish/completions/aurgrab.fish
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(w)
			case "zsh":
				return cmd.Root().GenZshCompletion(w)
			case "fish":
				return cmd.Root().GenFishCompletion(w, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(w)
			}
			return nil
		},
	}

	return cmd
}

// versionCommand prints build information.
func (c *CLI) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c.out.keyValue("aurgrab", c.out.version.Render(buildinfo.Version))
			c.out.keyValue("commit", buildinfo.Commit)
			c.out.keyValue("built", buildinfo.Date)
			c.out.keyValue("user agent", c.out.dim.Render(buildinfo.UserAgent()))
			return nil
		},
	}
}
