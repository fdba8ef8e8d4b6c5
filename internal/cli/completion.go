package cli

import (
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/matzehuels/sensortree/pkg/layout"
	"github.com/matzehuels/sensortree/pkg/normalize"
	"github.com/matzehuels/sensortree/pkg/pipeline"
)

// completionCommand creates the completion command for generating shell completions.
func (c *CLI) completionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for sensortree.

Bash:
  $ source <(sensortree completion bash)

Zsh:
  $ sensortree completion zsh > "${fpath[1]}/_sensortree"

Fish:
  $ sensortree completion fish > ~/.config/fish/completions/sensortree.fish

PowerShell:
  PS> sensortree completion powershell | Out-String | Invoke-Expression

Enumerated flags (--mode, --format, --input-format, --cache, --sessions)
complete their values.
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(os.Stdout)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
			}
			return nil
		},
	}

	return cmd
}

// flagValues lists the completions of enumerated flags.
var flagValues = map[string][]string{
	"mode":         {string(layout.Horizontal), string(layout.Vertical)},
	"format":       sortedFormats(),
	"input-format": {string(normalize.FormatJSON), string(normalize.FormatYAML), string(normalize.FormatCSV)},
	"cache":        {"file", "redis", "none"},
	"sessions":     {"memory", "redis"},
}

func sortedFormats() []string {
	var out []string
	for f := range pipeline.ValidFormats {
		out = append(out, f)
	}
	slices.Sort(out)
	return out
}

// registerFlagCompletions walks the command tree and attaches value
// completions to every enumerated flag it defines.
func registerFlagCompletions(cmd *cobra.Command) {
	for name, values := range flagValues {
		if cmd.LocalNonPersistentFlags().Lookup(name) == nil && cmd.PersistentFlags().Lookup(name) == nil {
			continue
		}
		_ = cmd.RegisterFlagCompletionFunc(name, func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			return values, cobra.ShellCompDirectiveNoFileComp
		})
	}
	for _, sub := range cmd.Commands() {
		registerFlagCompletions(sub)
	}
}
