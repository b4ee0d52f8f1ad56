package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate completion script",
	Long: `Generate a shell completion script for pfscan.

Bash:
  $ source <(pfscan completion bash)

  # Persist it:
  $ pfscan completion bash > /etc/bash_completion.d/pfscan            # Linux
  $ pfscan completion bash > /usr/local/etc/bash_completion.d/pfscan  # macOS

Zsh:
  # Needs compinit. If completion is not already enabled, run once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  $ pfscan completion zsh > "${fpath[1]}/_pfscan"
  # Takes effect in new shells.

Fish:
  $ pfscan completion fish | source

  # Persist it:
  $ pfscan completion fish > ~/.config/fish/completions/pfscan.fish
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.ExactValidArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		switch args[0] {
		case "bash":
			fmt.Print(bashCompletionScript)
		case "zsh":
			rootCmd.GenZshCompletion(os.Stdout)
		case "fish":
			rootCmd.GenFishCompletion(os.Stdout, true)
		case "powershell":
			rootCmd.GenPowerShellCompletion(os.Stdout)
		}
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
}

// bashCompletionScript replaces the generated bash script so that
// inspect completes .pf files, rules completes YAML files, and the
// directory-taking subcommands complete directories.
const bashCompletionScript = `
# pfscan bash completion

_pfscan() {
    local cur="${COMP_WORDS[COMP_CWORD]}"
    local prev="${COMP_WORDS[COMP_CWORD-1]}"

    case "${prev}" in
        inspect)
            COMPREPLY=( $(compgen -f -X '!*.pf' -- "${cur}") )
            ;;
        watch|browse)
            COMPREPLY=( $(compgen -d -- "${cur}") )
            ;;
        archive)
            COMPREPLY=( $(compgen -d -W "--target" -- "${cur}") )
            ;;
        runs)
            COMPREPLY=( $(compgen -W "--limit --ledger --case-db --help" -- "${cur}") )
            ;;
        rules)
            COMPREPLY=( $(compgen -f -X '!*.y*ml' -- "${cur}") )
            ;;
        completion)
            COMPREPLY=( $(compgen -W "bash zsh fish powershell" -- "${cur}") )
            ;;
        --config|--rules|--case-db|--ledger|--output-name)
            COMPREPLY=( $(compgen -f -- "${cur}") )
            ;;
        *)
            if [[ ${cur} == -* ]]; then
                COMPREPLY=( $(compgen -W "--help --version --config --recursive --ext --output-name --workers --strict --json --rules --case-db --ledger --no-ledger --webhook --json-logs --verbose" -- "${cur}") )
            else
                COMPREPLY=( $(compgen -W "inspect watch browse archive runs rules completion help" -- "${cur}") $(compgen -d -- "${cur}") )
            fi
            ;;
    esac
}

complete -F _pfscan pfscan
`
