package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/apibean/apibean-cli/internal/config"
	"github.com/apibean/apibean-cli/internal/debug"
	"github.com/apibean/apibean-cli/internal/dryrun"
	"github.com/apibean/apibean-cli/internal/filter"
	"github.com/apibean/apibean-cli/internal/iocontext"
	"github.com/apibean/apibean-cli/internal/outfmt"
	"github.com/apibean/apibean-cli/internal/resolve"
)

// rootFlags holds global CLI flags
type rootFlags struct {
	Output         string
	JQ             string
	Compact        bool
	Debug          bool
	DryRun         bool
	Trace          bool
	ConfigPath     string
	SessionBackend string
	AccountBackend string
	SessionProfile string
	AccountProfile string
}

// flags holds the global command flags. It is package-level state and is
// reset at the start of every Execute call.
var flags rootFlags

func defaultOutput() string {
	if v := strings.TrimSpace(os.Getenv("APIBEAN_OUTPUT")); v != "" {
		return v
	}
	return "text"
}

// Execute runs the root command
func Execute(ctx context.Context, args []string) error {
	// .env values must be in the environment before defaults are read.
	config.LoadEnvFiles()

	flags = rootFlags{Output: defaultOutput()}

	streams := iocontext.GetIO(ctx)

	root := &cobra.Command{
		Use:                "apibean",
		Short:              "HTTP client with persistent sessions and accounts",
		SilenceUsage:       true,
		SilenceErrors:      true,
		DisableSuggestions: true, // did-you-mean comes from enhanceUnknownError
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			mode, err := outfmt.Parse(strings.TrimSpace(flags.Output))
			if err != nil {
				return err
			}
			ctx = outfmt.WithMode(ctx, mode)
			ctx = outfmt.WithCompact(ctx, flags.Compact)

			if flags.JQ != "" {
				q, err := filter.Compile(flags.JQ)
				if err != nil {
					return err
				}
				ctx = outfmt.WithQuery(ctx, q)
			}

			ctx = iocontext.WithIO(ctx, streams)

			debug.SetupLogger(streams.ErrOut, flags.Debug)
			ctx = debug.WithDebug(ctx, flags.Debug)
			ctx = dryrun.WithDryRun(ctx, flags.DryRun)

			cmd.SetContext(ctx)
			return nil
		},
	}

	root.SetContext(ctx)
	root.SetArgs(args)
	root.SetIn(streams.In)
	root.SetOut(streams.Out)
	root.SetErr(streams.ErrOut)

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.Output, "output", "o", flags.Output, "Output format: text|json|jsonl (env APIBEAN_OUTPUT)")
	pf.StringVar(&flags.JQ, "jq", "", "jq expression applied to JSON output and response bodies")
	pf.BoolVar(&flags.Compact, "compact-json", false, "Compact JSON output (no indentation)")
	pf.BoolVar(&flags.Debug, "debug", false, "Enable debug logging")
	pf.BoolVar(&flags.Trace, "trace", false, "Print a trace span for every request on stderr")
	pf.BoolVar(&flags.DryRun, "dry-run", false, "Show requests and store writes without performing them")
	pf.StringVar(&flags.ConfigPath, "config", "", "Config file (default: $APIBEAN_CONFIG or <config dir>/apibean/config.yaml)")
	pf.StringVar(&flags.SessionBackend, "session-backend", "", "Session store backend: file|keyring|redis|memory|none")
	pf.StringVar(&flags.AccountBackend, "account-backend", "", "Account store backend: file|keyring|redis|memory|none")
	pf.StringVar(&flags.SessionProfile, "session-profile", "", "Session profile for this invocation")
	pf.StringVar(&flags.AccountProfile, "account-profile", "", "Account profile for this invocation")

	root.AddCommand(newRequestCmd())
	for _, method := range verbMethods {
		root.AddCommand(newVerbCmd(method))
	}
	root.AddCommand(newPrepareCmd())
	root.AddCommand(newSessionCmd())
	root.AddCommand(newAccountCmd())
	root.AddCommand(newProfilesCmd())
	root.AddCommand(newBatchCmd())
	root.AddCommand(newVersionCmd())

	targetCmd, err := root.ExecuteC()
	if err != nil {
		if !errors.Is(err, errAlreadyHandled) {
			_, _ = fmt.Fprint(root.ErrOrStderr(), renderError(err, root, targetCmd))
		}
		return err
	}
	return nil
}

// renderError prefers did-you-mean output for unknown commands and flags.
func renderError(err error, root, targetCmd *cobra.Command) string {
	if enhanced := enhanceUnknownError(err, root, targetCmd); enhanced != err.Error() {
		return enhanced + "\n"
	}
	return HandleError(err)
}

// enhanceUnknownError adds "did you mean?" suggestions to unknown command/flag errors.
// targetCmd is the command Cobra resolved before the error (may be root itself).
func enhanceUnknownError(err error, root *cobra.Command, targetCmd *cobra.Command) string {
	msg := err.Error()

	// Unknown command: `unknown command "foo" for "apibean"`
	if strings.Contains(msg, "unknown command") {
		if unknown := extractQuoted(msg); unknown != "" {
			var names []string
			for _, c := range root.Commands() {
				if c.IsAvailableCommand() || c.Name() == "help" {
					names = append(names, c.Name())
					names = append(names, c.Aliases...)
				}
			}
			if suggestion := resolve.Suggest(unknown, names); suggestion != "" {
				return fmt.Sprintf("%s\n\nDid you mean %q?", msg, suggestion)
			}
		}
	}

	if strings.Contains(msg, "unknown flag") || strings.Contains(msg, "flag provided but not defined") || strings.Contains(msg, "unknown shorthand flag") {
		unknown := extractFlag(msg)
		if unknown == "" {
			return msg
		}
		seen := make(map[string]bool)
		var flagNames []string
		addFlags := func(fs *pflag.FlagSet) {
			fs.VisitAll(func(f *pflag.Flag) {
				for _, name := range []string{"--" + f.Name, "-" + f.Shorthand} {
					if name != "-" && !seen[name] {
						seen[name] = true
						flagNames = append(flagNames, name)
					}
				}
			})
		}
		helpCmd := "apibean --help"
		if targetCmd != nil {
			addFlags(targetCmd.Flags())
			addFlags(targetCmd.InheritedFlags())
			if commandPath := strings.TrimSpace(targetCmd.CommandPath()); commandPath != "" {
				helpCmd = commandPath + " --help"
			}
		} else {
			addFlags(root.Flags())
			addFlags(root.PersistentFlags())
		}
		if suggestion := resolve.Suggest(unknown, flagNames); suggestion != "" {
			return fmt.Sprintf("%s\n\nDid you mean %q?\nRun %q to see supported flags.", msg, suggestion, helpCmd)
		}
		return fmt.Sprintf("%s\n\nRun %q to see supported flags.", msg, helpCmd)
	}

	return msg
}

// extractQuoted extracts the first double-quoted substring from s.
func extractQuoted(s string) string {
	start := strings.IndexByte(s, '"')
	if start < 0 {
		return ""
	}
	end := strings.IndexByte(s[start+1:], '"')
	if end < 0 {
		return ""
	}
	return s[start+1 : start+1+end]
}

// extractFlag extracts a flag name (e.g., "--foo") from an error message.
func extractFlag(s string) string {
	idx := strings.Index(s, "--")
	if idx < 0 {
		// shorthand errors look like "unknown shorthand flag: 'a' in -a"
		idx = strings.LastIndex(s, " -")
		if idx < 0 {
			return ""
		}
		rest := strings.TrimSpace(s[idx+1:])
		if end := strings.IndexByte(rest, ' '); end >= 0 {
			rest = rest[:end]
		}
		rest = strings.TrimRight(rest, ".,;:!?\"'")
		if strings.HasPrefix(rest, "-") && len(rest) > 1 {
			return rest
		}
		return ""
	}
	rest := s[idx:]
	end := strings.IndexByte(rest, ' ')
	if end < 0 {
		end = len(rest)
	}
	return strings.TrimRight(rest[:end], ".,;:!?\"'")
}
