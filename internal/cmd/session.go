package cmd

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/apibean/apibean-cli/internal/debug"
	"github.com/apibean/apibean-cli/internal/dryrun"
	"github.com/apibean/apibean-cli/internal/header"
	"github.com/apibean/apibean-cli/internal/iocontext"
	"github.com/apibean/apibean-cli/internal/outfmt"
	"github.com/apibean/apibean-cli/internal/resolve"
	"github.com/apibean/apibean-cli/internal/store"
	"github.com/apibean/apibean-cli/internal/validation"
)

// sessionView is the rendering of one session profile.
type sessionView struct {
	Profile string            `json:"profile"`
	BaseURL string            `json:"base_url,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// accountView is the rendering of one account profile. The token is masked.
type accountView struct {
	Profile     string `json:"profile"`
	AccessToken string `json:"access_token,omitempty"`
}

// sessionValueFlags are the values session set and session default write.
type sessionValueFlags struct {
	baseURL string
	headers []string
}

func (f *sessionValueFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.baseURL, "base-url", "", "Base URL for relative request paths")
	cmd.Flags().StringArrayVarP(&f.headers, "header", "H", nil, `Default header "Name: value" (repeatable)`)
}

// values returns the store values for the flags that were given. Headers
// are merged over existing, so set adds to the stored defaults. An empty
// --base-url is not a value; see clearsBaseURL.
func (f *sessionValueFlags) values(cmd *cobra.Command, existing header.Set) (store.Values, error) {
	values := store.Values{}
	if f.baseURL != "" {
		if err := validation.ValidateBaseURL(f.baseURL); err != nil {
			return nil, err
		}
		values[store.KeyBaseURL] = f.baseURL
	}
	if len(f.headers) > 0 {
		merged := existing.Clone()
		for _, line := range f.headers {
			field, err := header.Parse(line)
			if err != nil {
				return nil, err
			}
			if err := validation.ValidateHeader(field.Name, field.Value); err != nil {
				return nil, err
			}
			merged.Set(field.Name, field.Value)
		}
		values[store.KeyHeaders] = merged
	}
	return values, nil
}

// clearsBaseURL reports whether --base-url was given explicitly empty.
func (f *sessionValueFlags) clearsBaseURL(cmd *cobra.Command) bool {
	return cmd.Flags().Changed("base-url") && f.baseURL == ""
}

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "session",
		Aliases: []string{"sess"},
		Short:   "Manage session profiles (base URL and default headers)",
	}
	cmd.AddCommand(newSessionSetCmd())
	cmd.AddCommand(newSessionDefaultCmd())
	cmd.AddCommand(newSessionShowCmd())
	cmd.AddCommand(newSessionUnsetCmd())
	cmd.AddCommand(newUseCmd(store.Session))
	return cmd
}

func newSessionSetCmd() *cobra.Command {
	var f sessionValueFlags
	var profile string
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set session values, overwriting existing ones",
		Long: `Set session values on the active profile, or on --profile after switching
to it. Headers are merged over the stored ones. An empty --base-url removes
the stored base URL.`,
		Example: `  apibean session set --base-url https://api.example.com
  apibean session set --profile staging -H "Accept: application/json"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, true, func(ctx context.Context, a *app) error {
				c := a.client(nil).InSession(profile, nil)
				existing, _ := a.session.Headers()
				values, err := f.values(cmd, existing)
				if err != nil {
					return err
				}
				clearBase := f.clearsBaseURL(cmd)
				if len(values) == 0 && !clearBase && profile == "" {
					return fmt.Errorf("nothing to set: --base-url, --header or --profile is required")
				}
				c.InSession("", values)
				if clearBase {
					a.session.Delete(store.KeyBaseURL)
				}
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Session profile %q updated\n", a.session.Profile())
				return nil
			})
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&profile, "profile", "", "Switch to this profile first")
	return cmd
}

func newSessionDefaultCmd() *cobra.Command {
	var f sessionValueFlags
	cmd := &cobra.Command{
		Use:   "default",
		Short: "Set session values only where none are set",
		Long: `Set session values only where the active profile has none. An empty
--base-url seeds nothing.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, true, func(ctx context.Context, a *app) error {
				values, err := f.values(cmd, header.Set{})
				if err != nil {
					return err
				}
				if len(values) == 0 {
					return fmt.Errorf("nothing to set: --base-url or --header is required")
				}
				a.client(nil).Default(values)
				return nil
			})
		},
	}
	f.register(cmd)
	return cmd
}

func newSessionShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [PROFILE]",
		Short: "Show the active or named session profile",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, false, func(ctx context.Context, a *app) error {
				if err := selectProfile(a.session, args); err != nil {
					return err
				}
				view := sessionView{Profile: a.session.Profile(), BaseURL: a.session.String(store.KeyBaseURL)}
				if h, ok := a.session.Headers(); ok && h.Len() > 0 {
					view.Headers = h.Map()
				}

				out := outfmt.NewFormatter(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr())
				if wrote, err := out.Output(view); wrote || err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				_, _ = fmt.Fprintf(w, "Profile:  %s\n", view.Profile)
				_, _ = fmt.Fprintf(w, "Base URL: %s\n", valueOrNone(view.BaseURL))
				if h, ok := a.session.Headers(); ok && h.Len() > 0 {
					_, _ = fmt.Fprintln(w, "Headers:")
					for name, value := range h.All() {
						_, _ = fmt.Fprintf(w, "  %s: %s\n", name, value)
					}
				}
				return nil
			})
		},
	}
}

func newSessionUnsetCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "unset KEY",
		Short:     "Remove base_url or headers from the active session profile",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(store.KeyBaseURL), string(store.KeyHeaders)},
		RunE: func(cmd *cobra.Command, args []string) error {
			key := store.Key(strings.ReplaceAll(args[0], "-", "_"))
			if key != store.KeyBaseURL && key != store.KeyHeaders {
				return fmt.Errorf("invalid argument %q: must be base_url or headers", args[0])
			}
			return withApp(cmd, true, func(ctx context.Context, a *app) error {
				a.session.Delete(key)
				return nil
			})
		},
	}
}

func newAccountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "account",
		Aliases: []string{"acct"},
		Short:   "Manage account profiles (access tokens)",
	}
	cmd.AddCommand(newAccountSetCmd())
	cmd.AddCommand(newAccountShowCmd())
	cmd.AddCommand(newAccountLogoutCmd())
	cmd.AddCommand(newUseCmd(store.Account))
	return cmd
}

func newAccountSetCmd() *cobra.Command {
	var (
		profile    string
		token      string
		tokenStdin bool
	)
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Store an access token",
		Example: `  apibean account set --token "$TOKEN"
  echo "$TOKEN" | apibean account set --profile admin --token-stdin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if tokenStdin {
				data, err := io.ReadAll(iocontext.GetIO(cmd.Context()).In)
				if err != nil {
					return fmt.Errorf("failed to read token from stdin: %w", err)
				}
				token = string(data)
			}
			token = strings.TrimSpace(token)
			if token == "" {
				return fmt.Errorf("--token or --token-stdin is required")
			}
			return withApp(cmd, true, func(ctx context.Context, a *app) error {
				a.client(nil).AsAccount(profile, store.Values{store.KeyAccessToken: token})
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Account profile %q updated\n", a.account.Profile())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&profile, "profile", "", "Switch to this profile first")
	cmd.Flags().StringVar(&token, "token", "", "Access token")
	cmd.Flags().BoolVar(&tokenStdin, "token-stdin", false, "Read the access token from stdin")
	return cmd
}

func newAccountShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [PROFILE]",
		Short: "Show the active or named account profile",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, false, func(ctx context.Context, a *app) error {
				if err := selectProfile(a.account, args); err != nil {
					return err
				}
				view := accountView{
					Profile:     a.account.Profile(),
					AccessToken: debug.Mask(a.account.String(store.KeyAccessToken)),
				}
				out := outfmt.NewFormatter(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr())
				if wrote, err := out.Output(view); wrote || err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Profile: %s\nToken:   %s\n", view.Profile, valueOrNone(view.AccessToken))
				return nil
			})
		},
	}
}

func newAccountLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the access token of the active account profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, true, func(ctx context.Context, a *app) error {
				a.account.Delete(store.KeyAccessToken)
				return nil
			})
		},
	}
}

// newUseCmd switches the persisted active profile of the named store. A
// profile that does not exist yet is created empty.
func newUseCmd(name string) *cobra.Command {
	return &cobra.Command{
		Use:   "use PROFILE",
		Short: fmt.Sprintf("Switch the active %s profile", name),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, true, func(ctx context.Context, a *app) error {
				s := a.session
				if name == store.Account {
					s = a.account
				}
				target := strings.TrimSpace(args[0])
				existing := s.Profiles()
				if !slices.Contains(existing, target) {
					msg := fmt.Sprintf("Created %s profile %q", name, target)
					if suggestion := resolve.Suggest(target, existing); suggestion != "" {
						msg += fmt.Sprintf(" (did you mean %q?)", suggestion)
					}
					_, _ = fmt.Fprintln(cmd.ErrOrStderr(), msg)
				}
				s.SetProfile(target)
				return nil
			})
		},
	}
}

// profilesView lists the profiles of both stores.
type profilesView struct {
	Store    string   `json:"store"`
	Active   string   `json:"active"`
	Profiles []string `json:"profiles"`
}

func newProfilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List session and account profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, false, func(ctx context.Context, a *app) error {
				views := []profilesView{
					{Store: store.Session, Active: a.session.Profile(), Profiles: a.session.Profiles()},
					{Store: store.Account, Active: a.account.Profile(), Profiles: a.account.Profiles()},
				}
				out := outfmt.NewFormatter(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr())
				if wrote, err := out.Output(views); wrote || err != nil {
					return err
				}
				out.StartTable([]string{"STORE", "PROFILE", "ACTIVE"})
				for _, v := range views {
					for _, p := range v.Profiles {
						active := ""
						if p == v.Active {
							active = "*"
						}
						out.Row(v.Store, p, active)
					}
				}
				return out.EndTable()
			})
		},
	}
}

// withApp opens the app, runs fn and, when save is set, persists both
// stores afterwards. In dry-run mode the stores are previewed instead.
func withApp(cmd *cobra.Command, save bool, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if err := fn(ctx, a); err != nil {
		return err
	}
	if !save {
		return nil
	}
	if dryrun.IsEnabled(ctx) {
		return writePreviews(ctx, cmd, storePreview(a.session), storePreview(a.account))
	}
	return a.save(ctx)
}

// selectProfile switches s to the profile named by args[0], matched
// exactly or by unique fuzzy match. The switch is not persisted.
func selectProfile(s *store.Store, args []string) error {
	if len(args) == 0 {
		return nil
	}
	name, err := resolve.Match(args[0], s.Profiles())
	if err != nil {
		return fmt.Errorf("%s profile: %w", s.Name(), err)
	}
	s.SetProfile(name)
	return nil
}

func valueOrNone(v string) string {
	if v == "" {
		return "(none)"
	}
	return v
}
