package cmd

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/apibean/apibean-cli/internal/curli"
	"github.com/apibean/apibean-cli/internal/debug"
	"github.com/apibean/apibean-cli/internal/dryrun"
	"github.com/apibean/apibean-cli/internal/header"
	"github.com/apibean/apibean-cli/internal/outfmt"
	"github.com/apibean/apibean-cli/internal/store"
)

// requestPreview describes a prepared request. The Authorization value is
// masked.
func requestPreview(desc curli.Descriptor) *dryrun.Preview {
	target, err := desc.FullURL()
	if err != nil {
		target = desc.URL
	}
	p := &dryrun.Preview{Operation: "send " + desc.Method, Resource: target}
	for name, value := range debug.RedactHeaders(desc.Headers).All() {
		p.Add(name, value)
	}
	if desc.ContentType != "" && !desc.Headers.Has("Content-Type") {
		p.Add("Content-Type", desc.ContentType)
	}
	if len(desc.Body) > 0 {
		p.Add("Body", fmt.Sprintf("%d bytes", len(desc.Body)))
	}
	if desc.Forwarded.Timeout > 0 {
		p.Add("Timeout", desc.Forwarded.Timeout.String())
	}
	if strings.HasPrefix(strings.ToLower(target), "http://") && desc.Headers.Has(header.Authorization) {
		p.Warn("Authorization header sent over plain http")
	}
	return p
}

// storePreview describes the active profile of s as it would be saved.
func storePreview(s *store.Store) *dryrun.Preview {
	p := &dryrun.Preview{
		Operation:   "save",
		Resource:    s.Name() + " store",
		Description: fmt.Sprintf("Active profile: %s", s.Profile()),
	}
	values := s.Values()
	for _, key := range slices.Sorted(maps.Keys(values)) {
		switch v := values[key].(type) {
		case header.Set:
			for name, value := range v.All() {
				p.Add(string(key)+"."+name, value)
			}
		case string:
			if key == store.KeyAccessToken {
				v = debug.Mask(v)
			}
			p.Add(string(key), v)
		default:
			p.Add(string(key), fmt.Sprint(v))
		}
	}
	return p
}

// writePreviews prints previews as text, or as a JSON list in JSON modes.
func writePreviews(ctx context.Context, cmd *cobra.Command, previews ...*dryrun.Preview) error {
	out := outfmt.NewFormatter(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if wrote, err := out.Output(previews); wrote || err != nil {
		return err
	}
	for _, p := range previews {
		p.Write(cmd.OutOrStdout())
	}
	return nil
}
