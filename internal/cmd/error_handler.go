package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/apibean/apibean-cli/internal/apierr"
	"github.com/apibean/apibean-cli/internal/curli"
	"github.com/apibean/apibean-cli/internal/resolve"
	"github.com/apibean/apibean-cli/internal/store"
)

// HandleError renders err for stderr with suggestions where we have some.
func HandleError(err error) string {
	if err == nil {
		return ""
	}

	var msg strings.Builder

	var errValue *curli.ErrorValue
	var transportErr *apierr.Error
	var notFound *resolve.NotFoundError
	var ambiguous *resolve.AmbiguousError

	switch {
	case errors.As(err, &errValue):
		writeTransportError(&msg, errValue.Err)
		if errValue.RequestID != "" {
			fmt.Fprintf(&msg, "\nRequest ID: %s\n", errValue.RequestID)
		}

	case errors.As(err, &transportErr):
		writeTransportError(&msg, transportErr)

	case errors.As(err, &ambiguous):
		fmt.Fprintf(&msg, "Error: %s\n\n", ambiguous.Error())
		msg.WriteString("Suggestions:\n")
		for _, m := range ambiguous.Matches {
			fmt.Fprintf(&msg, "  - %s\n", m)
		}

	case errors.As(err, &notFound):
		fmt.Fprintf(&msg, "Error: %s\n", notFound.Error())

	case errors.Is(err, store.ErrNotFound):
		fmt.Fprintf(&msg, "Error: %s\n\n", err.Error())
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - Run: apibean session set --base-url URL\n")

	case strings.Contains(err.Error(), "certificate"):
		msg.WriteString("TLS certificate error.\n\n")
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - Verify the server's SSL certificate\n")
		msg.WriteString("  - Ensure you're using https:// correctly\n")

	default:
		fmt.Fprintf(&msg, "Error: %s\n", err.Error())
	}

	return msg.String()
}

func writeTransportError(msg *strings.Builder, err *apierr.Error) {
	fmt.Fprintf(msg, "%s (%s)\n", err.Message, err.Code)
	if err.Detail != "" {
		fmt.Fprintf(msg, "%s\n", err.Detail)
	}

	msg.WriteString("\nSuggestions:\n")
	if err.Hint != "" {
		fmt.Fprintf(msg, "  - %s\n", err.Hint)
	}
	switch err.Code {
	case apierr.CodeConnection:
		msg.WriteString("  - Check the base URL: apibean session show\n")
	case apierr.CodeTimeout:
		msg.WriteString("  - Raise the limit with --timeout\n")
	default:
		msg.WriteString("  - Use --debug to see the full request\n")
	}
}
