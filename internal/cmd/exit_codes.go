package cmd

import (
	"errors"
	"strings"

	"github.com/spf13/pflag"

	"github.com/apibean/apibean-cli/internal/apierr"
)

const (
	exitOK      = 0
	exitGeneric = 1
	exitUsage   = 2
	exitNetwork = 8
	exitTimeout = 9
)

// ExitCode maps an error to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return exitOK
	}
	if errors.Is(err, pflag.ErrHelp) {
		return exitOK
	}
	var handled *handledError
	if errors.As(err, &handled) {
		if handled.exitCode != 0 {
			return handled.exitCode
		}
		err = handled.err
	}

	if code := exitCodeFromTransport(err); code != 0 {
		return code
	}
	if isUsageError(err) {
		return exitUsage
	}
	return exitGeneric
}

func exitCodeFromTransport(err error) int {
	switch apierr.CodeOf(err) {
	case apierr.CodeTimeout:
		return exitTimeout
	case apierr.CodeConnection, apierr.CodeTransport:
		return exitNetwork
	default:
		return 0
	}
}

func isUsageError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	indicators := []string{
		"unknown command",
		"unknown flag",
		"unknown shorthand flag",
		"flag needs an argument",
		"flag provided but not defined",
		"accepts ",
		"requires at least",
		"requires exactly",
		"invalid argument",
		"invalid header",
		"invalid query",
		"invalid base url",
		"invalid output format",
		"invalid filter expression",
		"must be",
		"is required",
	}
	for _, indicator := range indicators {
		if strings.Contains(msg, indicator) {
			return true
		}
	}
	return false
}
