// Package apierr defines the typed errors returned when a request cannot be
// delivered, and the mapper that turns raw transport failures into them.
//
// Every error carries a stable machine-readable Code, a rendered
// human-readable Message, a Severity and an optional Hint. The original
// failure is kept as Cause and is reachable with errors.Unwrap.
package apierr

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Code is a machine-readable error code. The set of codes is closed.
type Code string

const (
	// CodeTransport is used for transport failures that have no finer class.
	CodeTransport Code = "transport_error"
	// CodeConnection indicates the host could not be reached.
	CodeConnection Code = "connection_failed"
	// CodeTimeout indicates the server did not answer in time.
	CodeTimeout Code = "read_timeout"
)

// Codes lists every code an Error may carry.
func Codes() []Code {
	return []Code{CodeTransport, CodeConnection, CodeTimeout}
}

// Severity grades an error for presentation.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Kind identifies a class in the error taxonomy. KindTransport is the root;
// the others refine it.
type Kind int

const (
	KindTransport Kind = iota
	KindConnection
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "ConnectionError"
	case KindTimeout:
		return "ReqTimeoutError"
	default:
		return "TransportError"
	}
}

type class struct {
	code     Code
	severity Severity
	template string
	hint     string
}

var classes = map[Kind]class{
	KindTransport: {
		code:     CodeTransport,
		severity: SeverityError,
	},
	KindConnection: {
		code:     CodeConnection,
		severity: SeverityError,
		template: "Cannot connect to {url}",
		hint:     "Check server address or make sure the server is running",
	},
	KindTimeout: {
		code:     CodeTimeout,
		severity: SeverityError,
		template: "Request to {url} timed out after {timeout}(s)",
		hint:     "Try increasing timeout or check server performance",
	},
}

// Error is a classified transport failure.
type Error struct {
	Kind        Kind           `json:"-"`
	Code        Code           `json:"code"`
	Message     string         `json:"message"`
	Severity    Severity       `json:"severity"`
	Title       string         `json:"title,omitempty"`
	Detail      string         `json:"detail,omitempty"`
	Hint        string         `json:"hint,omitempty"`
	MessageData map[string]any `json:"message_data,omitempty"`
	Cause       error          `json:"-"`

	sentinel bool
}

// Sentinels for errors.Is. ErrTransport matches every Error; the others
// match their own kind only.
var (
	ErrTransport  = &Error{Kind: KindTransport, Code: CodeTransport, Message: "transport error", sentinel: true}
	ErrConnection = &Error{Kind: KindConnection, Code: CodeConnection, Message: "connection failed", sentinel: true}
	ErrTimeout    = &Error{Kind: KindTimeout, Code: CodeTimeout, Message: "read timeout", sentinel: true}
)

// Params are the per-instance inputs of an Error. Message wins over
// Template; Template defaults to the kind's template.
type Params struct {
	Message  string
	Template string
	Data     map[string]any
	Cause    error
	Title    string
	Detail   string
	Hint     string
}

// New builds an Error of the given kind.
func New(kind Kind, p Params) *Error {
	c, ok := classes[kind]
	if !ok {
		kind = KindTransport
		c = classes[KindTransport]
	}

	data := p.Data
	if data == nil {
		data = map[string]any{}
	}

	e := &Error{
		Kind:        kind,
		Code:        c.code,
		Severity:    c.severity,
		Title:       p.Title,
		Detail:      p.Detail,
		Hint:        c.hint,
		MessageData: data,
		Cause:       p.Cause,
	}
	if p.Hint != "" {
		e.Hint = p.Hint
	}

	template := p.Template
	if template == "" {
		template = c.template
	}
	switch {
	case p.Message != "":
		e.Message = p.Message
	case template != "":
		e.Message = Render(template, data)
	default:
		e.Message = kind.String()
	}
	return e
}

// NewTransportError builds a generic transport error.
func NewTransportError(p Params) *Error { return New(KindTransport, p) }

// NewConnectionError builds a connection error.
func NewConnectionError(p Params) *Error { return New(KindConnection, p) }

// NewTimeoutError builds a read timeout error.
func NewTimeoutError(p Params) *Error { return New(KindTimeout, p) }

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Cause }

// Is matches the package sentinels by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || !t.sentinel {
		return false
	}
	return t.Kind == KindTransport || t.Kind == e.Kind
}

// MarshalJSON adds the kind and the cause text.
func (e *Error) MarshalJSON() ([]byte, error) {
	type alias Error
	out := struct {
		*alias
		Kind  string `json:"kind"`
		Cause string `json:"cause,omitempty"`
	}{alias: (*alias)(e), Kind: e.Kind.String()}
	if e.Cause != nil {
		out.Cause = e.Cause.Error()
	}
	return json.Marshal(out)
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsConnection reports whether err is a connection error.
func IsConnection(err error) bool { return errors.Is(err, ErrConnection) }

// IsTimeout reports whether err is a read timeout error.
func IsTimeout(err error) bool { return errors.Is(err, ErrTimeout) }

// CodeOf returns the code of the first Error in err's chain, or "".
func CodeOf(err error) Code {
	if e, ok := As(err); ok {
		return e.Code
	}
	return ""
}

// Render substitutes {name} placeholders with values from data. Unknown
// placeholders are left as they are.
func Render(template string, data map[string]any) string {
	if len(data) == 0 {
		return template
	}
	pairs := make([]string, 0, len(data)*2)
	for k, v := range data {
		pairs = append(pairs, "{"+k+"}", FormatValue(v))
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// FormatValue renders a template value. Floats and durations (as seconds)
// always show a fractional part, so five seconds reads "5.0".
func FormatValue(v any) string {
	switch x := v.(type) {
	case time.Duration:
		return formatSeconds(x.Seconds())
	case float64:
		return formatSeconds(x)
	case float32:
		return formatSeconds(float64(x))
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

func formatSeconds(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEIN") {
		s += ".0"
	}
	return s
}
