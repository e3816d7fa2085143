package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hal9000y/mail-mcp/internal/config"
	"github.com/hal9000y/mail-mcp/internal/mailbox"
	"github.com/hal9000y/mail-mcp/internal/message"
	"github.com/hal9000y/mail-mcp/internal/smtpmail"
)

// ErrDeliveryNotConfigured is returned by send_email when no relay host is set.
var ErrDeliveryNotConfigured = errors.New("SMTP is not configured")

const (
	statusOK    = "ok"
	statusError = "error"
)

// Transfer delivers outgoing mail.
type Transfer interface {
	Deliver(ctx context.Context, msg smtpmail.Message) (*smtpmail.Receipt, error)
}

// plainText results are returned verbatim instead of as JSON.
type plainText string

type handlerFunc func(ctx context.Context, sess mailbox.Session, args map[string]any) (any, error)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger used for per-call logging.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithMetrics records every call in m.
func WithMetrics(m *Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithComposer replaces the composer used for drafts.
func WithComposer(c message.Composer) Option {
	return func(d *Dispatcher) {
		d.composer = c
	}
}

// WithDecoder replaces the message decoder.
func WithDecoder(dec message.Decoder) Option {
	return func(d *Dispatcher) {
		d.decoder = dec
	}
}

// WithDraftsResolver replaces the drafts folder resolver.
func WithDraftsResolver(r mailbox.DraftsResolver) Option {
	return func(d *Dispatcher) {
		d.resolver = r
	}
}

// Dispatcher routes tool calls to their handlers and converts every outcome
// into a tool result.
type Dispatcher struct {
	cfg      *config.Config
	dialer   mailbox.Dialer
	transfer Transfer
	composer message.Composer
	decoder  message.Decoder
	resolver mailbox.DraftsResolver
	metrics  *Metrics
	logger   *slog.Logger
	handlers map[string]handlerFunc
}

// NewDispatcher creates a Dispatcher. transfer may be nil when SMTP is disabled.
func NewDispatcher(cfg *config.Config, dialer mailbox.Dialer, transfer Transfer, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		cfg:      cfg,
		dialer:   dialer,
		transfer: transfer,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}

	d.handlers = map[string]handlerFunc{
		ListFolders:  d.listFolders,
		ListEmails:   d.listEmails,
		GetEmail:     d.getEmail,
		SearchEmails: d.searchEmails,
		ListDrafts:   d.listDrafts,
		GetDraft:     d.getDraft,
		CreateDraft:  d.createDraft,
		UpdateDraft:  d.updateDraft,
		SendEmail:    d.sendEmail,
		DeleteEmail:  d.deleteEmail,
	}

	return d
}

// Handle runs the named operation. It always returns a result: failures are
// reported with IsError set, and unknown names as plain text.
func (d *Dispatcher) Handle(ctx context.Context, name string, args map[string]any) *mcp.CallToolResult {
	spec, ok := lookup(name)
	if !ok {
		d.logger.Warn("Unknown tool", slog.String("tool", name))
		return textResult("Unknown tool: " + name)
	}

	start := time.Now()
	result := d.run(ctx, spec, args)
	elapsed := time.Since(start)

	status := statusOK
	if result.IsError {
		status = statusError
	}
	d.metrics.observe(name, status, elapsed)

	attrs := []any{slog.String("tool", name), slog.String("status", status), slog.Duration("duration", elapsed)}
	if result.IsError {
		attrs = append(attrs, slog.String("error", result.Content[0].(*mcp.TextContent).Text))
		d.logger.Error("Tool call failed", attrs...)
	} else {
		d.logger.Info("Tool call", attrs...)
	}

	return result
}

func (d *Dispatcher) run(ctx context.Context, spec Spec, args map[string]any) *mcp.CallToolResult {
	v, err := d.call(ctx, spec, args)
	if err != nil {
		return errorResult(err)
	}

	if text, ok := v.(plainText); ok {
		return textResult(string(text))
	}

	out, err := marshalIndent(v)
	if err != nil {
		return errorResult(err)
	}
	return textResult(out)
}

// marshalIndent renders v as two-space indented JSON without escaping
// address brackets.
func marshalIndent(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("enc.Encode failed: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func (d *Dispatcher) call(ctx context.Context, spec Spec, args map[string]any) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", spec.Name, r)
		}
	}()

	args = withDefaults(args, spec.Defaults)
	for _, key := range spec.Required {
		if args[key] == nil {
			return nil, fmt.Errorf("missing required argument: %s", key)
		}
	}

	handler := d.handlers[spec.Name]
	if !spec.NeedsSession {
		return handler(ctx, nil, args)
	}

	sess, err := d.dialer.Dial(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := sess.Close(); err != nil {
			d.logger.Warn("Session close failed", slog.String("tool", spec.Name), slog.String("error", err.Error()))
		}
	}()

	return handler(ctx, sess, args)
}

func withDefaults(args, defaults map[string]any) map[string]any {
	out := make(map[string]any, len(args)+len(defaults))
	for k, v := range defaults {
		out[k] = v
	}
	for k, v := range args {
		if v != nil {
			out[k] = v
		}
	}
	return out
}

// decodeArgs decodes the argument bag into out. Numbers given as strings and
// the other way round are accepted, but a number must fit its integer field
// exactly.
func decodeArgs(args map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		DecodeHook:       exactIntegerHook,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("mapstructure.NewDecoder failed: %w", err)
	}
	if err := dec.Decode(args); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// exactIntegerHook rejects fractional and out of range numbers that
// mapstructure would otherwise truncate into an integer field.
func exactIntegerHook(_, to reflect.Type, data any) (any, error) {
	var lo, hi float64
	switch to.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		lo, hi = -math.Ldexp(1, to.Bits()-1), math.Ldexp(1, to.Bits()-1)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		lo, hi = 0, math.Ldexp(1, to.Bits())
	default:
		return data, nil
	}

	var f float64
	v := reflect.ValueOf(data)
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		f = v.Float()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		f = float64(v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		f = float64(v.Uint())
	default:
		return data, nil
	}

	shown := strconv.FormatFloat(f, 'f', -1, 64)
	if f != math.Trunc(f) {
		return nil, fmt.Errorf("%s is not a whole number", shown)
	}
	if f < lo || f >= hi {
		return nil, fmt.Errorf("%s is out of range", shown)
	}
	return data, nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: "Error: " + err.Error()}},
		IsError: true,
	}
}
