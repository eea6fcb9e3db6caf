// Package translate sends catalog chunks to an OpenAI-compatible chat
// completion API and streams the raw responses back, either one request at
// a time or through a bounded pool of concurrent requests.
package translate

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/minios-linux/potrans/chunk"
	"github.com/minios-linux/potrans/worker"
)

// ---------------------------------------------------------------------------
// Dispatch modes
// ---------------------------------------------------------------------------

// Mode selects how chunks are dispatched.
type Mode string

const (
	// ModeSequential sends one request at a time, in chunk order.
	ModeSequential Mode = "sequential"
	// ModeConcurrent sends up to MaxConcurrent requests at once and reports
	// results in completion order.
	ModeConcurrent Mode = "concurrent"
)

// ParseMode converts a mode name to a Mode. "parallel" is accepted as an
// alias for concurrent.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", string(ModeConcurrent), "parallel":
		return ModeConcurrent, nil
	case string(ModeSequential):
		return ModeSequential, nil
	}
	return "", fmt.Errorf("unknown mode %q (valid: sequential, concurrent)", s)
}

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

const (
	DefaultModel         = "gpt-4"
	DefaultBaseURL       = "https://api.openai.com/v1"
	DefaultTimeout       = 20 * time.Minute
	DefaultMaxConcurrent = 30
)

// SystemPrompt is the fixed instruction sent with every chunk.
const SystemPrompt = "You are a professional translator that is proficient in all languages and will provide accurate translations of .po files. Please answer with the entire .po file (including preamble comments). The output must be a valid .po file. Remember that when the msgid string ends in a newline, the msgstr must also end in a newline. And if the msgid string does not end in a newline, then the msgstr should likewise not have a newline at the end. Always put your response in a code block."

// Config controls the translation client. It is passed explicitly at
// construction; nothing is read from process-wide state.
type Config struct {
	// Model is the chat model identifier.
	Model string
	// BaseURL is the API base URL, without the /chat/completions suffix.
	BaseURL string
	// APIKey is sent as a bearer token (empty for local services).
	APIKey string
	// Temperature is the sampling temperature.
	Temperature float64
	// Timeout bounds each request.
	Timeout time.Duration
	// MaxConcurrent is the concurrency ceiling for ModeConcurrent.
	MaxConcurrent int
	// RequestDelay is the minimum spacing between request launches in
	// ModeConcurrent. Zero disables spacing.
	RequestDelay time.Duration
	// Proxy is an optional HTTP/HTTPS proxy URL.
	Proxy string
	// SystemPrompt overrides the default instruction.
	SystemPrompt string
}

func (c *Config) effectiveModel() string {
	if c.Model != "" {
		return c.Model
	}
	return DefaultModel
}

func (c *Config) effectiveBaseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return DefaultBaseURL
}

func (c *Config) effectiveTimeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}

func (c *Config) effectiveMaxConcurrent() int {
	if c.MaxConcurrent > 0 {
		return c.MaxConcurrent
	}
	return DefaultMaxConcurrent
}

func (c *Config) resolvedPrompt() string {
	if c.SystemPrompt != "" {
		return c.SystemPrompt
	}
	return SystemPrompt
}

// ---------------------------------------------------------------------------
// Requests and results
// ---------------------------------------------------------------------------

// Message is one chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a single chat completion request.
type Request struct {
	Model       string
	Messages    []Message
	Temperature float64
	Timeout     time.Duration
}

// UserPrompt builds the user message for one chunk.
func UserPrompt(language, text string) string {
	return fmt.Sprintf("Translate to %s:\n\n%s", language, text)
}

// Completer performs one chat completion and returns the model's text.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// CompleterFunc adapts a function to the Completer interface.
type CompleterFunc func(ctx context.Context, req Request) (string, error)

// Complete calls f(ctx, req).
func (f CompleterFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// ErrTimeout is reported when a request exceeds its time budget.
var ErrTimeout = errors.New("request timed out")

// RequestError describes a failed chunk request.
type RequestError struct {
	Chunk    int
	Language string
	Err      error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("chunk %d (%s): %v", e.Chunk, e.Language, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// Result is the outcome of translating one chunk.
type Result struct {
	// Chunk is the chunk that was sent.
	Chunk chunk.Chunk
	// Language is the target language the chunk was sent for.
	Language string
	// Raw is the model's unprocessed response text.
	Raw string
	// Err is set when the request failed; Raw is empty then.
	Err error
}

// Identity keys a result by chunk content and target language. Two results
// with the same identity carry interchangeable translations.
func (r Result) Identity() string {
	return r.Language + "\x00" + r.Chunk.Text
}

// ---------------------------------------------------------------------------
// Client
// ---------------------------------------------------------------------------

// Client dispatches chunk translations.
type Client struct {
	cfg       Config
	completer Completer
	limiter   *rate.Limiter
	log       zerolog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithCompleter replaces the HTTP transport.
func WithCompleter(c Completer) Option {
	return func(cl *Client) { cl.completer = c }
}

// WithLogger sets the client's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(cl *Client) { cl.log = l }
}

// NewClient creates a client for cfg. Without WithCompleter it talks to
// cfg.BaseURL over HTTP.
func NewClient(cfg Config, opts ...Option) *Client {
	c := &Client{cfg: cfg, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(c)
	}
	if c.completer == nil {
		c.completer = NewHTTPCompleter(cfg)
	}
	if cfg.RequestDelay > 0 {
		c.limiter = rate.NewLimiter(rate.Every(cfg.RequestDelay), 1)
	}
	return c
}

// Request builds the chat request for one chunk.
func (c *Client) Request(language string, ch chunk.Chunk) Request {
	return Request{
		Model: c.cfg.effectiveModel(),
		Messages: []Message{
			{Role: "system", Content: c.cfg.resolvedPrompt()},
			{Role: "user", Content: UserPrompt(language, ch.Text)},
		},
		Temperature: c.cfg.Temperature,
		Timeout:     c.cfg.effectiveTimeout(),
	}
}

// Translate sends every chunk for language and returns a channel carrying
// exactly one Result per chunk. The channel is closed after the last
// result. In ModeSequential results arrive in chunk order; in
// ModeConcurrent they arrive as requests complete.
func (c *Client) Translate(ctx context.Context, chunks []chunk.Chunk, language string, mode Mode) <-chan Result {
	out := make(chan Result, len(chunks))

	if mode == ModeSequential {
		go func() {
			defer close(out)
			for _, ch := range chunks {
				if err := ctx.Err(); err != nil {
					out <- c.failed(ch, language, err)
					continue
				}
				raw, err := c.call(ctx, language, ch)
				out <- Result{Chunk: ch, Language: language, Raw: raw, Err: err}
			}
		}()
		return out
	}

	pool := worker.NewPool(c.cfg.effectiveMaxConcurrent(), func(ctx context.Context, ch chunk.Chunk) (string, error) {
		return c.call(ctx, language, ch)
	}).WithLimiter(c.limiter).WithLogger(c.log)

	go func() {
		defer close(out)
		for task := range pool.Stream(ctx, chunks) {
			if task.Err != nil {
				var reqErr *RequestError
				if !errors.As(task.Err, &reqErr) {
					out <- c.failed(task.Input, language, task.Err)
					continue
				}
			}
			out <- Result{Chunk: task.Input, Language: language, Raw: task.Result, Err: task.Err}
		}
	}()
	return out
}

func (c *Client) failed(ch chunk.Chunk, language string, err error) Result {
	return Result{
		Chunk:    ch,
		Language: language,
		Err:      &RequestError{Chunk: ch.Index, Language: language, Err: err},
	}
}

// call performs one request under the per-request time budget.
func (c *Client) call(ctx context.Context, language string, ch chunk.Chunk) (string, error) {
	req := c.Request(language, ch)
	reqCtx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	c.log.Debug().Int("chunk", ch.Index).Str("lang", language).Int("bytes", len(ch.Text)).Msg("Sending chunk")
	start := time.Now()

	raw, err := c.completer.Complete(reqCtx, req)
	if err != nil {
		if ctx.Err() == nil && isTimeout(err) {
			err = fmt.Errorf("%w after %s: %v", ErrTimeout, req.Timeout, err)
		}
		return "", &RequestError{Chunk: ch.Index, Language: language, Err: err}
	}

	c.log.Debug().Int("chunk", ch.Index).Str("lang", language).Dur("took", time.Since(start)).Msg("Chunk translated")
	return raw, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
