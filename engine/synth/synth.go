// Package synth composes an answer from a question and retrieved context.
//
// Two mutually exclusive modes are chosen once at startup. Generative mode
// asks a chat-completions backend, retrying transient failures with
// exponential backoff, and degrades to an extractive summary. Keyword mode
// never calls a backend and picks context sentences sharing words with the
// question. Synthesize never returns an error.
package synth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/yassine-youcefi/rasa-rag-chatbot/pkg/deepseek"
	"github.com/yassine-youcefi/rasa-rag-chatbot/pkg/fn"
	"github.com/yassine-youcefi/rasa-rag-chatbot/pkg/metrics"
	"github.com/yassine-youcefi/rasa-rag-chatbot/pkg/resilience"
)

// Mode selects the synthesis strategy.
type Mode int

const (
	ModeKeyword Mode = iota
	ModeGenerative
)

func (m Mode) String() string {
	if m == ModeGenerative {
		return "generative"
	}
	return "keyword"
}

// LLMTypeDeepSeek is the LLM_TYPE value that turns on generative mode.
const LLMTypeDeepSeek = "deepseek_api"

// ParseMode maps the LLM_TYPE setting to a Mode. Anything but
// "deepseek_api" means keyword mode.
func ParseMode(llmType string) Mode {
	if strings.EqualFold(strings.TrimSpace(llmType), LLMTypeDeepSeek) {
		return ModeGenerative
	}
	return ModeKeyword
}

// Generator is a chat-completions backend. pkg/deepseek implements it.
type Generator interface {
	Complete(ctx context.Context, messages []deepseek.Message) (string, error)
}

const (
	MaxContextChars     = 2000
	DefaultMaxAttempts  = 3
	DefaultUnit         = time.Second
	DefaultTimeout      = 30 * time.Second
	DefaultMaxSentences = 2
	DefaultSummaryWords = 100
)

// Options configures a Synthesizer. Zero values take the defaults above.
type Options struct {
	Mode Mode
	// Generator may be nil in generative mode; every answer is then extractive.
	Generator Generator
	// Breaker, when set, guards Generator. An open breaker skips the backend.
	Breaker *resilience.Breaker

	MaxAttempts int
	// Unit is the backoff base: the wait after failed attempt n is Unit*2^n.
	Unit time.Duration
	// AttemptTimeout bounds each backend call.
	AttemptTimeout time.Duration
	// Sleep waits between attempts; nil means a real timer.
	Sleep func(context.Context, time.Duration) error

	MaxSentences int
	SummaryWords int

	Logger  *slog.Logger
	Metrics *metrics.RAG
}

// Synthesizer turns (question, context) into answer text.
type Synthesizer struct {
	opts Options
	log  *slog.Logger
}

// New returns a Synthesizer. Zero retry and summary settings take the
// package defaults.
func New(opts Options) *Synthesizer {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Unit <= 0 {
		opts.Unit = DefaultUnit
	}
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = DefaultTimeout
	}
	if opts.MaxSentences <= 0 {
		opts.MaxSentences = DefaultMaxSentences
	}
	if opts.SummaryWords <= 0 {
		opts.SummaryWords = DefaultSummaryWords
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Synthesizer{opts: opts, log: log}
}

func (s *Synthesizer) Mode() Mode { return s.opts.Mode }

// Synthesize answers question from docContext. sources are the documents the
// context came from; they are only used for logging.
func (s *Synthesizer) Synthesize(ctx context.Context, question, docContext string, sources []string) (answer string) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("synth: panic", "error", fmt.Sprint(r), "mode", s.opts.Mode.String())
			s.opts.Metrics.Answer(s.opts.Mode.String(), "error")
			answer = MsgFormattingTrouble
		}
	}()

	if s.opts.Mode == ModeKeyword {
		s.opts.Metrics.Answer("keyword", "ok")
		return Keyword(question, docContext, s.opts.MaxSentences, s.opts.SummaryWords)
	}

	if s.opts.Generator == nil {
		s.log.Warn("synth: generative backend not configured, using fallback")
		s.opts.Metrics.Answer("generative", "fallback")
		return Extractive(docContext)
	}

	text, err := s.generate(ctx, question, docContext)
	if err != nil {
		s.log.Warn("synth: all backend attempts failed, using fallback", "error", err, "sources", len(sources))
		s.opts.Metrics.Answer("generative", "fallback")
		return Extractive(docContext)
	}
	s.opts.Metrics.Answer("generative", "ok")
	return Clean(text)
}

func (s *Synthesizer) generate(ctx context.Context, question, docContext string) (string, error) {
	msgs := BuildMessages(question, docContext)
	attempt := 0
	opts := fn.RetryOpts{
		MaxAttempts: s.opts.MaxAttempts,
		InitialWait: s.opts.Unit,
		Sleep:       s.opts.Sleep,
		OnRetry: func(_ int, _ error, wait time.Duration) {
			s.opts.Metrics.LLMRetry()
			s.log.Info("synth: retrying backend", "wait", wait)
		},
	}

	res := fn.Retry(ctx, opts, func(ctx context.Context) fn.Result[string] {
		attempt++
		actx, cancel := context.WithTimeout(ctx, s.opts.AttemptTimeout)
		defer cancel()

		text, err := s.call(actx, msgs)
		if err == nil {
			return fn.Ok(text)
		}
		s.logFailure(attempt, err)
		if errors.Is(err, deepseek.ErrUnauthorized) || errors.Is(err, deepseek.ErrDisabled) || errors.Is(err, resilience.ErrCircuitOpen) {
			return fn.Err[string](fn.Permanent(err))
		}
		return fn.Err[string](err)
	})
	return res.Unwrap()
}

func (s *Synthesizer) call(ctx context.Context, msgs []deepseek.Message) (string, error) {
	if s.opts.Breaker == nil {
		return s.opts.Generator.Complete(ctx, msgs)
	}
	var text string
	err := s.opts.Breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		text, err = s.opts.Generator.Complete(ctx, msgs)
		return err
	})
	return text, err
}

func (s *Synthesizer) logFailure(attempt int, err error) {
	switch {
	case errors.Is(err, deepseek.ErrUnauthorized):
		s.log.Error("synth: backend rejected API key", "attempt", attempt, "error", err)
	case errors.Is(err, deepseek.ErrRateLimited):
		s.log.Warn("synth: backend rate limit exceeded", "attempt", attempt)
	case errors.Is(err, deepseek.ErrServer):
		s.log.Error("synth: backend server error", "attempt", attempt, "error", err)
	case errors.Is(err, context.DeadlineExceeded):
		s.log.Warn("synth: backend timeout", "attempt", attempt)
	case errors.Is(err, resilience.ErrCircuitOpen):
		s.log.Warn("synth: circuit open, skipping backend", "attempt", attempt)
	default:
		s.log.Error("synth: backend call failed", "attempt", attempt, "error", err)
	}
}
