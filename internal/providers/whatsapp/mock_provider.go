package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/wa-broadcast/internal/logger"
)

// Scenario enumerates supported behaviours for the mock WhatsApp provider.
type Scenario string

const (
	ScenarioSuccess   Scenario = "success"
	ScenarioTransient Scenario = "transient"
	ScenarioPermanent Scenario = "permanent"
	ScenarioTimeout   Scenario = "timeout"
)

// Option customises the mock provider at construction time.
type Option func(*MockProvider)

// WithScenario overrides the default scenario for every operation.
func WithScenario(s Scenario) Option {
	return func(p *MockProvider) {
		p.defaultScenario = s
	}
}

// WithOpScenario sets the scenario for one operation regardless of recipient.
func WithOpScenario(op Op, s Scenario) Option {
	return func(p *MockProvider) {
		p.opScenarios[op] = s
	}
}

// WithRecipientScenario sets the scenario for one operation sent to one
// recipient. It takes precedence over WithOpScenario.
func WithRecipientScenario(op Op, to string, s Scenario) Option {
	return func(p *MockProvider) {
		p.recipientScenarios[scenarioKey{op: op, to: to}] = s
	}
}

// WithLatency sets the artificial latency inserted before responding.
func WithLatency(d time.Duration) Option {
	return func(p *MockProvider) {
		if d < 0 {
			d = 0
		}
		p.latency = d
	}
}

// Request records one call made against the mock.
type Request struct {
	Op       Op
	To       string
	Path     string
	MimeType string
	Template string
	Language string
	Document Document
}

type scenarioKey struct {
	op Op
	to string
}

// MockProvider implements a deterministic WhatsApp provider suitable for
// smoke runs and tests. It performs no network calls.
type MockProvider struct {
	logger             zerolog.Logger
	defaultScenario    Scenario
	opScenarios        map[Op]Scenario
	recipientScenarios map[scenarioKey]Scenario
	latency            time.Duration

	mu       sync.Mutex
	seq      int
	requests []Request
}

// NewMockProvider constructs a new mock WhatsApp provider.
func NewMockProvider(logger zerolog.Logger, opts ...Option) *MockProvider {
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	p := &MockProvider{
		logger:             logger,
		defaultScenario:    ScenarioSuccess,
		opScenarios:        make(map[Op]Scenario),
		recipientScenarios: make(map[scenarioKey]Scenario),
		latency:            25 * time.Millisecond,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// UploadMedia simulates a media upload.
func (p *MockProvider) UploadMedia(ctx context.Context, path, mimeType string) (string, error) {
	req := Request{Op: OpUpload, Path: path, MimeType: mimeType}
	if err := p.simulate(ctx, req); err != nil {
		return "", err
	}
	return fmt.Sprintf("mock-media-%d", p.nextSeq()), nil
}

// SendTemplate simulates a template send.
func (p *MockProvider) SendTemplate(ctx context.Context, to, name, language string) (string, error) {
	req := Request{Op: OpTemplate, To: to, Template: name, Language: language}
	if err := p.simulate(ctx, req); err != nil {
		return "", err
	}
	return p.messageID(), nil
}

// SendDocument simulates a document send.
func (p *MockProvider) SendDocument(ctx context.Context, to string, doc Document) (string, error) {
	req := Request{Op: OpDocument, To: to, Document: doc}
	if err := p.simulate(ctx, req); err != nil {
		return "", err
	}
	return p.messageID(), nil
}

// Requests returns a copy of every call made so far, in order.
func (p *MockProvider) Requests() []Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Request, len(p.requests))
	copy(out, p.requests)
	return out
}

// Count returns how many calls were made for op.
func (p *MockProvider) Count(op Op) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, r := range p.requests {
		if r.Op == op {
			n++
		}
	}
	return n
}

func (p *MockProvider) simulate(ctx context.Context, req Request) error {
	select {
	case <-ctx.Done():
		return &APIError{Op: req.Op, Err: ctx.Err()}
	default:
	}

	p.mu.Lock()
	p.requests = append(p.requests, req)
	p.mu.Unlock()

	if p.latency > 0 {
		timer := time.NewTimer(p.latency)
		select {
		case <-ctx.Done():
			timer.Stop()
			return &APIError{Op: req.Op, Err: ctx.Err()}
		case <-timer.C:
		}
	}

	scenario := p.scenarioFor(req)
	p.logger.Debug().
		Str("op", string(req.Op)).
		Str("to", logger.Phone(p.logger, req.To)).
		Str("scenario", string(scenario)).
		Msg("mock provider call")

	switch scenario {
	case ScenarioSuccess:
		return nil
	case ScenarioTransient:
		return statusError(req.Op, http.StatusTooManyRequests,
			`{"error":{"message":"mock: rate limited","type":"OAuthException","code":130429}}`)
	case ScenarioPermanent:
		return statusError(req.Op, http.StatusBadRequest,
			`{"error":{"message":"mock: invalid recipient","type":"OAuthException","code":131026}}`)
	case ScenarioTimeout:
		return transportError(req.Op, fmt.Errorf("mock: %w", context.DeadlineExceeded))
	default:
		return &APIError{Op: req.Op, Err: errors.New("mock: unknown scenario " + string(scenario))}
	}
}

func (p *MockProvider) scenarioFor(req Request) Scenario {
	if s, ok := p.recipientScenarios[scenarioKey{op: req.Op, to: req.To}]; ok {
		return s
	}
	if s, ok := p.opScenarios[req.Op]; ok {
		return s
	}
	return p.defaultScenario
}

func (p *MockProvider) nextSeq() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	return p.seq
}

func (p *MockProvider) messageID() string {
	return fmt.Sprintf("wamid.mock-%d", p.nextSeq())
}
