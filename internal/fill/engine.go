// Package fill runs one fill request end to end: extract the profile text
// once, then sign and match every slot and aggregate the confidence.
package fill

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hurttlocker/slotfill/internal/confidence"
	"github.com/hurttlocker/slotfill/internal/extract"
	"github.com/hurttlocker/slotfill/internal/match"
	"github.com/hurttlocker/slotfill/internal/model"
	"github.com/hurttlocker/slotfill/internal/patterns"
	"github.com/hurttlocker/slotfill/internal/signature"
)

// DefaultWorkers bounds per-slot matching concurrency.
const DefaultWorkers = 4

// Options configures an Engine.
type Options struct {
	Extract extract.Config
	Match   match.Config
	Workers int
	Logger  *slog.Logger

	// Signatures, when set, memoizes slot signatures across requests.
	Signatures *signature.Cache
}

// DefaultOptions returns the default extraction and matching settings.
func DefaultOptions() Options {
	return Options{
		Extract: extract.DefaultConfig(),
		Match:   match.DefaultConfig(),
		Workers: DefaultWorkers,
	}
}

// Rejection is a slot skipped because its descriptor was invalid.
type Rejection struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// Result is the outcome of one fill request. Assignments and Unmatched keep
// the order of the input slots.
type Result struct {
	RequestID   string                 `json:"request_id"`
	Values      []model.ExtractedValue `json:"values"`
	Assignments []model.Assignment     `json:"assignments"`
	Unmatched   []string               `json:"unmatched"`
	Rejected    []Rejection            `json:"rejected,omitempty"`
	Confidence  float64                `json:"confidence"`
}

// Engine ties a library, extractor and matcher together. Safe for concurrent
// use.
type Engine struct {
	lib       *patterns.Library
	extractor *extract.Extractor
	matcher   *match.Matcher
	workers   int
	logger    *slog.Logger
	sigs      *signature.Cache
}

// New creates an Engine over lib.
func New(lib *patterns.Library, opts Options) *Engine {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		lib:       lib,
		extractor: extract.New(lib, opts.Extract),
		matcher:   match.New(lib, opts.Match),
		workers:   opts.Workers,
		logger:    opts.Logger,
		sigs:      opts.Signatures,
	}
}

// Library returns the engine's pattern library.
func (e *Engine) Library() *patterns.Library { return e.lib }

// Extract runs extraction only.
func (e *Engine) Extract(text string) extract.Result {
	return e.extractor.Extract(text)
}

// Signature builds (or fetches from the cache) the signature of slot.
func (e *Engine) Signature(slot model.SlotDescriptor) model.SlotSignature {
	if e.sigs != nil {
		return e.sigs.Build(slot)
	}
	return signature.Build(slot)
}

type slotOutcome struct {
	assignment model.Assignment
	matched    bool
	err        error
}

// Fill extracts text once and matches every slot against the result. Invalid
// slots are skipped and reported in Rejected; slots with no candidate above
// the threshold are listed in Unmatched. Only cancellation of ctx fails the
// request.
func (e *Engine) Fill(ctx context.Context, text string, slots []model.SlotDescriptor) (*Result, error) {
	values := e.extractor.Extract(text)
	outcomes := make([]slotOutcome, len(slots))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := range slots {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			slot := slots[i]
			if err := signature.Validate(slot); err != nil {
				outcomes[i].err = err
				return nil
			}
			a, ok := e.matcher.Match(slot, e.Signature(slot), values)
			outcomes[i] = slotOutcome{assignment: a, matched: ok}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{
		RequestID:   uuid.NewString(),
		Values:      values.Ordered(e.lib),
		Assignments: []model.Assignment{},
		Unmatched:   []string{},
	}
	for i, o := range outcomes {
		switch {
		case o.err != nil:
			e.logger.Warn("slot rejected", "request_id", res.RequestID, "index", i, "err", o.err)
			res.Rejected = append(res.Rejected, Rejection{Index: i, Reason: o.err.Error()})
		case o.matched:
			res.Assignments = append(res.Assignments, o.assignment)
		default:
			res.Unmatched = append(res.Unmatched, slots[i].Key())
		}
	}
	res.Confidence = confidence.Overall(res.Assignments)

	e.logger.Debug("fill complete",
		"request_id", res.RequestID,
		"values", len(res.Values),
		"assignments", len(res.Assignments),
		"unmatched", len(res.Unmatched),
		"rejected", len(res.Rejected))
	return res, nil
}

// Explain returns the scoring breakdown of one slot against text.
func (e *Engine) Explain(text string, slot model.SlotDescriptor) (model.SlotSignature, []match.Candidate, error) {
	if err := signature.Validate(slot); err != nil {
		return model.SlotSignature{}, nil, err
	}
	sig := e.Signature(slot)
	return sig, e.matcher.Explain(slot, sig, e.extractor.Extract(text)), nil
}

// ErrNoEngine is returned by a Holder that was never given an engine.
var ErrNoEngine = errors.New("no engine loaded")

// Holder publishes the current Engine so a pattern reload can swap it while
// requests are in flight.
type Holder struct {
	p atomic.Pointer[Engine]
}

// NewHolder creates a holder publishing e.
func NewHolder(e *Engine) *Holder {
	h := &Holder{}
	h.p.Store(e)
	return h
}

// Load returns the current engine.
func (h *Holder) Load() (*Engine, error) {
	e := h.p.Load()
	if e == nil {
		return nil, ErrNoEngine
	}
	return e, nil
}

// Swap publishes e and returns the previous engine.
func (h *Holder) Swap(e *Engine) *Engine {
	return h.p.Swap(e)
}
