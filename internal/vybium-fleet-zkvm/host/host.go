// Package host is the proving host. It assembles the guest environment from
// an input bundle, runs the guest, and seals the result into a receipt.
//
// A Host is safe for concurrent use. Every run owns its VM state, bundle
// copies and trace; nothing mutable is shared between runs.
package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/core"
	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/guest"
	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/log"
	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/metrics"
	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/protocols"
	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/random"
	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/receipt"
	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/utils"
	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/vm"
)

// Host proves guest runs
type Host struct {
	cfg      *utils.Config
	signer   protocols.Signer
	registry *guest.Registry
	rand     random.Source
	log      *log.Logger
	metrics  *metrics.Metrics
	backend  Backend
	sleep    func(ctx context.Context, d time.Duration) error
}

// Option configures a Host
type Option func(*Host)

// WithRegistry sets the module registry used to link images
func WithRegistry(r *guest.Registry) Option {
	return func(h *Host) { h.registry = r }
}

// WithRandom sets the nonce source
func WithRandom(src random.Source) Option {
	return func(h *Host) { h.rand = src }
}

// WithLogger sets the logger
func WithLogger(l *log.Logger) Option {
	return func(h *Host) { h.log = l }
}

// WithMetrics enables instrumentation
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Host) { h.metrics = m }
}

// WithBackend replaces the sealing backend
func WithBackend(b Backend) Option {
	return func(h *Host) { h.backend = b }
}

// New creates a proving host that seals with signer
func New(cfg *utils.Config, signer protocols.Signer, opts ...Option) (*Host, error) {
	if cfg == nil {
		cfg = utils.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if signer == nil {
		return nil, utils.NewError(utils.ErrInvalidConfig, nil, "host requires a seal signer")
	}
	if signer.Scheme().String() != cfg.SealScheme {
		return nil, utils.NewError(utils.ErrInvalidConfig, nil,
			"signer scheme %s does not match configured %s", signer.Scheme(), cfg.SealScheme)
	}

	h := &Host{
		cfg:    cfg.Clone(),
		signer: signer,
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.registry == nil {
		h.registry = guest.DefaultRegistry()
	}
	if h.rand == nil {
		h.rand = random.System()
	}
	if h.log == nil {
		h.log = log.Default()
	}
	h.log = h.log.Module("host")
	if h.backend == nil {
		h.backend = NewTraceBackend(signer, h.cfg.TranscriptHash)
	}
	return h, nil
}

// Config returns a copy of the host configuration
func (h *Host) Config() *utils.Config {
	return h.cfg.Clone()
}

// KeyID identifies the seal signing key
func (h *Host) KeyID() core.Digest {
	return h.signer.KeyID()
}

// Prove runs img on bundle and returns a receipt of the completed run.
//
// A guest abort returns a GuestAbort error and is not retried. Backend
// failures return ProvingFailure after MaxRetries further attempts with the
// same bundle. A deadline from the config or ctx returns Timeout. No
// receipt is produced on any error.
func (h *Host) Prove(ctx context.Context, img *guest.Image, bundle *Bundle) (*receipt.Receipt, error) {
	rc, _, err := h.ProveWithAudit(ctx, img, bundle)
	return rc, err
}

// ProveWithAudit is Prove that also returns the audit record of the sealed
// run. The record is secret; see Audit.
func (h *Host) ProveWithAudit(ctx context.Context, img *guest.Image, bundle *Bundle) (*receipt.Receipt, *AuditRecord, error) {
	start := time.Now()
	rc, rec, cycles, err := h.prove(ctx, img, bundle)
	name := ""
	if img != nil {
		name = img.Name
	}
	h.metrics.ObserveProof(name, cycles, time.Since(start), err)
	return rc, rec, err
}

func (h *Host) prove(ctx context.Context, img *guest.Image, bundle *Bundle) (*receipt.Receipt, *AuditRecord, uint64, error) {
	modules, err := h.link(img)
	if err != nil {
		return nil, nil, 0, err
	}
	if bundle == nil {
		return nil, nil, 0, utils.NewError(utils.ErrInvalidInput, nil, "nil input bundle")
	}

	id := img.ID()
	session, err := h.rand.SessionID()
	if err != nil {
		return nil, nil, 0, utils.NewError(utils.ErrProvingFailure, err, "session id")
	}
	logger := h.log.With("session", session.String(), "image", img.Name, "image_id", id.Hex())

	ctx, cancel := h.withTimeout(ctx)
	defer cancel()
	defer h.metrics.Track()()

	digest := bundle.Digest()
	for attempt := 0; ; attempt++ {
		if !bundle.intact() || bundle.Digest() != digest {
			return nil, nil, 0, utils.NewError(utils.ErrInvalidInput, nil, "input bundle changed between attempts")
		}

		h.metrics.Attempt()
		rc, rec, cycles, err := h.attempt(ctx, img, id, modules, bundle)
		if err == nil {
			logger.Info("proved", "attempt", attempt, "cycles", cycles, "journal_bytes", len(rc.Journal))
			return rc, rec, cycles, nil
		}
		if !utils.Retryable(err) || attempt >= h.cfg.MaxRetries {
			logger.Warn("proving failed", "attempt", attempt, "code", utils.CodeOf(err).String(), "error", err)
			return nil, nil, 0, err
		}

		backoff := h.cfg.RetryBackoff << attempt
		logger.Debug("retrying", "attempt", attempt, "backoff", backoff, "error", err)
		h.metrics.Retry()
		if err := h.sleep(ctx, backoff); err != nil {
			return nil, nil, 0, contextError(err, "waiting to retry")
		}
	}
}

// attempt is one execute-and-seal pass with a fresh nonce and trace secret
func (h *Host) attempt(ctx context.Context, img *guest.Image, id core.Digest, modules []vm.Module, bundle *Bundle) (*receipt.Receipt, *AuditRecord, uint64, error) {
	nonce, err := h.rand.Nonce()
	if err != nil {
		return nil, nil, 0, utils.NewError(utils.ErrProvingFailure, err, "draw nonce")
	}
	rec := &AuditRecord{}
	if _, err := io.ReadFull(h.rand, rec.TraceSecret[:]); err != nil {
		return nil, nil, 0, utils.NewError(utils.ErrProvingFailure, err, "draw trace secret")
	}
	traceKey, err := rec.traceKey()
	if err != nil {
		return nil, nil, 0, utils.NewError(utils.ErrProvingFailure, err, "trace key")
	}

	session, err := h.run(ctx, img, modules, bundle, traceKey)
	if err != nil {
		return nil, nil, 0, err
	}

	root, err := core.DigestFromBytes(session.Trace.Root)
	if err != nil {
		return nil, nil, 0, utils.NewError(utils.ErrProvingFailure, err, "trace root")
	}
	claim := protocols.NewClaim(id, session.Journal).
		WithExecution(session.ExitCode, session.Cycles, root).
		WithNonce(nonce)

	proof, err := h.backend.Seal(ctx, claim, session)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, 0, contextError(ctx.Err(), "sealing")
		}
		if utils.CodeOf(err) != utils.ErrUnknown {
			return nil, nil, 0, err
		}
		return nil, nil, 0, utils.NewError(utils.ErrProvingFailure, err, "seal %s", img.Name)
	}
	return receipt.New(id, session.Journal, proof), rec, session.Cycles, nil
}

func (h *Host) run(ctx context.Context, img *guest.Image, modules []vm.Module, bundle *Bundle, traceKey [32]byte) (*vm.Session, error) {
	env := vm.Environment{
		Public:        bundle.Public(),
		Private:       bundle.Private(),
		Modules:       modules,
		MaxCycles:     h.cfg.MaxCycles,
		CheckInterval: h.cfg.CheckInterval,
		TraceKey:      traceKey,
	}
	session, err := vm.NewVMState(img.Program, env).Run(ctx)
	if err == nil {
		return session, nil
	}

	var abort *vm.AbortError
	switch {
	case errors.As(err, &abort):
		return nil, utils.NewError(utils.ErrGuestAbort, err, "guest %s aborted: %s", img.Name, abort.Reason)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return nil, contextError(err, "executing "+img.Name)
	default:
		return nil, utils.NewError(utils.ErrProvingFailure, err, "execute %s", img.Name)
	}
}

// Execution summarizes a dry run
type Execution struct {
	ImageID      core.Digest
	Journal      []byte
	ExitCode     uint64
	Cycles       uint64
	PaddedHeight int
}

// Execute runs img on bundle without sealing. Errors follow Prove, except
// that nothing is retried.
func (h *Host) Execute(ctx context.Context, img *guest.Image, bundle *Bundle) (*Execution, error) {
	modules, err := h.link(img)
	if err != nil {
		return nil, err
	}
	if bundle == nil {
		return nil, utils.NewError(utils.ErrInvalidInput, nil, "nil input bundle")
	}
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	session, err := h.run(ctx, img, modules, bundle, [32]byte{})
	if err != nil {
		return nil, err
	}
	return &Execution{
		ImageID:      img.ID(),
		Journal:      session.Journal,
		ExitCode:     session.ExitCode,
		Cycles:       session.Cycles,
		PaddedHeight: session.PaddedHeight,
	}, nil
}

// Job is one entry of a proving batch
type Job struct {
	Image  *guest.Image
	Bundle *Bundle
}

// Outcome is the result of one batch job
type Outcome struct {
	Receipt *receipt.Receipt
	Err     error
}

// ProveBatch proves independent jobs on at most Config.Workers goroutines.
// Outcomes are returned in job order; one failed job does not stop others.
func (h *Host) ProveBatch(ctx context.Context, jobs []Job) []Outcome {
	out := make([]Outcome, len(jobs))
	var g errgroup.Group
	g.SetLimit(h.cfg.Workers)
	for i, job := range jobs {
		g.Go(func() error {
			rc, err := h.Prove(ctx, job.Image, job.Bundle)
			out[i] = Outcome{Receipt: rc, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (h *Host) link(img *guest.Image) ([]vm.Module, error) {
	if img == nil {
		return nil, utils.NewError(utils.ErrImageLoad, nil, "nil guest image")
	}
	if err := img.Validate(); err != nil {
		return nil, utils.NewError(utils.ErrImageLoad, err, "invalid guest image")
	}
	return h.registry.Resolve(img)
}

func (h *Host) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.cfg.Timeout > 0 {
		return context.WithTimeout(ctx, h.cfg.Timeout)
	}
	return context.WithCancel(ctx)
}

// contextError maps cancellation and deadlines to a Timeout error that
// still matches the context error with errors.Is
func contextError(err error, during string) error {
	return utils.NewError(utils.ErrTimeout, err, "run aborted while %s", during)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// String describes the host for logs
func (h *Host) String() string {
	return fmt.Sprintf("host{key=%s %s}", h.signer.KeyID().Hex()[:16], h.cfg)
}
