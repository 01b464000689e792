package provision

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tnqbao/gau-compute-dispatcher/config"
	"github.com/tnqbao/gau-compute-dispatcher/entity"
)

const (
	WorkerNameTag = "dispatch-worker"

	maxClientTokenLen = 64
)

// ComputeAPI submits a launch request and returns the accepted instance.
type ComputeAPI interface {
	RunInstance(ctx context.Context, req entity.LaunchRequest) (entity.InstanceHandle, error)
}

// LaunchGuard is an optional per-job launch marker. Claim returns false when a
// launch for jobID was already claimed.
type LaunchGuard interface {
	Claim(ctx context.Context, jobID string) (bool, error)
	Release(ctx context.Context, jobID string) error
}

type Logger interface {
	InfoWithContextf(ctx context.Context, format string, args ...interface{})
	WarningWithContextf(ctx context.Context, format string, args ...interface{})
	ErrorWithContextf(ctx context.Context, err error, format string, args ...interface{})
}

type Provisioner struct {
	cfg       config.ProvisionerConfig
	resolver  *Resolver
	generator *Generator
	compute   ComputeAPI
	guard     LaunchGuard
	logger    Logger
	metrics   *Metrics
	tracer    trace.Tracer
}

type Option func(*Provisioner)

func WithLaunchGuard(guard LaunchGuard) Option {
	return func(p *Provisioner) { p.guard = guard }
}

func WithMetrics(m *Metrics) Option {
	return func(p *Provisioner) { p.metrics = m }
}

func NewProvisioner(cfg config.ProvisionerConfig, catalog ImageCatalog, compute ComputeAPI, logger Logger, opts ...Option) (*Provisioner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid provisioner config: %w", err)
	}
	if catalog == nil || compute == nil || logger == nil {
		return nil, fmt.Errorf("catalog, compute and logger cannot be nil")
	}
	generator, err := NewGenerator(cfg.ScriptRepoLocator)
	if err != nil {
		return nil, err
	}

	p := &Provisioner{
		cfg:       cfg,
		resolver:  NewResolver(catalog),
		generator: generator,
		compute:   compute,
		logger:    logger,
		tracer:    otel.Tracer("github.com/tnqbao/gau-compute-dispatcher/provision"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// OnJobCreated provisions one worker for a newly created job record. Any
// failure before the launch call leaves no side effects. A failed launch is
// returned as ErrProvisioningFailure and is not retried here.
func (p *Provisioner) OnJobCreated(ctx context.Context, record entity.JobRecord) error {
	ctx, span := p.tracer.Start(ctx, "provision.OnJobCreated",
		trace.WithAttributes(attribute.String("job.id", record.ID)))
	defer span.End()

	err := p.provision(ctx, record)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (p *Provisioner) provision(ctx context.Context, record entity.JobRecord) error {
	if err := record.Validate(); err != nil {
		p.metrics.observe(outcomeMalformed)
		p.logger.ErrorWithContextf(ctx, err, "[Provisioner] Dropping job with invalid record: %v", err)
		return err
	}

	// Stricter than a plain marker strip: a reference without ".Input" never
	// came through the upload flow, so it is dropped before the catalog call.
	canonical, err := CanonicalArtifactLocator(record.ArtifactReference)
	if err != nil {
		p.metrics.observe(outcomeMalformed)
		p.logger.ErrorWithContextf(ctx, err, "[Provisioner] Job %s has an unusable artifact reference %q", record.ID, record.ArtifactReference)
		return err
	}

	if p.guard != nil {
		claimed, err := p.guard.Claim(ctx, record.ID)
		if err != nil {
			// A broken marker store must not stop dispatch; duplicates are tolerated.
			p.logger.WarningWithContextf(ctx, "[Provisioner] Launch marker unavailable for job %s, continuing: %v", record.ID, err)
		} else if !claimed {
			p.metrics.observe(outcomeDuplicate)
			p.logger.InfoWithContextf(ctx, "[Provisioner] Job %s already dispatched, skipping redelivery", record.ID)
			return nil
		}
	}

	handle, err := p.launch(ctx, record, canonical)
	if err != nil {
		p.releaseGuard(ctx, record.ID)
		return err
	}

	p.metrics.observe(outcomeLaunched)
	p.logger.InfoWithContextf(ctx, "[Provisioner] Launched instance %s from image %s for job %s", handle.InstanceID, handle.ImageID, record.ID)
	return nil
}

func (p *Provisioner) launch(ctx context.Context, record entity.JobRecord, canonical string) (entity.InstanceHandle, error) {
	image, err := p.resolveImage(ctx)
	if err != nil {
		p.metrics.observe(outcomeNoImage)
		p.logger.ErrorWithContextf(ctx, err, "[Provisioner] Image resolution failed for job %s: %v", record.ID, err)
		return entity.InstanceHandle{}, err
	}

	script, err := p.generator.Render(record.ID, record.TextInput, canonical, p.cfg.ResultTableLocator)
	if err != nil {
		p.metrics.observe(outcomeRenderFailed)
		p.logger.ErrorWithContextf(ctx, err, "[Provisioner] Refusing to render bootstrap script for job %s: %v", record.ID, err)
		return entity.InstanceHandle{}, err
	}

	req := BuildLaunchRequest(p.cfg, record.ID, image.ID, script)

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.CallTimeout)
	defer cancel()

	start := time.Now()
	handle, err := p.compute.RunInstance(callCtx, req)
	if p.metrics != nil {
		p.metrics.LaunchSeconds.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		err = fmt.Errorf("%w: %w", entity.ErrProvisioningFailure, err)
		p.metrics.observe(outcomeLaunchFailed)
		p.logger.ErrorWithContextf(ctx, err, "[Provisioner] Launch request for job %s failed: %v", record.ID, err)
		return entity.InstanceHandle{}, err
	}
	if handle.ImageID == "" {
		handle.ImageID = image.ID
	}
	return handle, nil
}

func (p *Provisioner) resolveImage(ctx context.Context) (entity.ImageCandidate, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.cfg.CallTimeout)
	defer cancel()

	start := time.Now()
	image, err := p.resolver.Resolve(callCtx, p.cfg.MatchCriteria)
	if p.metrics != nil {
		p.metrics.ResolveSeconds.Observe(time.Since(start).Seconds())
	}
	return image, err
}

func (p *Provisioner) releaseGuard(ctx context.Context, jobID string) {
	if p.guard == nil {
		return
	}
	// Release on a fresh context so a timed-out job still frees its marker.
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := p.guard.Release(releaseCtx, jobID); err != nil {
		p.logger.WarningWithContextf(ctx, "[Provisioner] Failed to release launch marker for job %s: %v", jobID, err)
	}
}

// BuildLaunchRequest assembles the single-instance launch for a job.
func BuildLaunchRequest(cfg config.ProvisionerConfig, jobID, imageID, script string) entity.LaunchRequest {
	groups := make([]string, len(cfg.SecurityBinding.SecurityGroupIDs))
	copy(groups, cfg.SecurityBinding.SecurityGroupIDs)

	return entity.LaunchRequest{
		ImageID:          imageID,
		InstanceSize:     cfg.InstanceSize,
		BootstrapPayload: base64.StdEncoding.EncodeToString([]byte(script)),
		Placement:        cfg.NetworkPlacement,
		Security: entity.SecurityBinding{
			SecurityGroupIDs: groups,
			InstanceProfile:  cfg.SecurityBinding.InstanceProfile,
			KeyName:          cfg.SecurityBinding.KeyName,
		},
		Count:       1,
		ClientToken: ClientToken(jobID),
		Tags: map[string]string{
			"Name":  WorkerNameTag,
			"JobID": jobID,
		},
	}
}

// ClientToken derives the launch idempotency token from the job id, so the
// compute API collapses repeated launches of the same job within its window.
func ClientToken(jobID string) string {
	sum := sha256.Sum256([]byte(jobID))
	token := "job-" + hex.EncodeToString(sum[:])
	if len(token) > maxClientTokenLen {
		token = token[:maxClientTokenLen]
	}
	return token
}
