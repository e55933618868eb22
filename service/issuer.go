package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/layer-3/fluxauth/core"
	"github.com/layer-3/fluxauth/ports"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	PhraseKindNormal    = "normal"
	PhraseKindEmergency = "emergency"
)

// Distress messages that indicate an actual attack rather than a
// connectivity problem.
var dosMessages = map[string]bool{
	"Flux IP detection failed": true,
	"Flux collision detection": true,
}

const maxDistressSeverity = 10

var gib = decimal.NewFromInt(1 << 30)

type hardwareRequirement struct {
	ramGiB decimal.Decimal
	cores  int
}

// Minimum resources per node tier. Unknown tiers have no requirement.
var hardwareRequirements = map[string]hardwareRequirement{
	"bamf":  {ramGiB: decimal.NewFromInt(31), cores: 8},
	"super": {ramGiB: decimal.NewFromInt(7), cores: 4},
	"basic": {ramGiB: decimal.NewFromInt(3), cores: 2},
}

// Gates are the health collaborators consulted before normal issuance.
type Gates struct {
	Runtime  ports.ContainerRuntime
	Hardware ports.Hardware
	Distress ports.DistressReporter
}

// Issuer creates and persists login phrases.
type Issuer struct {
	store   ports.PhraseStore
	gates   *Gates
	logger  *slog.Logger
	now     func() time.Time
	metrics ports.Metrics
}

// NewIssuer creates a phrase issuer. A nil gates value disables the health
// checks on normal issuance.
func NewIssuer(store ports.PhraseStore, gates *Gates, opts ...Option) *Issuer {
	o := buildOptions("issuer", opts)
	return &Issuer{
		store:   store,
		gates:   gates,
		logger:  o.logger,
		now:     o.now,
		metrics: o.metrics,
	}
}

// IssuePhrase runs the health gates, when enabled, and issues a phrase.
func (i *Issuer) IssuePhrase(ctx context.Context) (*core.LoginPhrase, error) {
	if i.gates != nil {
		if err := i.checkGates(ctx); err != nil {
			i.logger.WarnContext(ctx, "phrase issuance refused", "error", err)
			return nil, err
		}
	}
	return i.issue(ctx, PhraseKindNormal)
}

// IssueEmergencyPhrase issues a phrase without consulting any gate.
func (i *Issuer) IssueEmergencyPhrase(ctx context.Context) (*core.LoginPhrase, error) {
	return i.issue(ctx, PhraseKindEmergency)
}

func (i *Issuer) issue(ctx context.Context, kind string) (*core.LoginPhrase, error) {
	phrase, err := core.NewLoginPhrase(i.now())
	if err != nil {
		return nil, core.Storage(err)
	}
	if err := i.store.CreatePhrase(ctx, phrase); err != nil {
		i.logger.ErrorContext(ctx, "failed to store phrase", "error", err)
		return nil, core.Storage(err)
	}
	i.metrics.PhraseIssued(kind)
	i.logger.DebugContext(ctx, "phrase issued", "kind", kind, "expireAt", phrase.ExpireAt)
	return phrase, nil
}

// checkGates queries all collaborators concurrently and reports the first
// failure in the order runtime, hardware, distress.
func (i *Issuer) checkGates(ctx context.Context) error {
	var (
		g           errgroup.Group
		runtimeErr  error
		hardwareErr error
		state       ports.DistressState
		distressErr error
	)
	g.Go(func() error {
		runtimeErr = i.gates.Runtime.ListContainers(ctx)
		return nil
	})
	g.Go(func() error {
		hardwareErr = i.checkHardware(ctx)
		return nil
	})
	g.Go(func() error {
		state, distressErr = i.gates.Distress.DistressState(ctx)
		return nil
	})
	_ = g.Wait()

	if runtimeErr != nil {
		return core.Dependency(core.ReasonDockerUnavailable, runtimeErr)
	}
	if hardwareErr != nil {
		return core.Dependency(core.ReasonHardware, hardwareErr)
	}
	return distressError(state, distressErr)
}

func (i *Issuer) checkHardware(ctx context.Context) error {
	tier, err := i.gates.Hardware.NodeTier(ctx)
	if err != nil {
		// an unknown tier carries no requirement
		i.logger.WarnContext(ctx, "failed to resolve node tier", "error", err)
		return nil
	}
	req, ok := hardwareRequirements[tier]
	if !ok {
		return nil
	}

	total, err := i.gates.Hardware.TotalMemoryBytes(ctx)
	if err != nil {
		return err
	}
	cores, err := i.gates.Hardware.CPUCoreCount(ctx)
	if err != nil {
		return err
	}

	ram := decimal.NewFromInt(int64(total)).Div(gib)
	if ram.LessThan(req.ramGiB) {
		return fmt.Errorf("node total ram (%s GiB) below %s requirements", ram.StringFixed(2), tier)
	}
	if cores < req.cores {
		return fmt.Errorf("node cpu cores (%d) below %s requirements", cores, tier)
	}
	return nil
}

func distressError(state ports.DistressState, err error) error {
	if err != nil || !state.OK {
		return core.Dependency(core.ReasonDistressUnknown, err)
	}
	if !state.HardwareAdequate {
		return &core.Error{
			Kind:   core.KindDependency,
			Reason: core.ReasonHardwareFlagged,
			Name:   "DOS",
			Code:   100,
		}
	}
	if state.Severity > maxDistressSeverity || state.Message != nil {
		e := &core.Error{
			Kind:   core.KindDependency,
			Reason: "Node is in DOS state",
			Name:   "CONNERROR",
			Code:   state.Severity,
		}
		if state.Message != nil {
			e.Reason = *state.Message
			if dosMessages[*state.Message] {
				e.Name = "DOS"
			}
		}
		return e
	}
	return nil
}
