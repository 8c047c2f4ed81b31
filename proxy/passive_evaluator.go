package proxy

import (
	"github.com/skipper-proxy/proxycore/circuit"
	"github.com/skipper-proxy/proxycore/healthcheck"
	"github.com/skipper-proxy/proxycore/registry"
)

// PassiveEvaluator turns one completed forwarded request into a health
// verdict for the destination it hit. It is invoked by the pipeline
// after Forward returns, never by Forward itself — the hot path stays
// minimal, and the evaluator only needs what the context already
// recorded.
type PassiveEvaluator struct {
	policies *circuit.PassivePolicyRegistry
}

// NewPassiveEvaluator builds an evaluator dispatching through policies.
func NewPassiveEvaluator(policies *circuit.PassivePolicyRegistry) *PassiveEvaluator {
	return &PassiveEvaluator{policies: policies}
}

// RequestProxied feeds ctx's outcome into the proxied destination's
// sliding counter, counting it as a failure only if the error feature
// implicates the destination, and applies an Unhealthy verdict via
// updater. requestCanceled reports whether the
// inbound request's own cancellation token had already fired by the time
// the outcome was classified — a canceled request is never counted
// against the destination, however its ForwarderError is classified. The
// caller is responsible for reading that token state (typically
// ctx.Request().Context().Err() != nil) and passing it in; RequestProxied
// itself never inspects the request context.
func (p *PassiveEvaluator) RequestProxied(ctx *ProxyContext, updater *healthcheck.HealthUpdater, requestCanceled bool) {
	destination := ctx.ProxiedDestination()
	if destination == nil {
		return
	}

	cluster := ctx.Cluster().Cluster

	if ttl := cluster.Config().IdleTTL; ttl > 0 {
		destination.EvictIfIdle(ttl)
	}

	failed := false
	if !requestCanceled {
		if feature := ctx.ErrorFeature(); feature != nil {
			failed = feature.Error.IsDestinationFailure()
		}
	}

	settings := passiveSettingsFor(cluster)
	policy, ok := p.policies.GetOrDefault(cluster.Config().PassivePolicy)
	if !ok {
		return
	}

	verdict := policy.Evaluate(destination.Counter(), circuit.ProbeOutcome{Failed: failed}, settings)
	if verdict.Health == circuit.Unhealthy {
		updater.SetPassive(cluster, destination, verdict)
	}
}

func passiveSettingsFor(cluster *registry.Cluster) circuit.Settings {
	cfg := cluster.Config()
	return circuit.Settings{
		RateLimit:          cluster.FailureRateThreshold(),
		DetectionWindow:    cfg.DetectionWindow,
		MinimalTotalCount:  cfg.MinimalTotalCount,
		ReactivationPeriod: cfg.ReactivationPeriod,
	}
}
