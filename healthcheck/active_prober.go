package healthcheck

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/skipper-proxy/proxycore/circuit"
	"github.com/skipper-proxy/proxycore/clock"
	"github.com/skipper-proxy/proxycore/logging"
	"github.com/skipper-proxy/proxycore/registry"
)

// ProbeRequestFactory builds the synthetic request sent to a destination
// during active health checking.
type ProbeRequestFactory interface {
	Create(cluster *registry.Cluster, destination *registry.Destination) (*http.Request, error)
}

// ActiveHTTPClient is the collaborator that sends a probe request. A
// plain *http.Client already satisfies this.
type ActiveHTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// DestinationProbingResult is one destination's outcome within a probe
// batch. Exactly one of Response and Err is meaningfully set, mirroring
// a request that either completed or didn't.
type DestinationProbingResult struct {
	Destination *registry.Destination
	Response    *http.Response
	Err         error
}

// ActiveProber issues synthetic probe requests to every destination in a
// cluster on each scheduled tick and hands the batch to the cluster's
// active policy.
type ActiveProber struct {
	requestFactory ProbeRequestFactory
	client         ActiveHTTPClient
	policies       *circuit.ActivePolicyRegistry
	defaultTimeout time.Duration

	// Logger receives per-probe debug/info lines. Defaults to a plain
	// logrus-backed logging.DefaultLog; an integrator embedding this
	// prober in a larger process can swap it for one that attaches
	// request-scoped fields.
	Logger logging.Logger
}

// NewActiveProber builds a prober. defaultTimeout is used for clusters
// that do not configure their own active timeout.
func NewActiveProber(factory ProbeRequestFactory, client ActiveHTTPClient, policies *circuit.ActivePolicyRegistry, defaultTimeout time.Duration) *ActiveProber {
	return &ActiveProber{
		requestFactory: factory,
		client:         client,
		policies:       policies,
		defaultTimeout: defaultTimeout,
		Logger:         logging.New(),
	}
}

// ProbeCluster probes every destination in cluster, feeds the batch to
// the cluster's configured active policy, and applies the resulting
// verdicts via updater. A per-destination probe failure never aborts the
// batch; an unknown policy name does, since the cluster cannot be
// silently left unprobed under a name nobody registered.
func (p *ActiveProber) ProbeCluster(ctx context.Context, cluster *registry.Cluster, updater *HealthUpdater) error {
	destinations := cluster.Destinations()
	if len(destinations) == 0 {
		return nil
	}

	cfg := cluster.Config()
	timeout := cfg.ActiveTimeout
	if timeout <= 0 {
		timeout = p.defaultTimeout
	}

	results := make([]DestinationProbingResult, len(destinations))

	var g errgroup.Group
	for i, d := range destinations {
		i, d := i, d
		g.Go(func() error {
			results[i] = p.probeOne(ctx, cluster, d, timeout)
			return nil
		})
	}
	_ = g.Wait() // goroutines above never return a non-nil error; isolation is per-result, not per-batch

	policy, ok := p.policies.GetOrDefault(cfg.ActivePolicy)
	if !ok {
		for _, r := range results {
			disposeResponse(r.Response)
		}
		return fmt.Errorf("active health probing failed on cluster %s: unknown active policy %q", cluster.ID, cfg.ActivePolicy)
	}

	verdicts, err := p.evaluateAll(policy, results, cfg)
	if err != nil {
		return fmt.Errorf("active health probing failed on cluster %s: %w", cluster.ID, err)
	}

	updater.SetActive(cluster, verdicts)
	return nil
}

func (p *ActiveProber) probeOne(ctx context.Context, cluster *registry.Cluster, d *registry.Destination, timeout time.Duration) DestinationProbingResult {
	req, err := p.requestFactory.Create(cluster, d)
	if err != nil {
		return DestinationProbingResult{Destination: d, Err: err}
	}

	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	log := logging.WithDestination(logging.WithCluster(p.Logger, string(cluster.ID)), string(d.ID))
	log.Debugf("sending health probe to %s of destination %s", d.Address, d.ID)

	sw := clock.NewStopWatch()
	sw.Start()
	resp, err := p.client.Do(req.WithContext(probeCtx))
	sw.Stop()
	if err != nil {
		return DestinationProbingResult{Destination: d, Err: err}
	}

	log.Infof("destination probing completed for %s status %d in %s", d.ID, resp.StatusCode, sw.Elapsed())
	return DestinationProbingResult{Destination: d, Response: resp}
}

// evaluateAll dispatches every result through policy and disposes every
// response exactly once, even if the policy panics partway through the
// batch: disposal is a single deferred loop over the whole batch rather
// than per-iteration, so a panic on result k cannot strand the bodies of
// results k+1..n.
func (p *ActiveProber) evaluateAll(policy circuit.ActivePolicy, results []DestinationProbingResult, cfg registry.ClusterConfig) ([]ActiveVerdict, error) {
	defer func() {
		for _, r := range results {
			disposeResponse(r.Response)
		}
	}()

	verdicts := make([]ActiveVerdict, 0, len(results))
	var panicErr error

	func() {
		defer func() {
			if r := recover(); r != nil {
				panicErr = fmt.Errorf("active policy panicked: %v", r)
			}
		}()

		settings := circuit.Settings{
			Failures:           cfg.ConsecutiveFailureThreshold,
			HalfOpenRequests:   cfg.HalfOpenRequests,
			Timeout:            cfg.BreakerTimeout,
			ReactivationPeriod: cfg.ReactivationPeriod,
			DetectionWindow:    cfg.DetectionWindow,
		}

		for _, r := range results {
			failed := r.Err != nil || (r.Response != nil && r.Response.StatusCode >= http.StatusInternalServerError)
			verdict := policy.Evaluate(r.Destination.ActiveState(), circuit.ProbeOutcome{Failed: failed}, settings)
			verdicts = append(verdicts, ActiveVerdict{Destination: r.Destination, Verdict: verdict})
		}
	}()

	if panicErr != nil {
		return nil, panicErr
	}
	return verdicts, nil
}

func disposeResponse(resp *http.Response) {
	if resp == nil {
		return
	}
	resp.Body.Close()
}
