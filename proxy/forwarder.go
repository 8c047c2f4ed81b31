package proxy

import (
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/skipper-proxy/proxycore/clock"
	"github.com/skipper-proxy/proxycore/logging"
)

// ForwarderOptions configures the one behavior the forwarding core
// leaves open: whether picking randomly among multiple surviving
// candidates should also emit a warning, per spec's open question on
// the random multi-candidate safety net.
type ForwarderOptions struct {
	RNGFactory RNGFactory

	// DisableMultiCandidateWarning silences the "more than one
	// destination available" warning while still picking randomly.
	// The safety net itself is never disabled.
	DisableMultiCandidateWarning bool
}

// Forwarder is the terminal request handler: it selects one destination
// from ctx's candidate set, tracks concurrency around the call, and
// invokes the cluster's HTTP client.
type Forwarder struct {
	opts ForwarderOptions
}

// NewForwarder builds a Forwarder. A nil RNGFactory in opts is replaced
// with the production default.
func NewForwarder(opts ForwarderOptions) *Forwarder {
	if opts.RNGFactory == nil {
		opts.RNGFactory = NewDefaultRNGFactory()
	}
	return &Forwarder{opts: opts}
}

// Forward runs the selection-and-send algorithm. It never returns an
// error for a destination/transport failure — those are reported through
// ctx.ErrorFeature so the caller can still run PassiveEvaluator
// afterwards. It does return an error for pipeline misconfiguration,
// which is fatal and never attributed to a destination.
func (f *Forwarder) Forward(ctx *ProxyContext) error {
	clusterID := ""
	if ctx.Cluster() != nil && ctx.Cluster().Cluster != nil {
		clusterID = string(ctx.Cluster().Cluster.ID)
	}

	if ctx.AvailableDestinations() == nil {
		return &PipelineError{Reason: "availableDestinations is unset; upstream selection stages did not run"}
	}

	candidates := ctx.AvailableDestinations()
	if len(candidates) == 0 {
		log.Warnf("request %s: no available destinations after load balancing for cluster %s", ctx.RequestID(), clusterID)
		setErrorResponse(ctx, 503, &ForwarderErrorFeature{Error: ErrNoAvailableDestinations})
		finishSpan(ctx.Span(), ctx.RouteID(), clusterID, "", ctx.ErrorFeature())
		return nil
	}

	destination := candidates[0]
	if len(candidates) > 1 {
		rng := f.opts.RNGFactory.Create()
		destination = candidates[rng.Intn(len(candidates))]
		if !f.opts.DisableMultiCandidateWarning {
			log.Warnf("request %s: more than one destination available for cluster %s; choosing randomly", ctx.RequestID(), clusterID)
		}
	}

	ctx.setProxiedDestination(destination)

	cluster := ctx.Cluster().Cluster
	cluster.IncConcurrency()
	destination.IncConcurrency()
	defer destination.DecConcurrency()
	defer cluster.DecConcurrency()

	req := ctx.Request()
	if ctx.Cluster().Transformer != nil {
		req = ctx.Cluster().Transformer(req, destination)
	}

	requestTime := time.Now()
	sw := clock.NewStopWatch()
	sw.Start()
	resp, errFeature := ctx.Cluster().HTTPClient.Send(req, destination)
	sw.Stop()

	if errFeature == nil {
		errFeature = &ForwarderErrorFeature{Error: ErrNone}
	}
	ctx.SetErrorFeature(errFeature)
	if resp != nil {
		ctx.SetResponse(resp)
	}

	logging.LogAccess(&logging.AccessEntry{
		Request:       ctx.Request(),
		StatusCode:    statusOf(resp),
		ResponseSize:  sizeOf(resp),
		Duration:      sw.Elapsed(),
		RequestTime:   requestTime,
		ClusterID:     clusterID,
		DestinationID: string(destination.ID),
		RequestID:     ctx.RequestID(),
	})

	finishSpan(ctx.Span(), ctx.RouteID(), clusterID, string(destination.ID), errFeature)
	return nil
}

func statusOf(resp *http.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}

func sizeOf(resp *http.Response) int64 {
	if resp == nil {
		return 0
	}
	return resp.ContentLength
}

func setErrorResponse(ctx *ProxyContext, status int, feature *ForwarderErrorFeature) {
	ctx.SetErrorFeature(feature)
	ctx.SetResponse(defaultErrorResponse(ctx.Request(), status))
}
