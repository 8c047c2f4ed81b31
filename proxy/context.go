package proxy

import (
	"bytes"
	"io"
	"net/http"

	"github.com/google/uuid"
	ot "github.com/opentracing/opentracing-go"

	"github.com/skipper-proxy/proxycore/registry"
)

func defaultBody() io.ReadCloser {
	return io.NopCloser(&bytes.Buffer{})
}

func defaultErrorResponse(r *http.Request, status int) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     make(http.Header),
		Body:       defaultBody(),
		Request:    r,
	}
}

// ProxyContext is the per-request handle the surrounding pipeline
// attaches before calling Forward, and that PassiveEvaluator reads
// afterwards. It plays the role skipper's filter context plays for a
// single filter chain invocation, trimmed to only what the forwarding
// and passive-health core needs.
type ProxyContext struct {
	request  *http.Request
	response *http.Response

	// requestID tags the warning lines a single Forward call logs and is
	// passed to its access log entry, without requiring a tracer to be
	// attached.
	requestID string

	routeID string
	cluster *ClusterHandle

	// availableDestinations is nil when the upstream pipeline did not
	// run at all (a pipeline misconfiguration), and non-nil-but-empty
	// when it ran and produced no eligible destination.
	availableDestinations []*registry.Destination
	proxiedDestination    *registry.Destination

	errorFeature *ForwarderErrorFeature

	span ot.Span

	stateBag map[string]interface{}
}

// NewProxyContext builds a context for one inbound request against one
// route. availableDestinations should be left nil (not assigned) when
// the candidate-selection stage never ran.
func NewProxyContext(r *http.Request, routeID string, cluster *ClusterHandle) *ProxyContext {
	return &ProxyContext{
		request:   r,
		requestID: uuid.NewString(),
		routeID:   routeID,
		cluster:   cluster,
		stateBag:  make(map[string]interface{}),
	}
}

func (c *ProxyContext) RequestID() string         { return c.requestID }
func (c *ProxyContext) Request() *http.Request   { return c.request }
func (c *ProxyContext) Response() *http.Response { return c.response }
func (c *ProxyContext) SetResponse(r *http.Response) {
	c.response = r
}

func (c *ProxyContext) RouteID() string          { return c.routeID }
func (c *ProxyContext) Cluster() *ClusterHandle  { return c.cluster }

// SetAvailableDestinations records the candidate set produced by the
// upstream load-balancing/affinity/health stages. Passing a nil slice is
// meaningful: it signals those stages never ran.
func (c *ProxyContext) SetAvailableDestinations(d []*registry.Destination) {
	c.availableDestinations = d
}

func (c *ProxyContext) AvailableDestinations() []*registry.Destination {
	return c.availableDestinations
}

func (c *ProxyContext) ProxiedDestination() *registry.Destination {
	return c.proxiedDestination
}

func (c *ProxyContext) setProxiedDestination(d *registry.Destination) {
	c.proxiedDestination = d
}

func (c *ProxyContext) ErrorFeature() *ForwarderErrorFeature {
	return c.errorFeature
}

func (c *ProxyContext) SetErrorFeature(f *ForwarderErrorFeature) {
	c.errorFeature = f
}

func (c *ProxyContext) Span() ot.Span       { return c.span }
func (c *ProxyContext) SetSpan(s ot.Span)   { c.span = s }

func (c *ProxyContext) StateBag() map[string]interface{} { return c.stateBag }
