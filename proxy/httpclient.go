package proxy

import (
	"net/http"

	"github.com/skipper-proxy/proxycore/registry"
)

// RequestTransformer rewrites the inbound request into the outgoing
// request sent to destination, e.g. setting the outgoing host and
// scheme. The route's own transform step runs upstream of this core; the
// transformer here is whatever that step produced.
type RequestTransformer func(r *http.Request, destination *registry.Destination) *http.Request

// HTTPClient is the external collaborator that actually sends bytes. The
// core only specifies what it calls into, never the client's own
// transport, pooling, or timeout internals.
type HTTPClient interface {
	// Send issues req against destination and returns either a
	// response or a ForwarderErrorFeature describing why it could not.
	// Exactly one of the two return values is non-nil.
	Send(req *http.Request, destination *registry.Destination) (*http.Response, *ForwarderErrorFeature)
}

// ClusterHandle bundles a cluster's registry handle with the HTTP client
// and request transformer the Forwarder needs to actually reach its
// destinations. It is the context's view of "cluster config snapshot"
// from the pipeline's perspective.
type ClusterHandle struct {
	Cluster     *registry.Cluster
	HTTPClient  HTTPClient
	Transformer RequestTransformer
}
