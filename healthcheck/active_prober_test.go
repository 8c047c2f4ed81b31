package healthcheck

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/skipper-proxy/proxycore/circuit"
	"github.com/skipper-proxy/proxycore/clock"
	"github.com/skipper-proxy/proxycore/logging/loggingtest"
	"github.com/skipper-proxy/proxycore/registry"
)

type stubRequestFactory struct {
	failFor map[registry.DestinationID]error
}

func (f stubRequestFactory) Create(cluster *registry.Cluster, d *registry.Destination) (*http.Request, error) {
	if err, ok := f.failFor[d.ID]; ok {
		return nil, err
	}
	return http.NewRequest(http.MethodGet, "http://"+string(d.ID)+"/healthz", nil)
}

type stubProbeClient struct {
	status map[string]int
}

func (c stubProbeClient) Do(req *http.Request) (*http.Response, error) {
	status := c.status[req.URL.Host]
	if status == 0 {
		status = 200
	}
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(""))}, nil
}

func newProbeCluster(id string) *registry.Cluster {
	c := clock.NewManual(0)
	return registry.NewCluster(registry.ClusterID(id), registry.ClusterConfig{
		DetectionWindow:             10 * time.Second,
		MinimalTotalCount:           10,
		ReactivationPeriod:          time.Minute,
		ConsecutiveFailureThreshold: 3,
		HalfOpenRequests:            1,
		BreakerTimeout:              time.Hour,
	}, c)
}

func TestActiveProberIsolatesPerDestinationFailures(t *testing.T) {
	cluster := newProbeCluster("c1")
	d1 := cluster.AddDestination("d1", "http://d1")
	d2 := cluster.AddDestination("d2", "http://d2")
	d3 := cluster.AddDestination("d3", "http://d3")

	factory := stubRequestFactory{failFor: map[registry.DestinationID]error{d2.ID: errors.New("probe construction failed")}}
	client := stubProbeClient{}

	prober := NewActiveProber(factory, client, circuit.NewActivePolicyRegistry(circuit.NewConsecutiveFailuresActivePolicy()), time.Second)
	updater := NewHealthUpdater()
	updater.afterFunc = func(d time.Duration, f func()) timerHandle { return &manualTimerHandle{fire: f} }

	if err := prober.ProbeCluster(context.Background(), cluster, updater); err != nil {
		t.Fatalf("a single destination's probe-construction failure should not abort the batch: %v", err)
	}

	if d1.Health() == circuit.Unhealthy {
		t.Fatal("d1 should not be affected by d2's failure")
	}
	if d3.Health() == circuit.Unhealthy {
		t.Fatal("d3 should not be affected by d2's failure")
	}
}

func TestActiveProberUnknownPolicyIsFatalForBatch(t *testing.T) {
	cluster := newProbeCluster("c1")
	cluster.SetConfig(registry.ClusterConfig{ActivePolicy: "DoesNotExist"})
	cluster.AddDestination("d1", "http://d1")

	factory := stubRequestFactory{}
	client := stubProbeClient{}

	prober := NewActiveProber(factory, client, circuit.NewActivePolicyRegistry(circuit.NewConsecutiveFailuresActivePolicy()), time.Second)
	updater := NewHealthUpdater()

	if err := prober.ProbeCluster(context.Background(), cluster, updater); err == nil {
		t.Fatal("expected an unknown active policy name to fail the batch")
	}
}

func TestActiveProberDisposesEveryResponse(t *testing.T) {
	cluster := newProbeCluster("c1")
	cluster.AddDestination("d1", "http://d1")
	cluster.AddDestination("d2", "http://d2")

	var closed []string
	factory := stubRequestFactory{}
	client := trackingProbeClient{closed: &closed}

	prober := NewActiveProber(factory, client, circuit.NewActivePolicyRegistry(circuit.NewConsecutiveFailuresActivePolicy()), time.Second)
	updater := NewHealthUpdater()
	updater.afterFunc = func(d time.Duration, f func()) timerHandle { return &manualTimerHandle{fire: f} }

	if err := prober.ProbeCluster(context.Background(), cluster, updater); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(closed) != 2 {
		t.Fatalf("expected both responses to be disposed, got %d", len(closed))
	}
}

type panicOnSecondEvaluatePolicy struct {
	calls int
}

func (p *panicOnSecondEvaluatePolicy) Name() circuit.PolicyName { return circuit.ConsecutiveFailuresPolicy }

func (p *panicOnSecondEvaluatePolicy) Evaluate(state *circuit.ActiveState, outcome circuit.ProbeOutcome, settings circuit.Settings) circuit.Verdict {
	p.calls++
	if p.calls == 2 {
		panic("boom")
	}
	return circuit.HealthyVerdict
}

func TestActiveProberDisposesEveryResponseEvenWhenPolicyPanics(t *testing.T) {
	cluster := newProbeCluster("c1")
	cluster.AddDestination("d1", "http://d1")
	cluster.AddDestination("d2", "http://d2")
	cluster.AddDestination("d3", "http://d3")

	var closed []string
	factory := stubRequestFactory{}
	client := trackingProbeClient{closed: &closed}

	prober := NewActiveProber(factory, client, circuit.NewActivePolicyRegistry(&panicOnSecondEvaluatePolicy{}), time.Second)
	updater := NewHealthUpdater()

	if err := prober.ProbeCluster(context.Background(), cluster, updater); err == nil {
		t.Fatal("expected the panicking policy to fail the batch")
	}

	if len(closed) != 3 {
		t.Fatalf("expected every response to be disposed despite the panic, got %d", len(closed))
	}
}

type trackingBody struct {
	io.Reader
	host   string
	closed *[]string
}

func (b trackingBody) Close() error {
	*b.closed = append(*b.closed, b.host)
	return nil
}

type trackingProbeClient struct {
	closed *[]string
}

func (c trackingProbeClient) Do(req *http.Request) (*http.Response, error) {
	return &http.Response{StatusCode: 200, Body: trackingBody{Reader: strings.NewReader(""), host: req.URL.Host, closed: c.closed}}, nil
}

func TestActiveProberLogsEachProbeCompletion(t *testing.T) {
	cluster := newProbeCluster("c1")
	cluster.AddDestination("d1", "http://d1")

	factory := stubRequestFactory{}
	client := stubProbeClient{}

	prober := NewActiveProber(factory, client, circuit.NewActivePolicyRegistry(circuit.NewConsecutiveFailuresActivePolicy()), time.Second)
	lt := loggingtest.New()
	defer lt.Close()
	prober.Logger = lt

	updater := NewHealthUpdater()
	updater.afterFunc = func(d time.Duration, f func()) timerHandle { return &manualTimerHandle{fire: f} }

	if err := prober.ProbeCluster(context.Background(), cluster, updater); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := lt.WaitFor("destination probing completed", time.Second); err != nil {
		t.Fatalf("expected a probe completion line to be logged: %v", err)
	}
}
