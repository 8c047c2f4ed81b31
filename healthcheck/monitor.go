package healthcheck

import (
	"context"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/skipper-proxy/proxycore/registry"
)

// ActiveHealthCheckMonitor wires cluster lifecycle notifications into the
// Scheduler and runs the one-time initial probe sweep that gates the
// scheduler's first fire.
type ActiveHealthCheckMonitor struct {
	scheduler *Scheduler
	prober    *ActiveProber
	updater   *HealthUpdater

	defaultInterval time.Duration

	initialProbeCompleted atomic.Bool
}

// NewActiveHealthCheckMonitor builds a monitor driving scheduler and
// prober through updater.
func NewActiveHealthCheckMonitor(scheduler *Scheduler, prober *ActiveProber, updater *HealthUpdater, defaultInterval time.Duration) *ActiveHealthCheckMonitor {
	return &ActiveHealthCheckMonitor{
		scheduler:       scheduler,
		prober:          prober,
		updater:         updater,
		defaultInterval: defaultInterval,
	}
}

// OnClusterAdded schedules active probing for cluster if it is active-
// enabled.
func (m *ActiveHealthCheckMonitor) OnClusterAdded(cluster *registry.Cluster) {
	cfg := cluster.Config()
	if !cfg.ActiveEnabled {
		return
	}
	m.scheduler.Schedule(string(cluster.ID), m.interval(cfg), func() { m.probe(cluster) })
	log.Infof("starting active health probing on cluster %s", cluster.ID)
}

// OnClusterChanged re-applies cluster's active-check settings: a period
// change if still enabled, or unscheduling if active checking was turned
// off.
func (m *ActiveHealthCheckMonitor) OnClusterChanged(cluster *registry.Cluster) {
	cfg := cluster.Config()
	if cfg.ActiveEnabled {
		m.scheduler.ChangePeriod(string(cluster.ID), m.interval(cfg))
	} else {
		m.scheduler.Unschedule(string(cluster.ID))
		log.Infof("stopped active health probing on cluster %s", cluster.ID)
	}
}

// OnClusterRemoved stops active probing for a removed cluster.
func (m *ActiveHealthCheckMonitor) OnClusterRemoved(id registry.ClusterID) {
	m.scheduler.Unschedule(string(id))
}

func (m *ActiveHealthCheckMonitor) interval(cfg registry.ClusterConfig) time.Duration {
	if cfg.ActiveInterval > 0 {
		return cfg.ActiveInterval
	}
	return m.defaultInterval
}

func (m *ActiveHealthCheckMonitor) probe(cluster *registry.Cluster) {
	if err := m.prober.ProbeCluster(context.Background(), cluster, m.updater); err != nil {
		log.Errorf("active health probing failed on cluster %s: %v", cluster.ID, err)
	}
}

// CheckHealthAll runs one synchronous probe sweep across every active-
// enabled cluster, then starts the scheduler and sets the
// InitialProbeCompleted latch — unconditionally, even if a probe failed,
// so a single misbehaving cluster never blocks the scheduler from
// starting for every other cluster.
func (m *ActiveHealthCheckMonitor) CheckHealthAll(clusters []*registry.Cluster) {
	defer func() {
		m.scheduler.Start()
		m.initialProbeCompleted.Store(true)
	}()

	var g errgroup.Group
	for _, c := range clusters {
		c := c
		if !c.Config().ActiveEnabled {
			continue
		}
		g.Go(func() error {
			m.probe(c)
			return nil
		})
	}
	_ = g.Wait()
}

// InitialProbeCompleted reports whether the initial synchronous probe
// sweep has finished.
func (m *ActiveHealthCheckMonitor) InitialProbeCompleted() bool {
	return m.initialProbeCompleted.Load()
}
