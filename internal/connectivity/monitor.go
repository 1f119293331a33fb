package connectivity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sendqueue/internal/events"

	"github.com/sirupsen/logrus"
)

// SyncTrigger is invoked on each offline-to-online transition.
type SyncTrigger func(ctx context.Context)

// Monitor tracks online/offline state by polling a Probe and raises
// edge-triggered transition events: exactly one online/offline event per
// observed transition, nothing on re-confirmation of the same state.
type Monitor struct {
	probe         Probe
	bus           *events.Bus
	logger        *logrus.Logger
	checkInterval time.Duration
	probeTimeout  time.Duration
	trigger       SyncTrigger

	mu      sync.RWMutex
	online  bool
	running bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewMonitor(probe Probe, bus *events.Bus, logger *logrus.Logger, checkInterval, probeTimeout time.Duration) *Monitor {
	return &Monitor{
		probe:         probe,
		bus:           bus,
		logger:        logger,
		checkInterval: checkInterval,
		probeTimeout:  probeTimeout,
	}
}

// SetSyncTrigger registers the callback invoked when connectivity returns.
// Must be called before Start.
func (m *Monitor) SetSyncTrigger(trigger SyncTrigger) {
	m.trigger = trigger
}

// Online returns the last observed connectivity state.
func (m *Monitor) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// Start initializes the state from the probe and begins the polling loop.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("connectivity monitor is already running")
	}

	m.ctx, m.cancel = context.WithCancel(ctx)
	m.online = m.check(m.ctx)
	m.running = true
	initial := m.online
	m.mu.Unlock()

	m.logger.WithFields(logrus.Fields{
		"interval": m.checkInterval,
		"online":   initial,
	}).Info("Connectivity monitor started")

	m.wg.Add(1)
	go m.pollLoop()

	return nil
}

// Stop gracefully stops the polling loop.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.mu.Unlock()

	m.cancel()
	m.wg.Wait()
	m.logger.Info("Connectivity monitor stopped")
}

func (m *Monitor) pollLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.observe()
		}
	}
}

// observe performs one probe check and handles the state edge, if any.
func (m *Monitor) observe() {
	online := m.check(m.ctx)

	m.mu.Lock()
	if online == m.online {
		m.mu.Unlock()
		return
	}
	m.online = online
	m.mu.Unlock()

	if online {
		m.logger.Info("Connectivity restored")
		m.bus.Publish(events.Event{Type: events.TypeOnline})
		if m.trigger != nil {
			// Run the sync outside the poll loop so a long drain cannot
			// starve connectivity observation.
			go m.trigger(m.ctx)
		}
	} else {
		m.logger.Warn("Connectivity lost")
		m.bus.Publish(events.Event{Type: events.TypeOffline})
	}
}

func (m *Monitor) check(ctx context.Context) bool {
	checkCtx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()
	return m.probe.Check(checkCtx)
}
