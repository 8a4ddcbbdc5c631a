package printer

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Monitor polls for printers being attached and detached
type Monitor struct {
	detector Detector
	interval time.Duration
	log      *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	mu               sync.Mutex
	previous         map[string]*Printer
	onPrinterAdded   func(*Printer)
	onPrinterRemoved func(*Printer)
	onCount          func(int)
}

// NewMonitor creates a printer monitor
func NewMonitor(detector Detector, interval time.Duration, logger *zap.Logger) *Monitor {
	ctx, cancel := context.WithCancel(context.Background())
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Monitor{
		detector: detector,
		interval: interval,
		log:      logger,
		ctx:      ctx,
		cancel:   cancel,
		previous: make(map[string]*Printer),
	}
}

// OnPrinterAdded sets a callback for when a printer is attached
func (m *Monitor) OnPrinterAdded(callback func(*Printer)) {
	m.mu.Lock()
	m.onPrinterAdded = callback
	m.mu.Unlock()
}

// OnPrinterRemoved sets a callback for when a printer is detached
func (m *Monitor) OnPrinterRemoved(callback func(*Printer)) {
	m.mu.Lock()
	m.onPrinterRemoved = callback
	m.mu.Unlock()
}

// OnCount sets a callback receiving the attached printer count after each poll
func (m *Monitor) OnCount(callback func(int)) {
	m.mu.Lock()
	m.onCount = callback
	m.mu.Unlock()
}

// Start begins polling
func (m *Monitor) Start() {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		m.checkChanges()
		for {
			select {
			case <-m.ctx.Done():
				return
			case <-ticker.C:
				m.checkChanges()
			}
		}
	}()
}

// Stop stops polling and waits for the poller to exit
func (m *Monitor) Stop() {
	m.cancel()
	m.wg.Wait()
}

// Printers returns the printers seen by the last poll
func (m *Monitor) Printers() []*Printer {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]*Printer, 0, len(m.previous))
	for _, p := range m.previous {
		printerCopy := *p
		result = append(result, &printerCopy)
	}
	return result
}

func (m *Monitor) checkChanges() {
	current, err := m.detector.Detect()
	if err != nil {
		m.log.Warn("printer detection failed", zap.Error(err))
		return
	}

	currentMap := make(map[string]*Printer, len(current))
	for _, p := range current {
		currentMap[p.ID] = p
	}

	m.mu.Lock()
	var added, removed []*Printer
	for id, p := range currentMap {
		if _, exists := m.previous[id]; !exists {
			added = append(added, p)
		}
	}
	for id, p := range m.previous {
		if _, exists := currentMap[id]; !exists {
			removed = append(removed, p)
		}
	}
	m.previous = currentMap
	onAdded, onRemoved, onCount := m.onPrinterAdded, m.onPrinterRemoved, m.onCount
	m.mu.Unlock()

	for _, p := range added {
		m.log.Info("printer attached", zap.String("id", p.ID), zap.String("description", p.Description))
		if onAdded != nil {
			onAdded(p)
		}
	}
	for _, p := range removed {
		m.log.Info("printer detached", zap.String("id", p.ID), zap.String("description", p.Description))
		if onRemoved != nil {
			onRemoved(p)
		}
	}
	if onCount != nil {
		onCount(len(currentMap))
	}
}
