// Package simulator runs an in-process Modbus TCP device with changing
// register values, so the demo pipelines have something to poll.
package simulator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/simonvetter/modbus"

	"github.com/kbukum/plcstream/component"
	"github.com/kbukum/plcstream/errors"
	"github.com/kbukum/plcstream/logger"
)

// Config configures the simulated device.
type Config struct {
	URL        string        `yaml:"url" mapstructure:"url" validate:"required"`
	Size       int           `yaml:"size" mapstructure:"size" validate:"gte=0,lte=65536"`
	MaxClients uint          `yaml:"max_clients" mapstructure:"max_clients"`
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout"`
	// Tick is how often register values change; zero freezes them.
	Tick time.Duration `yaml:"tick" mapstructure:"tick"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.URL == "" {
		c.URL = "tcp://127.0.0.1:502"
	}
	if c.Size <= 0 {
		c.Size = 64
	}
	if c.MaxClients == 0 {
		c.MaxClients = 8
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
}

// Simulator is a Modbus TCP server backed by a MemoryMap.
type Simulator struct {
	cfg    Config
	mem    *MemoryMap
	log    *logger.Logger
	server *modbus.ModbusServer

	mu      sync.Mutex
	running bool
	step    uint64
	cancel  context.CancelFunc
	done    chan struct{}
}

var _ component.Component = (*Simulator)(nil)

// New returns a stopped simulator with seeded registers.
func New(cfg Config, log *logger.Logger) *Simulator {
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.Get("simulator")
	}
	s := &Simulator{cfg: cfg, mem: NewMemoryMap(cfg.Size), log: log}
	s.Step()
	return s
}

// Memory exposes the register store.
func (s *Simulator) Memory() *MemoryMap { return s.mem }

// Name implements component.Component.
func (s *Simulator) Name() string { return "simulator" }

// Start listens on the configured URL and starts mutating registers.
func (s *Simulator) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	server, err := modbus.NewServer(&modbus.ServerConfiguration{
		URL:        s.cfg.URL,
		Timeout:    s.cfg.Timeout,
		MaxClients: s.cfg.MaxClients,
	}, s.mem)
	if err != nil {
		return errors.InvalidAddress(s.cfg.URL, "cannot create server").WithCause(err)
	}
	if err := server.Start(); err != nil {
		return errors.ConnectionFailed(s.cfg.URL, err)
	}
	s.server = server
	s.running = true

	if s.cfg.Tick > 0 {
		runCtx, cancel := context.WithCancel(context.Background())
		s.cancel = cancel
		s.done = make(chan struct{})
		go s.mutate(runCtx, s.done)
	}

	s.log.Info("Simulator listening", map[string]interface{}{
		"url":  s.cfg.URL,
		"size": s.cfg.Size,
		"tick": s.cfg.Tick.String(),
	})
	return nil
}

// Stop stops mutation and closes the server.
func (s *Simulator) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	if s.cancel != nil {
		s.cancel()
		<-s.done
		s.cancel = nil
	}
	s.running = false
	return s.server.Stop()
}

// Health reports whether the server is running.
func (s *Simulator) Health(context.Context) component.Health {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return component.Health{Name: s.Name(), Status: component.StatusUnhealthy, Message: "stopped"}
	}
	return component.Health{Name: s.Name(), Status: component.StatusHealthy}
}

// Describe implements component.Describable.
func (s *Simulator) Describe() component.Description {
	return component.Description{
		Type:    "simulator",
		Details: fmt.Sprintf("%s size=%d tick=%s", s.cfg.URL, s.cfg.Size, s.cfg.Tick),
	}
}

func (s *Simulator) mutate(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Step()
		}
	}
}

// Step advances the register pattern by one tick. Holding registers
// sweep 40..80 so that values fall both inside and outside [50, 60];
// coils toggle in a rotating pattern, discrete inputs mirror the coils
// inverted, and input registers count up.
func (s *Simulator) Step() {
	s.mem.update(func(coils, discrete []bool, holding, input []uint16) {
		step := s.step
		s.step++
		for i := range holding {
			holding[i] = uint16(40 + (step*7+uint64(i)*13)%41)
		}
		for i := range coils {
			coils[i] = (step+uint64(i))%3 == 0
		}
		for i := range discrete {
			discrete[i] = (step+uint64(i))%3 != 0
		}
		for i := range input {
			input[i] = uint16(step + uint64(i))
		}
	})
}
