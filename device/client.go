package device

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/simonvetter/modbus"

	"github.com/kbukum/plcstream/component"
	"github.com/kbukum/plcstream/errors"
	"github.com/kbukum/plcstream/logger"
	"github.com/kbukum/plcstream/provider"
	"github.com/kbukum/plcstream/resilience"
)

// Client reads from a register-addressed device.
type Client interface {
	// ReadBools reads a coil or discrete-input range, e.g. "coil:0[3]".
	ReadBools(ctx context.Context, spec string) ([]bool, error)
	// Read reads every item of req in one exchange with the device.
	Read(ctx context.Context, req *ReadRequest) (*ReadResponse, error)
	Close() error
}

// Config configures a ModbusClient.
type Config struct {
	Descriptor string        `yaml:"descriptor" mapstructure:"descriptor" validate:"required"`
	UnitID     uint8         `yaml:"unit_id" mapstructure:"unit_id"`
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout"`
	// Resilience guards reads made through NewReader. A circuit breaker
	// with default settings is used when none is configured.
	Resilience provider.ResilienceConfig `yaml:"resilience" mapstructure:"resilience"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.UnitID == 0 {
		c.UnitID = 1
	}
	if c.Timeout <= 0 {
		c.Timeout = time.Second
	}
	if c.Resilience.CircuitBreaker == nil {
		breaker := resilience.DefaultCircuitBreakerConfig("")
		c.Resilience.CircuitBreaker = &breaker
	}
}

// transport is the subset of *modbus.ModbusClient the client uses.
type transport interface {
	Open() error
	Close() error
	SetUnitId(id uint8) error
	ReadCoils(addr, quantity uint16) ([]bool, error)
	ReadDiscreteInputs(addr, quantity uint16) ([]bool, error)
	ReadRegisters(addr, quantity uint16, regType modbus.RegType) ([]uint16, error)
}

// ModbusClient is a Client over one Modbus connection. Requests are
// serialised: at most one is in flight at any time.
type ModbusClient struct {
	cfg  Config
	desc Descriptor
	log  *logger.Logger
	dial func() (transport, error)

	mu      sync.Mutex
	conn    transport
	lastErr error
}

var (
	_ Client              = (*ModbusClient)(nil)
	_ component.Component = (*ModbusClient)(nil)
)

// NewModbusClient validates cfg and returns an unconnected client.
func NewModbusClient(cfg Config, log *logger.Logger) (*ModbusClient, error) {
	cfg.ApplyDefaults()
	desc, err := ParseDescriptor(cfg.Descriptor)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Get("device")
	}

	c := &ModbusClient{
		cfg:  cfg,
		desc: desc,
		log:  log.WithFields(map[string]interface{}{logger.FieldDevice: desc.String()}),
	}
	c.dial = func() (transport, error) {
		mc, err := modbus.NewClient(&modbus.ClientConfiguration{
			URL:     desc.URL(),
			Timeout: cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return mc, nil
	}
	return c, nil
}

// Descriptor returns the parsed connection descriptor.
func (c *ModbusClient) Descriptor() Descriptor { return c.desc }

// Name implements component.Component.
func (c *ModbusClient) Name() string { return "device:" + c.desc.String() }

// Start opens the connection.
func (c *ModbusClient) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked()
}

// Stop closes the connection.
func (c *ModbusClient) Stop(ctx context.Context) error {
	return c.Close()
}

// Close closes the connection if open. A later read reopens it.
func (c *ModbusClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

// Health reports the connection state. A failed last request degrades
// an open connection.
func (c *ModbusClient) Health(ctx context.Context) component.Health {
	c.mu.Lock()
	connected, lastErr := c.conn != nil, c.lastErr
	c.mu.Unlock()

	h := component.Health{Name: c.Name(), Status: component.StatusHealthy}
	switch {
	case !connected:
		h.Status = component.StatusUnhealthy
		h.Message = "not connected"
	case lastErr != nil:
		h.Status = component.StatusDegraded
		h.Message = "last request failed"
	}
	if lastErr != nil {
		h.Message += ": " + lastErr.Error()
	}
	return h
}

// Describe implements component.Describable.
func (c *ModbusClient) Describe() component.Description {
	return component.Description{
		Type:    "device",
		Details: fmt.Sprintf("%s unit=%d timeout=%s", c.desc.URL(), c.cfg.UnitID, c.cfg.Timeout),
	}
}

// ReadBools reads a coil or discrete-input range.
func (c *ModbusClient) ReadBools(ctx context.Context, spec string) ([]bool, error) {
	addr, err := ParseAddress(spec)
	if err != nil {
		return nil, err
	}
	if !addr.Class.IsBit() {
		return nil, errors.InvalidAddress(spec, "boolean reads need a coil or discrete class")
	}

	var out []bool
	err = c.exchange(ctx, spec, func(conn transport) error {
		var readErr error
		out, readErr = readBits(conn, addr)
		return readErr
	})
	return out, err
}

// Read reads every item of req while holding the connection.
func (c *ModbusClient) Read(ctx context.Context, req *ReadRequest) (*ReadResponse, error) {
	resp := NewReadResponse(req)
	err := c.exchange(ctx, "", func(conn transport) error {
		for _, it := range req.items {
			if err := ctx.Err(); err != nil {
				return err
			}
			if it.Address.Class.IsBit() {
				bits, err := readBits(conn, it.Address)
				if err != nil {
					return wrapItem(err, it)
				}
				resp.PutBools(it.Name, bits)
				continue
			}
			regType := modbus.HOLDING_REGISTER
			if it.Address.Class == InputRegister {
				regType = modbus.INPUT_REGISTER
			}
			regs, err := conn.ReadRegisters(it.Address.Start, it.Address.Count, regType)
			if err != nil {
				return wrapItem(err, it)
			}
			resp.PutRegisters(it.Name, regs)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	resp.Time = time.Now()
	return resp, nil
}

type itemError struct {
	item Item
	err  error
}

func (e *itemError) Error() string {
	return e.item.Name + " " + e.item.Address.String() + ": " + e.err.Error()
}
func (e *itemError) Unwrap() error { return e.err }

func wrapItem(err error, it Item) error { return &itemError{item: it, err: err} }

func readBits(conn transport, addr Address) ([]bool, error) {
	if addr.Class == DiscreteInput {
		return conn.ReadDiscreteInputs(addr.Start, addr.Count)
	}
	return conn.ReadCoils(addr.Start, addr.Count)
}

// exchange runs fn on the open connection under the request lock,
// translating transport errors into AppErrors.
func (c *ModbusClient) exchange(ctx context.Context, spec string, fn func(transport) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.connectLocked()
	if err == nil {
		if err = fn(c.conn); err != nil {
			err = c.classify(err, spec)
		}
	}
	c.lastErr = err
	if err != nil && errors.IsCode(err, errors.ErrCodeConnectionFailed) {
		// Drop the broken link; the next request reconnects.
		_ = c.closeLocked()
	}
	return err
}

func (c *ModbusClient) connectLocked() error {
	if c.conn != nil {
		return nil
	}
	conn, err := c.dial()
	if err != nil {
		return errors.ConnectionFailed(c.desc.String(), err)
	}
	if err := conn.SetUnitId(c.cfg.UnitID); err != nil {
		return errors.ConnectionFailed(c.desc.String(), err)
	}
	if err := conn.Open(); err != nil {
		return errors.ConnectionFailed(c.desc.String(), err)
	}
	c.conn = conn
	c.log.Info("Device connected", map[string]interface{}{"unit_id": c.cfg.UnitID})
	return nil
}

func (c *ModbusClient) closeLocked() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// classify maps Modbus library errors to AppErrors.
func (c *ModbusClient) classify(err error, spec string) error {
	var ie *itemError
	if stderrors.As(err, &ie) {
		spec = ie.item.Address.String()
	}
	switch {
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		return err
	case stderrors.Is(err, modbus.ErrRequestTimedOut):
		return errors.Timeout("read "+spec).WithCause(err).WithDetail(logger.FieldDevice, c.desc.String())
	case stderrors.Is(err, modbus.ErrIllegalDataAddress), stderrors.Is(err, modbus.ErrIllegalFunction):
		return errors.InvalidAddress(spec, "rejected by device").WithCause(err)
	default:
		return errors.ConnectionFailed(c.desc.String(), err).WithDetail(logger.FieldAddress, spec)
	}
}
