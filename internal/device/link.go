// Package device talks to the inverter over Modbus TCP. Each operation opens
// its own connection, performs a single read or write, and closes it again.
package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"battery_scheduler/internal/codec"
	"battery_scheduler/internal/logger"
	"battery_scheduler/internal/models"

	"github.com/goburrow/modbus"
)

// Defaults for a Huawei SUN2000 with a LUNA2000 battery.
const (
	DefaultPort        = 502
	DefaultUnitID      = 1
	DefaultTimeout     = 10 * time.Second
	DefaultTOURegister = 47255
	DefaultSOCRegister = 37760

	socScale = 10.0 // register unit is 0.1 %
)

var (
	errFrameLength = fmt.Errorf("device returned a frame that is not %d registers", codec.FrameWidth)
	errEmptySOC    = errors.New("device returned no state-of-charge value")
)

// Config locates the inverter and its time-of-use register block.
type Config struct {
	Host        string
	Port        int
	UnitID      byte
	Timeout     time.Duration
	TOURegister uint16
	SOCRegister uint16
}

// Addr is the host:port dial address.
func (c Config) Addr() string {
	port := c.Port
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

// dialFunc opens one Modbus session; the returned Closer ends it.
type dialFunc func(ctx context.Context, cfg Config) (modbus.Client, io.Closer, error)

// Link performs single-shot register reads and writes against the inverter.
type Link struct {
	cfg  Config
	dial dialFunc
	log  *logger.Logger
}

// NewLink returns a Link dialing the inverter over TCP.
func NewLink(cfg Config, log *logger.Logger) *Link {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.TOURegister == 0 {
		cfg.TOURegister = DefaultTOURegister
	}
	if cfg.SOCRegister == 0 {
		cfg.SOCRegister = DefaultSOCRegister
	}
	return &Link{cfg: cfg, dial: dialTCP, log: log}
}

func dialTCP(ctx context.Context, cfg Config) (modbus.Client, io.Closer, error) {
	handler := modbus.NewTCPClientHandler(cfg.Addr())
	handler.SlaveId = cfg.UnitID
	handler.Timeout = boundedTimeout(ctx, cfg.Timeout)

	if err := handler.Connect(); err != nil {
		return nil, nil, err
	}
	return modbus.NewClient(handler), handler, nil
}

// boundedTimeout shortens the per-request timeout to the context deadline.
func boundedTimeout(ctx context.Context, timeout time.Duration) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left > 0 && left < timeout {
			return left
		}
	}
	return timeout
}

// withSession runs fn on a fresh connection and always closes it.
func (l *Link) withSession(ctx context.Context, fn func(modbus.Client) error) error {
	if err := ctx.Err(); err != nil {
		return &ConnectError{Addr: l.cfg.Addr(), Err: err}
	}
	client, closer, err := l.dial(ctx, l.cfg)
	if err != nil {
		return &ConnectError{Addr: l.cfg.Addr(), Err: err}
	}
	defer func() {
		if cerr := closer.Close(); cerr != nil && l.log != nil {
			l.log.Warnw("modbus_close_failed", "addr", l.cfg.Addr(), "err", cerr)
		}
	}()
	return fn(client)
}

// ReadSchedule reads and decodes the full time-of-use frame.
func (l *Link) ReadSchedule(ctx context.Context) (models.Schedule, error) {
	var sched models.Schedule
	err := l.withSession(ctx, func(c modbus.Client) error {
		payload, err := c.ReadHoldingRegisters(l.cfg.TOURegister, codec.FrameWidth)
		if err != nil {
			return &ReadError{Op: "tou schedule", Err: err}
		}
		words, err := codec.WordsFromBytes(payload)
		if err != nil {
			return &ReadError{Op: "tou schedule", Err: err}
		}
		if len(words) != codec.FrameWidth {
			return &ReadError{Op: "tou schedule", Err: fmt.Errorf("%w: got %d", errFrameLength, len(words))}
		}
		decoded, err := codec.Decode(words)
		if err != nil {
			return &ReadError{Op: "tou schedule", Err: err}
		}
		sched = decoded
		return nil
	})
	if err != nil {
		return models.Schedule{}, err
	}
	if l.log != nil {
		l.log.Debugw("tou_schedule_read", "addr", l.cfg.Addr(), "periods", sched.NumPeriods)
	}
	return sched, nil
}

// WriteSchedule transmits an encoded schedule frame.
func (l *Link) WriteSchedule(ctx context.Context, sched models.Schedule) error {
	if len(sched.Raw) != codec.FrameWidth {
		return &WriteError{Op: "tou schedule", Err: fmt.Errorf("%w: got %d", errFrameLength, len(sched.Raw))}
	}
	err := l.withSession(ctx, func(c modbus.Client) error {
		if _, err := c.WriteMultipleRegisters(l.cfg.TOURegister, codec.FrameWidth, codec.BytesFromWords(sched.Raw)); err != nil {
			return &WriteError{Op: "tou schedule", Err: err}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if l.log != nil {
		l.log.Infow("tou_schedule_written", "addr", l.cfg.Addr(), "periods", sched.NumPeriods)
	}
	return nil
}

// ReadSOC returns the battery state of charge in percent.
func (l *Link) ReadSOC(ctx context.Context) (float64, error) {
	var soc float64
	err := l.withSession(ctx, func(c modbus.Client) error {
		payload, err := c.ReadHoldingRegisters(l.cfg.SOCRegister, 1)
		if err != nil {
			return &ReadError{Op: "state of charge", Err: err}
		}
		words, err := codec.WordsFromBytes(payload)
		if err != nil {
			return &ReadError{Op: "state of charge", Err: err}
		}
		if len(words) == 0 {
			return &ReadError{Op: "state of charge", Err: errEmptySOC}
		}
		soc = float64(words[0]) / socScale
		return nil
	})
	return soc, err
}
