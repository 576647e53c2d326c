package instrument

import (
	"time"

	"github.com/goburrow/serial"
	"golang.org/x/text/encoding"

	"github.com/thinkgos/goinstrument/vxi11"
)

// Option communicator option for user.
type Option func(c *Communicator)

// WithLogProvider set logger provider.
func WithLogProvider(provider LogProvider) Option {
	return func(c *Communicator) {
		c.SetLogProvider(provider)
	}
}

// WithDebug enable logging of every command and response.
func WithDebug() Option {
	return func(c *Communicator) {
		c.LogMode(true)
	}
}

// WithEncoding set the text encoding used by Read and Write, default UTF-8.
func WithEncoding(enc encoding.Encoding) Option {
	return func(c *Communicator) {
		if enc != nil {
			c.encoding = enc
		}
	}
}

// SerialOption serial transport option.
type SerialOption func(t *SerialTransport)

// WithSerialConfig set serial config, the port name and baud rate given to
// NewSerialTransport win when the config leaves them empty.
func WithSerialConfig(config serial.Config) SerialOption {
	return func(t *SerialTransport) {
		if config.Address == "" {
			config.Address = t.config.Address
		}
		if config.BaudRate == 0 {
			config.BaudRate = t.config.BaudRate
		}
		t.config = config
	}
}

// WithSerialTimeout set the native read timeout.
func WithSerialTimeout(d time.Duration) SerialOption {
	return func(t *SerialTransport) {
		t.config.Timeout = d
	}
}

// WithSerialWriteTimeout set the write timeout.
func WithSerialWriteTimeout(d time.Duration) SerialOption {
	return func(t *SerialTransport) {
		t.writeTimeout = d
	}
}

// WithSerialOpener replace the function which opens the native port.
func WithSerialOpener(open SerialOpener) SerialOption {
	return func(t *SerialTransport) {
		if open != nil {
			t.open = open
		}
	}
}

// GPIBOption gpib adapter option.
type GPIBOption func(t *GPIBTransport)

// WithSettleDelay set the pause after every adapter command, default 10ms,
// zero over a loopback transport.
func WithSettleDelay(d time.Duration) GPIBOption {
	return func(t *GPIBTransport) {
		t.settle = d
	}
}

// OpenOption option of the Open helpers.
type OpenOption func(o *openOptions)

type openOptions struct {
	timeout      time.Duration
	timeoutSet   bool
	writeTimeout time.Duration
	dialTimeout  time.Duration
	model        Model
	manager      *SerialManager
	commOpts     []Option
	serialOpts   []SerialOption
	gpibOpts     []GPIBOption
	vxi11Opts    []vxi11.Option
}

func newOpenOptions(opts []OpenOption) *openOptions {
	o := &openOptions{
		timeout:      SerialDefaultTimeout,
		writeTimeout: SerialDefaultWriteTimeout,
		dialTimeout:  TCPDefaultDialTimeout,
		manager:      DefaultSerialManager,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithTimeout set the transport timeout once it is open.
func WithTimeout(d time.Duration) OpenOption {
	return func(o *openOptions) {
		o.timeout = d
		o.timeoutSet = true
	}
}

// WithWriteTimeout set the serial write timeout.
func WithWriteTimeout(d time.Duration) OpenOption {
	return func(o *openOptions) {
		o.writeTimeout = d
	}
}

// WithDialTimeout set the tcp dial timeout.
func WithDialTimeout(d time.Duration) OpenOption {
	return func(o *openOptions) {
		o.dialTimeout = d
	}
}

// WithModel select the gpib adapter model.
func WithModel(m Model) OpenOption {
	return func(o *openOptions) {
		o.model = m
	}
}

// WithSerialManager open serial ports through m instead of DefaultSerialManager.
func WithSerialManager(m *SerialManager) OpenOption {
	return func(o *openOptions) {
		if m != nil {
			o.manager = m
		}
	}
}

// WithCommOptions apply opts to the communicator of the instrument.
func WithCommOptions(opts ...Option) OpenOption {
	return func(o *openOptions) {
		o.commOpts = append(o.commOpts, opts...)
	}
}

// WithSerialOptions apply opts to a newly opened serial transport.
func WithSerialOptions(opts ...SerialOption) OpenOption {
	return func(o *openOptions) {
		o.serialOpts = append(o.serialOpts, opts...)
	}
}

// WithGPIBOptions apply opts to the gpib adapter session.
func WithGPIBOptions(opts ...GPIBOption) OpenOption {
	return func(o *openOptions) {
		o.gpibOpts = append(o.gpibOpts, opts...)
	}
}

// WithVXI11Options apply opts to the vxi11 link.
func WithVXI11Options(opts ...vxi11.Option) OpenOption {
	return func(o *openOptions) {
		o.vxi11Opts = append(o.vxi11Opts, opts...)
	}
}
