package instrument

import (
	"io"
	"net"
	"strconv"
)

// GPIBUSBBaudRate baud rate of a Galvant GPIBUSB adapter.
const GPIBUSBBaudRate = 460800

func (o *openOptions) instrument(t Transport) *Instrument {
	return New(NewCommunicator(t, o.commOpts...))
}

// applyTimeout sets the timeout given by WithTimeout on a freshly opened transport.
func (o *openOptions) applyTimeout(t Transport) error {
	if !o.timeoutSet {
		return nil
	}
	tc, ok := t.(TimeoutController)
	if !ok {
		return nil
	}
	return tc.SetTimeout(o.timeout)
}

func (o *openOptions) openSerial(port string, baud int) (*SerialTransport, error) {
	opts := append([]SerialOption{
		WithSerialTimeout(o.timeout),
		WithSerialWriteTimeout(o.writeTimeout),
	}, o.serialOpts...)
	return o.manager.Open(port, baud, opts...)
}

// OpenSerial opens an instrument on a serial port, through the serial
// manager so that instruments sharing a port share its handle. A baud of
// zero means SerialDefaultBaudRate.
func OpenSerial(port string, baud int, opts ...OpenOption) (*Instrument, error) {
	o := newOpenOptions(opts)
	if baud <= 0 {
		baud = SerialDefaultBaudRate
	}
	t, err := o.openSerial(port, baud)
	if err != nil {
		return nil, err
	}
	return o.instrument(t), nil
}

// OpenSerialUSB opens an instrument on the USB serial port with the given
// vendor and product id, see FindSerialPort.
func OpenSerialUSB(vid, pid uint16, serialNumber string, baud int, opts ...OpenOption) (*Instrument, error) {
	port, err := FindSerialPort(vid, pid, serialNumber)
	if err != nil {
		return nil, err
	}
	return OpenSerial(port, baud, opts...)
}

// OpenEchoSerial opens an instrument on a serial port whose device echoes
// every command.
func OpenEchoSerial(port string, baud int, opts ...OpenOption) (*Instrument, error) {
	o := newOpenOptions(opts)
	if baud <= 0 {
		baud = SerialDefaultBaudRate
	}
	t, err := o.openSerial(port, baud)
	if err != nil {
		return nil, err
	}
	return o.instrument(NewEchoSerialTransport(t)), nil
}

// OpenTCPIP opens an instrument on a raw TCP socket.
func OpenTCPIP(host string, port int, opts ...OpenOption) (*Instrument, error) {
	o := newOpenOptions(opts)
	t, err := DialSocket(net.JoinHostPort(host, strconv.Itoa(port)), o.dialTimeout)
	if err != nil {
		return nil, err
	}
	if err = o.applyTimeout(t); err != nil {
		t.Close()
		return nil, err
	}
	return o.instrument(t), nil
}

func (o *openOptions) gpib(inner Transport, gpibAddress int, model Model) (*Instrument, error) {
	if o.model != "" {
		model = o.model
	}
	t, err := NewGPIBTransport(NewCommunicator(inner, o.commOpts...), gpibAddress, model, o.gpibOpts...)
	if err != nil {
		closeUnshared(inner)
		return nil, err
	}
	if err = o.applyTimeout(t); err != nil {
		closeUnshared(inner)
		return nil, err
	}
	return o.instrument(t), nil
}

// closeUnshared closes inner unless it is a serial port, serial ports may be
// shared with other sessions on the same adapter.
func closeUnshared(inner Transport) {
	if _, shared := inner.(*SerialTransport); !shared {
		inner.Close()
	}
}

// OpenGPIBUSB opens an instrument behind a GPIB adapter on a serial port,
// a Galvant Industries adapter unless WithModel says otherwise.
func OpenGPIBUSB(port string, gpibAddress int, opts ...OpenOption) (*Instrument, error) {
	if err := checkGPIBAddress(gpibAddress); err != nil {
		return nil, err
	}
	o := newOpenOptions(opts)
	t, err := o.openSerial(port, GPIBUSBBaudRate)
	if err != nil {
		return nil, err
	}
	return o.gpib(t, gpibAddress, ModelGalvant)
}

// OpenGPIBEthernet opens an instrument behind a GPIB adapter reached over
// TCP, a Prologix adapter unless WithModel says otherwise.
func OpenGPIBEthernet(host string, port, gpibAddress int, opts ...OpenOption) (*Instrument, error) {
	if err := checkGPIBAddress(gpibAddress); err != nil {
		return nil, err
	}
	o := newOpenOptions(opts)
	t, err := DialSocket(net.JoinHostPort(host, strconv.Itoa(port)), o.dialTimeout)
	if err != nil {
		return nil, err
	}
	return o.gpib(t, gpibAddress, ModelPrologix)
}

// OpenVisa opens an instrument on a VISA resource, a backend must be
// registered with RegisterVisaBackend.
func OpenVisa(resource string, opts ...OpenOption) (*Instrument, error) {
	o := newOpenOptions(opts)
	res, err := OpenVisaResource(resource)
	if err != nil {
		return nil, err
	}
	t := NewVisaTransport(res)
	if err = o.applyTimeout(t); err != nil {
		t.Close()
		return nil, err
	}
	return o.instrument(t), nil
}

// OpenUSBTMC opens an instrument on a USB-TMC device.
func OpenUSBTMC(vid, pid uint16, serialNumber string, opts ...OpenOption) (*Instrument, error) {
	o := newOpenOptions(opts)
	t, err := OpenUSBTMCTransport(vid, pid, serialNumber)
	if err != nil {
		return nil, err
	}
	if err = o.applyTimeout(t); err != nil {
		t.Close()
		return nil, err
	}
	return o.instrument(t), nil
}

// OpenVXI11 opens an instrument on a VXI-11 link, an empty name links to inst0.
func OpenVXI11(host, name string, opts ...OpenOption) (*Instrument, error) {
	o := newOpenOptions(opts)
	t, err := DialVXI11Transport(host, name, o.vxi11Opts...)
	if err != nil {
		return nil, err
	}
	if err = o.applyTimeout(t); err != nil {
		t.Close()
		return nil, err
	}
	return o.instrument(t), nil
}

// OpenUSB opens an instrument on the raw endpoints of a USB device.
func OpenUSB(vid, pid uint16, opts ...OpenOption) (*Instrument, error) {
	o := newOpenOptions(opts)
	t, err := OpenUSBTransport(vid, pid)
	if err != nil {
		return nil, err
	}
	return o.instrument(t), nil
}

// OpenFile opens an instrument on a device file.
func OpenFile(name string, opts ...OpenOption) (*Instrument, error) {
	o := newOpenOptions(opts)
	t, err := OpenFileTransport(name)
	if err != nil {
		return nil, err
	}
	return o.instrument(t), nil
}

// OpenTest opens an instrument on a loopback transport reading stdin and
// writing stdout, nil streams use the console.
func OpenTest(stdin io.Reader, stdout io.Writer, opts ...OpenOption) *Instrument {
	o := newOpenOptions(opts)
	return o.instrument(NewLoopbackTransport(stdin, stdout))
}
