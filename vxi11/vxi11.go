// Package vxi11 is a client for the VXI-11 core channel, the ONC RPC
// protocol LAN instruments and LAN/GPIB gateways speak.
package vxi11

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// device core channel
const (
	deviceCoreProg = 0x0607AF
	deviceCoreVers = 1
)

// procedures
const (
	procCreateLink    = 10
	procDeviceWrite   = 11
	procDeviceRead    = 12
	procDeviceReadSTB = 13
	procDeviceTrigger = 14
	procDeviceClear   = 15
	procDeviceRemote  = 16
	procDeviceLocal   = 17
	procDestroyLink   = 23
)

// operation flags
const (
	flagWaitLock    = 0x01
	flagEnd         = 0x08
	flagTermCharSet = 0x80
)

// read end reasons
const (
	reasonReqCnt = 0x01
	reasonChr    = 0x02
	reasonEnd    = 0x04
)

const (
	// DefaultTimeout io timeout of every operation
	DefaultTimeout = 10 * time.Second
	// DefaultLockTimeout wait for a device lock
	DefaultLockTimeout = 10 * time.Second
	// DefaultName device name used when none is given
	DefaultName = "inst0"

	maxReadSize     = 1 << 20
	defaultRecvSize = 1024
	// slack on top of the device side timeouts before the rpc call gives up
	rpcTimeoutSlack = time.Second
)

var deviceErrors = map[int32]string{
	1:  "syntax error",
	3:  "device not accessible",
	4:  "invalid link identifier",
	5:  "parameter error",
	6:  "channel not established",
	8:  "operation not supported",
	9:  "out of resources",
	11: "device locked by another link",
	12: "no lock held by this link",
	15: "I/O timeout",
	17: "I/O error",
	21: "invalid address",
	23: "abort",
	29: "channel already established",
}

const errIOTimeout = 15

// ErrLinkClosed the link was closed.
var ErrLinkClosed = errors.New("vxi11: link closed")

// DeviceError a non zero device error code.
type DeviceError struct {
	Op   string
	Code int32
}

// Error implements error interface.
func (e *DeviceError) Error() string {
	msg, ok := deviceErrors[e.Code]
	if !ok {
		msg = "unknown error"
	}
	return fmt.Sprintf("vxi11: %s: %s (%d)", e.Op, msg, e.Code)
}

// Timeout reports whether the device gave up waiting for I/O.
func (e *DeviceError) Timeout() bool { return e.Code == errIOTimeout }

// Temporary implements net.Error.
func (e *DeviceError) Temporary() bool { return false }

// Option configures an Instrument.
type Option func(*Instrument)

// WithPort dial the core channel on port, skipping the portmapper.
func WithPort(port int) Option {
	return func(i *Instrument) {
		i.port = port
	}
}

// WithTimeout set the io timeout.
func WithTimeout(t time.Duration) Option {
	return func(i *Instrument) {
		i.timeout = t
	}
}

// WithClientID set the client id sent when the link is created.
func WithClientID(id int32) Option {
	return func(i *Instrument) {
		i.clientID = id
	}
}

// Instrument a link to one device behind a VXI-11 server.
type Instrument struct {
	host     string
	name     string
	port     int
	clientID int32

	timeout     time.Duration
	lockTimeout time.Duration
	termChar    byte
	termCharSet bool

	rpc         *rpcClient
	lid         int32
	maxRecvSize int
}

// Dial create a link to device name on host.
func Dial(host, name string, opts ...Option) (*Instrument, error) {
	if name == "" {
		name = DefaultName
	}
	i := &Instrument{
		host:        host,
		name:        name,
		timeout:     DefaultTimeout,
		lockTimeout: DefaultLockTimeout,
	}
	for _, opt := range opts {
		opt(i)
	}

	port := i.port
	if port == 0 {
		var err error
		if port, err = getPort(host, deviceCoreProg, deviceCoreVers); err != nil {
			return nil, err
		}
	}
	c, err := dialRPC(net.JoinHostPort(host, strconv.Itoa(port)), deviceCoreProg, deviceCoreVers, rpcDialTimeout)
	if err != nil {
		return nil, err
	}
	i.rpc = c
	i.updateDeadline()

	var resp createLinkResp
	err = c.call(procCreateLink, &createLinkParms{
		ClientID:    i.clientID,
		LockTimeout: millis(i.lockTimeout),
		Device:      i.name,
	}, &resp)
	if err != nil {
		c.close()
		return nil, err
	}
	if resp.Error != 0 {
		c.close()
		return nil, &DeviceError{"create_link", resp.Error}
	}
	i.lid = resp.Lid
	i.maxRecvSize = int(resp.MaxRecvSize)
	if i.maxRecvSize <= 0 {
		i.maxRecvSize = defaultRecvSize
	}
	return i, nil
}

// Host of the server.
func (i *Instrument) Host() string { return i.host }

// Name of the linked device.
func (i *Instrument) Name() string { return i.name }

// Timeout io timeout.
func (i *Instrument) Timeout() time.Duration { return i.timeout }

// SetTimeout set io timeout.
func (i *Instrument) SetTimeout(t time.Duration) {
	i.timeout = t
	i.updateDeadline()
}

// TermChar returns the read termination character and whether it is in use.
func (i *Instrument) TermChar() (byte, bool) { return i.termChar, i.termCharSet }

// SetTermChar make reads stop after c.
func (i *Instrument) SetTermChar(c byte) {
	i.termChar = c
	i.termCharSet = true
}

// ClearTermChar reads stop on END only.
func (i *Instrument) ClearTermChar() {
	i.termChar = 0
	i.termCharSet = false
}

func (i *Instrument) updateDeadline() {
	if i.rpc == nil {
		return
	}
	if i.timeout <= 0 {
		i.rpc.timeout = 0
		return
	}
	i.rpc.timeout = i.timeout + i.lockTimeout + rpcTimeoutSlack
}

// call runs proc on the link, ErrLinkClosed once it is closed.
func (i *Instrument) call(proc uint32, args, reply interface{}) error {
	if i.rpc == nil {
		return ErrLinkClosed
	}
	return i.rpc.call(proc, args, reply)
}

// Write send b, split in chunks the server accepts, END asserted on the last.
func (i *Instrument) Write(b []byte) (int, error) {
	written := 0
	for {
		chunk := b[written:]
		flags := uint32(0)
		if len(chunk) > i.maxRecvSize {
			chunk = chunk[:i.maxRecvSize]
		} else {
			flags |= flagEnd
		}
		var resp deviceWriteResp
		err := i.call(procDeviceWrite, &deviceWriteParms{
			Lid:         i.lid,
			IOTimeout:   millis(i.timeout),
			LockTimeout: millis(i.lockTimeout),
			Flags:       flags,
			Data:        chunk,
		}, &resp)
		if err != nil {
			return written, err
		}
		if resp.Error != 0 {
			return written, &DeviceError{"device_write", resp.Error}
		}
		size := int(resp.Size)
		if size > len(chunk) {
			size = len(chunk)
		}
		written += size
		if written >= len(b) {
			return written, nil
		}
	}
}

// ReadRaw read until END, the termination character or n bytes.
// A negative n reads until END or the termination character.
func (i *Instrument) ReadRaw(n int) ([]byte, error) {
	var out []byte
	for {
		reqSize := maxReadSize
		if n >= 0 {
			reqSize = n - len(out)
		}
		flags := uint32(0)
		if i.termCharSet {
			flags |= flagTermCharSet
		}
		var resp deviceReadResp
		err := i.call(procDeviceRead, &deviceReadParms{
			Lid:         i.lid,
			RequestSize: uint32(reqSize),
			IOTimeout:   millis(i.timeout),
			LockTimeout: millis(i.lockTimeout),
			Flags:       flags,
			TermChar:    int32(i.termChar),
		}, &resp)
		if err != nil {
			return out, err
		}
		if resp.Error != 0 {
			return out, &DeviceError{"device_read", resp.Error}
		}
		out = append(out, resp.Data...)
		if resp.Reason&(reasonEnd|reasonChr) != 0 {
			return out, nil
		}
		if n >= 0 && len(out) >= n {
			return out, nil
		}
	}
}

// Ask write msg and read the reply, trailing line endings removed.
func (i *Instrument) Ask(msg string) (string, error) {
	if _, err := i.Write([]byte(msg)); err != nil {
		return "", err
	}
	b, err := i.ReadRaw(-1)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(b), "\r\n"), nil
}

func (i *Instrument) genericParms() *deviceGenericParms {
	return &deviceGenericParms{
		Lid:         i.lid,
		LockTimeout: millis(i.lockTimeout),
		IOTimeout:   millis(i.timeout),
	}
}

func (i *Instrument) generic(proc uint32, op string) error {
	var resp deviceError
	if err := i.call(proc, i.genericParms(), &resp); err != nil {
		return err
	}
	if resp.Error != 0 {
		return &DeviceError{op, resp.Error}
	}
	return nil
}

// ReadSTB read the status byte.
func (i *Instrument) ReadSTB() (byte, error) {
	var resp readSTBResp
	if err := i.call(procDeviceReadSTB, i.genericParms(), &resp); err != nil {
		return 0, err
	}
	if resp.Error != 0 {
		return 0, &DeviceError{"device_readstb", resp.Error}
	}
	return byte(resp.STB), nil
}

// Trigger send a group execute trigger.
func (i *Instrument) Trigger() error {
	return i.generic(procDeviceTrigger, "device_trigger")
}

// Clear send a device clear.
func (i *Instrument) Clear() error {
	return i.generic(procDeviceClear, "device_clear")
}

// Remote put the device into remote state.
func (i *Instrument) Remote() error {
	return i.generic(procDeviceRemote, "device_remote")
}

// Local put the device into local state.
func (i *Instrument) Local() error {
	return i.generic(procDeviceLocal, "device_local")
}

// Close destroy the link and close the connection, closing a closed link
// does nothing.
func (i *Instrument) Close() error {
	if i.rpc == nil {
		return nil
	}
	var resp deviceError
	err := i.rpc.call(procDestroyLink, &deviceLink{Lid: i.lid}, &resp)
	if err == nil && resp.Error != 0 {
		err = &DeviceError{"destroy_link", resp.Error}
	}
	if cerr := i.rpc.close(); err == nil {
		err = cerr
	}
	i.rpc = nil
	return err
}

func millis(d time.Duration) uint32 {
	if d <= 0 {
		return 0
	}
	return uint32(d / time.Millisecond)
}
