package instrument

import (
	"fmt"
	"net"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"
)

// URIDefaultBaudRate baud rate of serial:// uris without a baud parameter.
const URIDefaultBaudRate = 115200

// instrumentURI is an uri split the way OpenFromURI reads it. VISA resource
// names are not valid hosts, so net/url only parses the query.
type instrumentURI struct {
	scheme string
	netloc string
	path   string
	query  url.Values
}

func parseInstrumentURI(uri string) (*instrumentURI, error) {
	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok || scheme == "" {
		return nil, fmt.Errorf("%w: missing scheme in %q", ErrInvalidURI, uri)
	}
	rest, rawQuery, _ := strings.Cut(rest, "?")
	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURI, err)
	}
	u := &instrumentURI{scheme: strings.ToLower(scheme), query: query}
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		u.netloc, u.path = rest[:i], rest[i:]
	} else {
		u.netloc = rest
	}
	return u, nil
}

// device joins netloc and path into a device name.
func (u *instrumentURI) device() string {
	return u.netloc + u.path
}

// options turns the query parameters into open options.
func (u *instrumentURI) options() ([]OpenOption, error) {
	var opts []OpenOption
	if v := u.query.Get("timeout"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return nil, fmt.Errorf("%w: timeout %q", ErrInvalidURI, v)
		}
		opts = append(opts, WithTimeout(d))
	}
	if v := u.query.Get("write_timeout"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return nil, fmt.Errorf("%w: write_timeout %q", ErrInvalidURI, v)
		}
		opts = append(opts, WithWriteTimeout(d))
	}
	if v := u.query.Get("model"); v != "" {
		m, err := ParseModel(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidURI, err)
		}
		opts = append(opts, WithModel(m))
	}
	return opts, nil
}

func (u *instrumentURI) baud() (int, error) {
	v := u.query.Get("baud")
	if v == "" {
		return URIDefaultBaudRate, nil
	}
	baud, err := strconv.Atoi(v)
	if err != nil || baud <= 0 {
		return 0, fmt.Errorf("%w: baud %q", ErrInvalidURI, v)
	}
	return baud, nil
}

// parseSeconds reads a duration, a bare number is in seconds.
func parseSeconds(s string) (time.Duration, error) {
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(f * float64(time.Second)), nil
	}
	return time.ParseDuration(s)
}

// splitGPIB splits "<device>/<gpib address>".
func (u *instrumentURI) splitGPIB() (string, int, error) {
	head, tail := path.Split(u.path)
	addr, err := strconv.Atoi(tail)
	if err != nil {
		return "", 0, fmt.Errorf("%w: gpib address %q", ErrInvalidURI, tail)
	}
	return strings.TrimSuffix(u.netloc+head, "/"), addr, nil
}

// parseUSBID reads a hexadecimal vendor or product id, "0x" optional.
func parseUSBID(s string) (uint16, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(s), "0x"), 16, 16)
	return uint16(v), err
}

// parseVisaUSB reads USB::<vid>::<pid>::<serial>[::...] resource names.
func parseVisaUSB(s string) (vid, pid uint16, serialNumber string, err error) {
	parts := strings.Split(s, "::")
	if len(parts) < 3 || !strings.HasPrefix(strings.ToUpper(parts[0]), "USB") {
		return 0, 0, "", fmt.Errorf("%w: usb resource %q", ErrInvalidURI, s)
	}
	v, err1 := parseUSBID(parts[1])
	p, err2 := parseUSBID(parts[2])
	if err1 != nil || err2 != nil {
		return 0, 0, "", fmt.Errorf("%w: usb resource %q", ErrInvalidURI, s)
	}
	if len(parts) > 3 {
		serialNumber = parts[3]
	}
	return v, p, serialNumber, nil
}

// parseVXI11 reads host[/name] or TCPIP::<host>::<name>::INSTR.
func (u *instrumentURI) parseVXI11() (host, name string) {
	if parts := strings.Split(u.netloc, "::"); len(parts) > 1 {
		host = parts[1]
		if len(parts) > 2 && !strings.EqualFold(parts[2], "INSTR") {
			name = parts[2]
		}
		return host, name
	}
	return u.netloc, strings.TrimPrefix(u.path, "/")
}

// OpenFromURI opens the instrument named by uri, the scheme selects the
// Open helper:
//
//	serial://COM3?baud=9600
//	serial:///dev/ttyACM0
//	tcpip://192.168.0.10:4100
//	gpib+usb://COM3/15
//	gpib+serial:///dev/ttyUSB0/15
//	gpib+tcpip://192.168.0.20:1234/5
//	visa://USB::0x0699::0x0401::C0000001::0::INSTR
//	usbtmc://USB::0x0699::0x0401::C0000001::0::INSTR
//	vxi11://192.168.1.104
//	vxi11://TCPIP::192.168.1.105::gpib,5::INSTR
//	usb://0x0699:0x0401
//	file:///dev/usbtmc0
//	test://
//
// Query parameters baud, timeout, write_timeout and model are passed on.
func OpenFromURI(uri string, opts ...OpenOption) (*Instrument, error) {
	u, err := parseInstrumentURI(uri)
	if err != nil {
		return nil, err
	}
	uopts, err := u.options()
	if err != nil {
		return nil, err
	}
	opts = append(uopts, opts...)

	switch u.scheme {
	case "serial":
		baud, err := u.baud()
		if err != nil {
			return nil, err
		}
		return OpenSerial(u.device(), baud, opts...)
	case "tcpip":
		host, port, err := splitHostPort(u.netloc)
		if err != nil {
			return nil, err
		}
		return OpenTCPIP(host, port, opts...)
	case "gpib+usb", "gpib+serial":
		dev, addr, err := u.splitGPIB()
		if err != nil {
			return nil, err
		}
		return OpenGPIBUSB(dev, addr, opts...)
	case "gpib+tcpip":
		_, addr, err := u.splitGPIB()
		if err != nil {
			return nil, err
		}
		host, port, err := splitHostPort(u.netloc)
		if err != nil {
			return nil, err
		}
		return OpenGPIBEthernet(host, port, addr, opts...)
	case "visa":
		return OpenVisa(u.device(), opts...)
	case "usbtmc":
		vid, pid, sn, err := parseVisaUSB(u.netloc)
		if err != nil {
			return nil, err
		}
		if s := u.query.Get("serial"); s != "" {
			sn = s
		}
		return OpenUSBTMC(vid, pid, sn, opts...)
	case "vxi11":
		host, name := u.parseVXI11()
		return OpenVXI11(host, name, opts...)
	case "usb":
		vidStr, pidStr, ok := strings.Cut(u.netloc, ":")
		vid, err1 := parseUSBID(vidStr)
		pid, err2 := parseUSBID(pidStr)
		if !ok || err1 != nil || err2 != nil {
			return nil, fmt.Errorf("%w: usb device %q", ErrInvalidURI, u.netloc)
		}
		return OpenUSB(vid, pid, opts...)
	case "file":
		return OpenFile(u.device(), opts...)
	case "test":
		return OpenTest(nil, nil, opts...), nil
	default:
		return nil, fmt.Errorf("%w: scheme %q: %w", ErrInvalidURI, u.scheme, ErrNotSupported)
	}
}

func splitHostPort(hostport string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %w", ErrInvalidURI, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("%w: port %q", ErrInvalidURI, portStr)
	}
	return host, port, nil
}
