package vxi11

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	xdr "github.com/davecgh/go-xdr/xdr2"
)

// ONC RPC (RFC 5531) over TCP with record marking.
const (
	callBufferSize = 1024
	rpcVersion     = 2
	msgCall        = 0
	msgReply       = 1
	replyAccepted  = 0
	acceptSuccess  = 0
	authNull       = 0
	lastFragment   = 1 << 31
	maxRecordSize  = 16 << 20
)

// portmapper
const (
	pmapPort       = 111
	pmapProg       = 100000
	pmapVers       = 2
	pmapGetPort    = 3
	ipProtoTCP     = 6
	rpcDialTimeout = 5 * time.Second
)

// RPCError an rpc call was not accepted or did not succeed.
type RPCError struct {
	Proc   uint32
	Denied bool
	Stat   uint32
}

// Error implements error interface.
func (e *RPCError) Error() string {
	if e.Denied {
		return fmt.Sprintf("vxi11: rpc call %d denied, stat %d", e.Proc, e.Stat)
	}
	return fmt.Sprintf("vxi11: rpc call %d not accepted, stat %d", e.Proc, e.Stat)
}

type rpcClient struct {
	prog, vers uint32
	// deadline of a whole call, zero waits forever
	timeout time.Duration

	mu   sync.Mutex
	conn net.Conn
	xid  uint32
}

func dialRPC(address string, prog, vers uint32, dialTimeout time.Duration) (*rpcClient, error) {
	conn, err := net.DialTimeout("tcp", address, dialTimeout)
	if err != nil {
		return nil, err
	}
	return &rpcClient{prog: prog, vers: vers, conn: conn}, nil
}

// call runs procedure proc with args and decodes the results into reply,
// both are XDR encoded structs, nil for none.
func (sf *rpcClient) call(proc uint32, args, reply interface{}) error {
	sf.mu.Lock()
	defer sf.mu.Unlock()

	sf.xid++
	xid := sf.xid

	buf := callPool.get()
	defer callPool.put(buf)
	buf.Write([]byte{0, 0, 0, 0}) // record mark, filled below
	_, err := xdr.Marshal(buf, &callHeader{
		Xid:     xid,
		MsgType: msgCall,
		RPCVers: rpcVersion,
		Prog:    sf.prog,
		Vers:    sf.vers,
		Proc:    proc,
		Cred:    opaqueAuth{Flavor: authNull},
		Verf:    opaqueAuth{Flavor: authNull},
	})
	if err != nil {
		return err
	}
	if args != nil {
		if _, err = xdr.Marshal(buf, args); err != nil {
			return err
		}
	}
	b := buf.Bytes()
	binary.BigEndian.PutUint32(b, lastFragment|uint32(len(b)-4))

	var deadline time.Time
	if sf.timeout > 0 {
		deadline = time.Now().Add(sf.timeout)
	}
	if err = sf.conn.SetDeadline(deadline); err != nil {
		return err
	}
	if _, err = sf.conn.Write(b); err != nil {
		return err
	}

	for {
		rec, err := readRecord(sf.conn)
		if err != nil {
			return err
		}
		r := bytes.NewReader(rec)
		var hdr replyHeader
		if _, err = xdr.Unmarshal(r, &hdr); err != nil {
			return err
		}
		if hdr.Xid != xid {
			continue // stale reply of an abandoned call
		}
		if hdr.MsgType != msgReply {
			return fmt.Errorf("vxi11: rpc reply to call %d is not a reply", proc)
		}
		if hdr.ReplyStat != replyAccepted {
			var stat uint32
			if _, err = xdr.Unmarshal(r, &stat); err != nil {
				return err
			}
			return &RPCError{Proc: proc, Denied: true, Stat: stat}
		}
		var acc acceptedReply
		if _, err = xdr.Unmarshal(r, &acc); err != nil {
			return err
		}
		if acc.AcceptStat != acceptSuccess {
			return &RPCError{Proc: proc, Stat: acc.AcceptStat}
		}
		if reply == nil {
			return nil
		}
		_, err = xdr.Unmarshal(r, reply)
		return err
	}
}

func (sf *rpcClient) close() error {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	return sf.conn.Close()
}

// readRecord reads one record, joining its fragments.
func readRecord(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	var rec []byte
	for {
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return nil, err
		}
		mark := binary.BigEndian.Uint32(hdr[:])
		n := int(mark &^ lastFragment)
		if len(rec)+n > maxRecordSize {
			return nil, fmt.Errorf("vxi11: rpc record larger than %d bytes", maxRecordSize)
		}
		start := len(rec)
		rec = append(rec, make([]byte, n)...)
		if _, err := io.ReadFull(r, rec[start:]); err != nil {
			return nil, err
		}
		if mark&lastFragment != 0 {
			return rec, nil
		}
	}
}

// getPort asks the portmapper of host for the tcp port of prog.
func getPort(host string, prog, vers uint32) (int, error) {
	c, err := dialRPC(net.JoinHostPort(host, strconv.Itoa(pmapPort)), pmapProg, pmapVers, rpcDialTimeout)
	if err != nil {
		return 0, err
	}
	defer c.close()
	c.timeout = rpcDialTimeout

	var port uint32
	err = c.call(pmapGetPort, &mapping{Prog: prog, Vers: vers, Prot: ipProtoTCP}, &port)
	if err != nil {
		return 0, err
	}
	if port == 0 {
		return 0, fmt.Errorf("vxi11: program %#x is not registered on %s", prog, host)
	}
	return int(port), nil
}
