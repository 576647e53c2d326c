package instrument

import (
	"bufio"
	"errors"
	"net"
	"strings"
	"testing"
	"time"
)

// serveLines answers every line received on l with reply(line).
func serveLines(t *testing.T, reply func(line string) string) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { l.Close() })
	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			if resp := reply(strings.TrimSuffix(line, "\n")); resp != "" {
				if _, err = conn.Write([]byte(resp)); err != nil {
					return
				}
			}
		}
	}()
	return l.Addr().String()
}

func TestSocketTransport_Query(t *testing.T) {
	addr := serveLines(t, func(line string) string {
		switch line {
		case "*IDN?":
			return "ACME,SCOPE,1\n"
		case "DATA?":
			return "0123456789"
		}
		return ""
	})
	st, err := DialSocket(addr, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	if err = st.SetTimeout(time.Second); err != nil {
		t.Fatal(err)
	}
	if st.Address() != addr {
		t.Errorf("Address() = %q, want %q", st.Address(), addr)
	}

	got, err := st.Query("*IDN?", -1)
	if err != nil || got != "ACME,SCOPE,1" {
		t.Errorf("Query(-1) = %q, %v", got, err)
	}
	got, err = st.Query("DATA?", 4)
	if err != nil || got != "0123" {
		t.Errorf("Query(4) = %q, %v", got, err)
	}
	if err = st.FlushInput(); err != nil {
		t.Errorf("FlushInput() error = %v", err)
	}
}

func TestSocketTransport_timeout(t *testing.T) {
	addr := serveLines(t, func(string) string { return "12" })
	st, err := DialSocket(addr, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	if err = st.SetTimeout(50 * time.Millisecond); err != nil {
		t.Fatal(err)
	}

	got, err := st.Query("X?", -1)
	if !errors.Is(err, ErrTerminatorNotFound) {
		t.Errorf("Query(-1) error = %v, want %v", err, ErrTerminatorNotFound)
	}
	if got != "12" {
		t.Errorf("Query(-1) = %q, want the partial response", got)
	}

	got, err = st.Query("X?", 4)
	if !errors.Is(err, ErrTimeout) || got != "12" {
		t.Errorf("Query(4) = %q, %v, want partial response and %v", got, err, ErrTimeout)
	}
}

func TestSocketTransport_Close(t *testing.T) {
	addr := serveLines(t, func(string) string { return "" })
	st, err := DialSocket(addr, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if err = st.Close(); err != nil {
		t.Fatal(err)
	}
	if err = st.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err = st.SendCmd("X"); !errors.Is(err, ErrClosedConnection) {
		t.Errorf("SendCmd() after Close() error = %v, want %v", err, ErrClosedConnection)
	}
}
