package instrument

import (
	"time"
)

// AckFunc returns the acknowledgements a device sends back after cmd, in
// order. nil means cmd is not acknowledged.
type AckFunc func(cmd string) []string

// Instrument is the base of device drivers. It owns one Communicator and
// checks acknowledgements and the prompt around every command.
type Instrument struct {
	comm   *Communicator
	prompt string
	ack    AckFunc
}

// New creates an instrument talking through c.
func New(c *Communicator) *Instrument {
	return &Instrument{comm: c}
}

// Communicator returns the communicator of the instrument.
func (sf *Instrument) Communicator() *Communicator { return sf.comm }

// Testing reports whether the instrument runs against a loopback transport.
func (sf *Instrument) Testing() bool {
	_, ok := sf.comm.Transport.(*LoopbackTransport)
	return ok
}

// SetAckFunc declare the acknowledgements expected after each command.
func (sf *Instrument) SetAckFunc(f AckFunc) { sf.ack = f }

func (sf *Instrument) acks(cmd string) []string {
	if sf.ack == nil {
		return nil
	}
	return sf.ack(cmd)
}

// SendCmd sends cmd without waiting for a response, then reads and checks
// the acknowledgements and the prompt.
func (sf *Instrument) SendCmd(cmd string) error {
	if err := sf.comm.SendCmd(cmd); err != nil {
		return err
	}
	if err := sf.checkAcks(cmd); err != nil {
		return err
	}
	return sf.checkPrompt()
}

// Query sends cmd and returns the response, size -1 reads up to the
// terminator. An acknowledged command is queried for its first
// acknowledgement, the value is read once all of them check out.
func (sf *Instrument) Query(cmd string, size int) (string, error) {
	var value string
	var err error

	acks := sf.acks(cmd)
	if len(acks) == 0 {
		if value, err = sf.comm.Query(cmd, size); err != nil {
			return value, err
		}
	} else {
		var got string
		if got, err = sf.comm.Query(cmd, -1); err != nil {
			return "", err
		}
		if got != acks[0] {
			return "", &AckError{Expected: acks[0], Got: got}
		}
		if err = sf.matchAcks(acks[1:]); err != nil {
			return "", err
		}
		if value, err = sf.Read(size); err != nil {
			return value, err
		}
	}
	if err = sf.checkPrompt(); err != nil {
		return "", err
	}
	return value, nil
}

func (sf *Instrument) checkAcks(cmd string) error {
	return sf.matchAcks(sf.acks(cmd))
}

func (sf *Instrument) matchAcks(acks []string) error {
	for _, want := range acks {
		got, err := sf.Read(-1)
		if err != nil {
			return err
		}
		if got != want {
			return &AckError{Expected: want, Got: got}
		}
	}
	return nil
}

func (sf *Instrument) checkPrompt() error {
	if sf.prompt == "" {
		return nil
	}
	got, err := sf.Read(len(sf.prompt))
	if err != nil {
		return err
	}
	if got != sf.prompt {
		return &PromptError{Expected: sf.prompt, Got: got}
	}
	return nil
}

// Read reads text, size -1 reads up to the terminator.
func (sf *Instrument) Read(size int) (string, error) { return sf.comm.Read(size) }

// ReadRaw reads bytes, size -1 reads up to the terminator.
func (sf *Instrument) ReadRaw(size int) ([]byte, error) { return sf.comm.ReadRaw(size) }

// Write writes msg as is, no terminator is added.
func (sf *Instrument) Write(msg string) error { return sf.comm.Write(msg) }

// Address returns the communicator address.
func (sf *Instrument) Address() string { return sf.comm.Address() }

// SetAddress changes the communicator address, when the transport allows it.
func (sf *Instrument) SetAddress(addr string) error { return sf.comm.SetAddress(addr) }

// Terminator returns the message terminator.
func (sf *Instrument) Terminator() string { return sf.comm.Terminator() }

// SetTerminator changes the message terminator.
func (sf *Instrument) SetTerminator(term string) error { return sf.comm.SetTerminator(term) }

// Timeout returns the communicator timeout.
func (sf *Instrument) Timeout() (time.Duration, error) { return sf.comm.Timeout() }

// SetTimeout changes the communicator timeout.
func (sf *Instrument) SetTimeout(d time.Duration) error { return sf.comm.SetTimeout(d) }

// Prompt returns the prompt the device prints when ready, empty for none.
func (sf *Instrument) Prompt() string { return sf.prompt }

// SetPrompt sets the prompt read and checked after every command.
func (sf *Instrument) SetPrompt(prompt string) { sf.prompt = prompt }

// Close closes the communicator.
func (sf *Instrument) Close() error { return sf.comm.Close() }
