package eq500x

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tarm/serial"
)

// replyTimeout bounds how long a reply read may stay silent before the
// operation that needed it is abandoned.
const replyTimeout = 5 * time.Second

// Transport carries the '#'-terminated command/reply protocol to the
// mount. Implementations must bound reads so a poll tick can never block
// indefinitely.
type Transport interface {
	// Send writes one or more concatenated commands.
	Send(cmd string) error
	// ReadReply reads a reply of at most max bytes, stopping early at a
	// '#' terminator, which is stripped.
	ReadReply(max int) (string, error)
	// ReadPosition queries both axes and stores the result into p,
	// leaving p's pier-side tag untouched.
	ReadPosition(p *MechanicalPoint) error
}

// SerialTransport speaks the protocol over a byte channel, normally the
// mount's RS-232 port.
type SerialTransport struct {
	port io.ReadWriteCloser
}

// OpenSerial opens the mount's serial port at its fixed 9600 8N1 framing.
func OpenSerial(name string) (*SerialTransport, error) {
	c := &serial.Config{Name: name, Baud: 9600, ReadTimeout: replyTimeout}
	s, err := serial.OpenPort(c)
	if err != nil {
		return nil, fmt.Errorf("opening %q: %w", name, err)
	}
	log.Infof("opened %q", name)
	return &SerialTransport{port: s}, nil
}

// NewSerialTransport wraps an already-open command/reply channel. Reads
// from the channel must not block forever for ReadReply's timeout contract
// to hold.
func NewSerialTransport(port io.ReadWriteCloser) *SerialTransport {
	return &SerialTransport{port: port}
}

func (t *SerialTransport) Close() error {
	return t.port.Close()
}

func (t *SerialTransport) Send(cmd string) error {
	log.Debugf("CMD <%s>", cmd)
	if _, err := t.port.Write([]byte(cmd)); err != nil {
		return fmt.Errorf("writing %q: %w", cmd, err)
	}
	return nil
}

// ReadReply accumulates reply bytes until a '#' arrives or max bytes are
// read. The mount answers fixed-width acknowledgements without any
// terminator, so both conditions are normal ends. A port configured with a
// read timeout reports an expired wait as io.EOF; that and any other read
// failure abandon the reply.
func (t *SerialTransport) ReadReply(max int) (string, error) {
	buf := make([]byte, max)
	filled := 0
	for filled < max {
		n, err := t.port.Read(buf[filled:])
		if n > 0 {
			if i := bytes.IndexByte(buf[filled:filled+n], '#'); i >= 0 {
				reply := string(buf[:filled+i])
				log.Debugf("RES <%s>", reply)
				return reply, nil
			}
			filled += n
			continue
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", fmt.Errorf("reading reply: no data for %s", replyTimeout)
			}
			return "", fmt.Errorf("reading reply: %w", err)
		}
	}
	reply := string(buf[:filled])
	log.Debugf("RES <%s>", reply)
	return reply, nil
}

// ReadPosition asks the mount for both axes and parses the replies with
// p's pier-side conventions. p is only written once both replies parse.
func (t *SerialTransport) ReadPosition(p *MechanicalPoint) error {
	pos := *p
	if err := t.Send(":GR#"); err != nil {
		return err
	}
	reply, err := t.ReadReply(64)
	if err != nil {
		return err
	}
	if err := pos.ParseRA(reply); err != nil {
		return err
	}
	if err := t.Send(":GD#"); err != nil {
		return err
	}
	reply, err = t.ReadReply(64)
	if err != nil {
		return err
	}
	if err := pos.ParseDEC(reply); err != nil {
		return err
	}
	*p = pos
	return nil
}
