package channel

import (
	"context"
	"fmt"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"

	"github.com/timfallmk/disk-space-bridge/internal/logging"
)

// DefaultBaudRate is used when no baud rate is configured.
const DefaultBaudRate = 115200

// PortLister enumerates serial ports. It is swapped out in tests.
type PortLister func() ([]*enumerator.PortDetails, error)

// DiscoverPort picks a serial port, preferring USB devices.
func DiscoverPort(list PortLister, logger *logging.Logger) (string, error) {
	if list == nil {
		list = enumerator.GetDetailedPortsList
	}

	ports, err := list()
	if err != nil {
		return "", fmt.Errorf("failed to enumerate ports: %w", err)
	}

	if len(ports) == 0 {
		return "", fmt.Errorf("no serial ports found")
	}

	for _, port := range ports {
		if port.IsUSB {
			logger.Debug("found USB serial port", "port", port.Name, "vid", port.VID, "pid", port.PID)
			return port.Name, nil
		}
	}

	return ports[0].Name, nil
}

// SerialTransport serves the stream protocol over a serial line.
type SerialTransport struct {
	messenger *Messenger
	logger    *logging.Logger
	observer  Observer
	portName  string
	mode      *serial.Mode
	list      PortLister
}

// NewSerialTransport returns a transport for portName. An empty portName is
// resolved with DiscoverPort when Serve starts.
func NewSerialTransport(m *Messenger, portName string, baudRate int, logger *logging.Logger) *SerialTransport {
	if baudRate <= 0 {
		baudRate = DefaultBaudRate
	}

	return &SerialTransport{
		messenger: m,
		logger:    logger,
		portName:  portName,
		mode:      &serial.Mode{BaudRate: baudRate},
	}
}

// SetObserver installs o to receive per-request notifications.
func (t *SerialTransport) SetObserver(o Observer) {
	t.observer = o
}

// Serve opens the port and answers requests until ctx is cancelled or the
// peer hangs up.
func (t *SerialTransport) Serve(ctx context.Context) error {
	portName := t.portName
	if portName == "" {
		discovered, err := DiscoverPort(t.list, t.logger)
		if err != nil {
			return fmt.Errorf("failed to discover port: %w", err)
		}
		portName = discovered
	}

	port, err := serial.Open(portName, t.mode)
	if err != nil {
		return fmt.Errorf("failed to open port %s: %w", portName, err)
	}
	defer port.Close()

	// Closing the port unblocks the pending read once ctx is done.
	stop := context.AfterFunc(ctx, func() { _ = port.Close() })
	defer stop()

	t.logger.Info("serial bridge opened", "port", portName, "baud_rate", t.mode.BaudRate)

	stream := NewStreamServer(t.messenger, port, port, "serial", t.logger)
	stream.SetObserver(t.observer)

	err = stream.Serve(ctx)
	if ctx.Err() != nil {
		return nil
	}
	return err
}
