// internal/discovery/serial/scanner.go
package serial

import (
	"context"
	"fmt"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"

	"serial2pipe/internal/discovery"
)

// Scanner enumerates serial ports
type Scanner struct {
	logger *zap.Logger

	// overridable in tests
	detailed func() ([]*enumerator.PortDetails, error)
	simple   func() ([]string, error)
}

// NewScanner creates a new serial port scanner
func NewScanner(logger *zap.Logger) *Scanner {
	return &Scanner{
		logger:   logger.With(zap.String("scanner", "serial")),
		detailed: enumerator.GetDetailedPortsList,
		simple:   serial.GetPortsList,
	}
}

// Scan lists available ports. Detailed USB information is used when the platform
// provides it; otherwise only names are reported.
func (s *Scanner) Scan(ctx context.Context) ([]discovery.PortInfo, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	details, err := s.detailed()
	if err == nil {
		ports := make([]discovery.PortInfo, 0, len(details))
		for _, d := range details {
			ports = append(ports, discovery.PortInfo{
				Name:         d.Name,
				IsUSB:        d.IsUSB,
				VID:          d.VID,
				PID:          d.PID,
				SerialNumber: d.SerialNumber,
				Product:      d.Product,
			})
		}
		return ports, nil
	}

	s.logger.Debug("Detailed port enumeration unavailable", zap.Error(err))

	names, err := s.simple()
	if err != nil {
		return nil, fmt.Errorf("failed to get serial ports: %w", err)
	}

	ports := make([]discovery.PortInfo, 0, len(names))
	for _, name := range names {
		ports = append(ports, discovery.PortInfo{Name: name})
	}
	return ports, nil
}
