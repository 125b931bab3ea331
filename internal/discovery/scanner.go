// internal/discovery/scanner.go
package discovery

import "context"

// PortScanner enumerates serial ports available on this machine
type PortScanner interface {
	Scan(ctx context.Context) ([]PortInfo, error)
}

// PortInfo describes one available serial port
type PortInfo struct {
	Name         string `json:"name"`
	IsUSB        bool   `json:"is_usb"`
	VID          string `json:"vid,omitempty"`
	PID          string `json:"pid,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
	Product      string `json:"product,omitempty"`
}

// Contains reports whether name is among ports
func Contains(ports []PortInfo, name string) bool {
	for _, p := range ports {
		if p.Name == name {
			return true
		}
	}
	return false
}

// Names returns the port names in order
func Names(ports []PortInfo) []string {
	names := make([]string, 0, len(ports))
	for _, p := range ports {
		names = append(names, p.Name)
	}
	return names
}
