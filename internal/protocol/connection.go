// internal/protocol/connection.go
package protocol

import (
	"time"

	"serial2pipe/internal/model"
)

// SerialConfig represents serial device endpoint configuration.
// Handshake is always none.
type SerialConfig struct {
	Port        string        `json:"port"`
	BaudRate    int           `json:"baud_rate"`
	DataBits    int           `json:"data_bits"`
	StopBits    int           `json:"stop_bits"`
	Parity      string        `json:"parity"`
	ReadTimeout time.Duration `json:"read_timeout"`
}

// PipeConfig represents pipe endpoint configuration
type PipeConfig struct {
	Name           string         `json:"name"`
	Role           model.PipeRole `json:"role"`
	Network        string         `json:"network"` // pipe, unix or tcp
	ConnectTimeout time.Duration  `json:"connect_timeout"`
	ReadTimeout    time.Duration  `json:"read_timeout"`
	WriteTimeout   time.Duration  `json:"write_timeout"`
	BufferSize     int            `json:"buffer_size"`
}

// Pipe networks
const (
	NetworkPipe = "pipe"
	NetworkUnix = "unix"
	NetworkTCP  = "tcp"
)
