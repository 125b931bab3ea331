// internal/protocol/factory.go
package protocol

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"serial2pipe/internal/model"
)

// Defaults applied to zero-valued endpoint settings
const (
	DefaultBaudRate       = 9600
	DefaultDataBits       = 8
	DefaultStopBits       = 1
	DefaultParity         = "none"
	DefaultReadTimeout    = time.Second
	DefaultWriteTimeout   = time.Second
	DefaultConnectTimeout = 5 * time.Second
	DefaultBufferSize     = 1024
)

// CreateEndpoints builds the device and pipe endpoints of one relay
func CreateEndpoints(serialConfig *SerialConfig, pipeConfig *PipeConfig, transport PipeTransport, logger *zap.Logger) (*SerialEndpoint, *PipeEndpoint, error) {
	device, err := NewSerialEndpoint(serialConfig, logger)
	if err != nil {
		return nil, nil, err
	}

	pipe, err := NewPipeEndpoint(pipeConfig, transport, logger)
	if err != nil {
		return nil, nil, err
	}

	logger.Info("Endpoints created",
		zap.String("serial_port", serialConfig.Port),
		zap.Int("baud_rate", serialConfig.BaudRate),
		zap.String("named_pipe", pipeConfig.Name),
		zap.String("pipe_role", string(pipeConfig.Role)),
		zap.String("pipe_network", pipeConfig.Network),
	)

	return device, pipe, nil
}

// ValidateSerialConfig fills defaults and validates serial configuration
func ValidateSerialConfig(config *SerialConfig) error {
	if config == nil || config.Port == "" {
		return invalidConfig("serial port is required")
	}

	if config.BaudRate == 0 {
		config.BaudRate = DefaultBaudRate
	}
	if config.DataBits == 0 {
		config.DataBits = DefaultDataBits
	}
	if config.StopBits == 0 {
		config.StopBits = DefaultStopBits
	}
	if config.Parity == "" {
		config.Parity = DefaultParity
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = DefaultReadTimeout
	}

	if config.BaudRate < 0 {
		return invalidConfig(fmt.Sprintf("invalid baud rate: %d", config.BaudRate))
	}
	if config.DataBits < 5 || config.DataBits > 8 {
		return invalidConfig(fmt.Sprintf("invalid data bits: %d", config.DataBits))
	}
	switch config.StopBits {
	case 1, 2, 15:
	default:
		return invalidConfig(fmt.Sprintf("invalid stop bits: %d", config.StopBits))
	}
	switch config.Parity {
	case "none", "odd", "even", "mark", "space":
	default:
		return invalidConfig(fmt.Sprintf("invalid parity: %s", config.Parity))
	}
	if config.ReadTimeout < 0 {
		return invalidConfig("read timeout must be positive")
	}

	return nil
}

// ValidatePipeConfig fills defaults and validates pipe configuration
func ValidatePipeConfig(config *PipeConfig) error {
	if config == nil || config.Name == "" {
		return invalidConfig("pipe name is required")
	}

	if config.Role == "" {
		config.Role = model.PipeRoleClient
	}
	if config.Network == "" {
		config.Network = DefaultPipeNetwork
	}
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = DefaultConnectTimeout
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = DefaultReadTimeout
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = DefaultWriteTimeout
	}
	if config.BufferSize == 0 {
		config.BufferSize = DefaultBufferSize
	}

	switch config.Role {
	case model.PipeRoleClient, model.PipeRoleServer:
	default:
		return invalidConfig(fmt.Sprintf("invalid pipe role: %s", config.Role))
	}
	switch config.Network {
	case NetworkPipe, NetworkUnix, NetworkTCP:
	default:
		return invalidConfig(fmt.Sprintf("invalid pipe network: %s", config.Network))
	}
	if config.ConnectTimeout < 0 || config.ReadTimeout < 0 || config.WriteTimeout < 0 {
		return invalidConfig("pipe timeouts must be positive")
	}
	if config.BufferSize < 0 {
		return invalidConfig(fmt.Sprintf("invalid buffer size: %d", config.BufferSize))
	}

	return nil
}

func invalidConfig(msg string) error {
	return fmt.Errorf("%w: %s", ErrConfigInvalid, msg)
}
