// internal/model/endpoint.go
package model

// EndpointKind identifies which side of the relay an endpoint is
type EndpointKind string

const (
	EndpointKindSerial EndpointKind = "SERIAL"
	EndpointKindPipe   EndpointKind = "PIPE"
)

// PipeRole selects how the pipe endpoint acquires its single peer
type PipeRole string

const (
	// PipeRoleClient connects to an existing pipe server
	PipeRoleClient PipeRole = "client"
	// PipeRoleServer creates the pipe and waits for one client
	PipeRoleServer PipeRole = "server"
)

// DirectionState represents where a relay direction is in its transfer loop
type DirectionState string

const (
	DirectionStateDisconnected DirectionState = "disconnected"
	DirectionStateConnecting   DirectionState = "connecting"
	DirectionStateRelaying     DirectionState = "relaying"
	DirectionStateStopped      DirectionState = "stopped"
)

// DirectionName labels one of the two relay directions
type DirectionName string

const (
	DirectionDeviceToPipe DirectionName = "device_to_pipe"
	DirectionPipeToDevice DirectionName = "pipe_to_device"
)
