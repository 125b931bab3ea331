package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"serial2pipe/internal/model"
)

func TestValidateSerialConfig_Defaults(t *testing.T) {
	config := &SerialConfig{Port: "COM1"}
	require.NoError(t, ValidateSerialConfig(config))

	require.Equal(t, DefaultBaudRate, config.BaudRate)
	require.Equal(t, DefaultDataBits, config.DataBits)
	require.Equal(t, DefaultStopBits, config.StopBits)
	require.Equal(t, DefaultParity, config.Parity)
	require.Equal(t, DefaultReadTimeout, config.ReadTimeout)
}

func TestValidateSerialConfig_Invalid(t *testing.T) {
	cases := map[string]*SerialConfig{
		"nil":       nil,
		"no port":   {},
		"baud":      {Port: "COM1", BaudRate: -1},
		"data bits": {Port: "COM1", DataBits: 9},
		"stop bits": {Port: "COM1", StopBits: 3},
		"parity":    {Port: "COM1", Parity: "sometimes"},
	}
	for name, config := range cases {
		t.Run(name, func(t *testing.T) {
			err := ValidateSerialConfig(config)
			require.ErrorIs(t, err, ErrConfigInvalid)
			require.Equal(t, KindConfigInvalid, KindOf(err))
		})
	}
}

func TestValidatePipeConfig(t *testing.T) {
	config := &PipeConfig{Name: "/tmp/x.sock"}
	require.NoError(t, ValidatePipeConfig(config))
	require.Equal(t, model.PipeRoleClient, config.Role)
	require.Equal(t, DefaultPipeNetwork, config.Network)
	require.Equal(t, DefaultConnectTimeout, config.ConnectTimeout)
	require.Equal(t, DefaultBufferSize, config.BufferSize)

	require.ErrorIs(t, ValidatePipeConfig(&PipeConfig{}), ErrConfigInvalid)
	require.ErrorIs(t, ValidatePipeConfig(&PipeConfig{Name: "p", Role: "peer"}), ErrConfigInvalid)
	require.ErrorIs(t, ValidatePipeConfig(&PipeConfig{Name: "p", Network: "udp"}), ErrConfigInvalid)
}

func TestCreateEndpoints(t *testing.T) {
	device, pipe, err := CreateEndpoints(
		&SerialConfig{Port: "/dev/ttyS9", BaudRate: 19200},
		&PipeConfig{Name: "/tmp/relay.sock", Role: model.PipeRoleServer, Network: NetworkUnix},
		nil,
		zap.NewNop(),
	)
	require.NoError(t, err)

	require.Equal(t, "/dev/ttyS9", device.Name())
	require.Equal(t, model.EndpointKindSerial, device.Kind())
	require.False(t, device.IsOpen())

	require.Equal(t, "/tmp/relay.sock", pipe.Name())
	require.Equal(t, model.EndpointKindPipe, pipe.Kind())
	require.Equal(t, model.PipeRoleServer, pipe.Role())
	require.False(t, pipe.IsOpen())

	// Closing never-opened endpoints is a no-op
	require.NoError(t, device.Close())
	require.NoError(t, pipe.Close())
}

func TestCreateEndpoints_InvalidSerial(t *testing.T) {
	_, _, err := CreateEndpoints(&SerialConfig{}, &PipeConfig{Name: "p"}, nil, zap.NewNop())
	require.ErrorIs(t, err, ErrConfigInvalid)
}
