package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"serial2pipe/internal/protocol"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func TestRootCmd_Help(t *testing.T) {
	output, err := execute(t, "", "--help")
	require.NoError(t, err)

	for _, sub := range []string{"run", "ports", "pipe-echo", "frame-gen"} {
		require.Contains(t, output, sub)
	}
	require.Contains(t, output, "--config")
}

func TestRunCmd_InvalidConfigFails(t *testing.T) {
	_, err := execute(t, "", "run", "--baud-rate=-1")
	require.Error(t, err)
	require.ErrorIs(t, err, protocol.ErrConfigInvalid)
}

func TestRunCmd_MissingConfigFile(t *testing.T) {
	_, err := execute(t, "", "run", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestFrameGenCmd_EmptyInput(t *testing.T) {
	if protocol.DefaultPipeNetwork != protocol.NetworkUnix {
		t.Skip("unix sockets only")
	}

	output, err := execute(t, "", "frame-gen", "--pipe", filepath.Join(t.TempDir(), "fg.sock"))
	require.NoError(t, err)
	require.Contains(t, output, "Press Enter to send a frame")
	require.NotContains(t, output, "Sent")
}

func TestPipeEchoCmd_InvalidRole(t *testing.T) {
	_, err := execute(t, "", "pipe-echo", "--role", "observer")
	require.ErrorIs(t, err, protocol.ErrConfigInvalid)
}
