// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := rootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCommands(t *testing.T) {
	homeDir := t.TempDir()
	envPath := filepath.Join(homeDir, "configs", "env.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(envPath), 0o700))
	require.NoError(t, os.WriteFile(envPath, []byte("minFreeDiskMB: 1\nlogLevel: debug\n"), 0o600))

	flags := []string{"--env", envPath, "--quiet"}
	run := func(args ...string) string {
		t.Helper()
		out, err := runCommand(t, append(args, flags...)...)
		require.NoError(t, err)
		return out
	}

	run("simulate", "sim.rec", "--duration", "300ms", "--rate", "50")
	require.FileExists(t, filepath.Join(homeDir, "storage", "recordings", "sim.rec"))

	out := run("list")
	require.Contains(t, out, "sim.rec")
	require.Contains(t, out, "1 recordings")

	out = run("info", "sim.rec")
	require.Contains(t, out, "simulated orientation")
	require.Contains(t, out, "DEVICE_TRACKER,TRACKER_GPS")
	require.Contains(t, out, "FrameMedium,simulated camera")

	out = run("step", "sim.rec", "--frames", "3")
	require.Equal(t, 3, strings.Count(out, "frame "))

	run("play", "sim.rec", "--speed", "10")

	out = run("logs", "--source", "recorder", "--limit", "10")
	require.Contains(t, out, "Recorder: recording to")

	_, err := runCommand(t, append([]string{"info", "missing.rec"}, flags...)...)
	require.Error(t, err)
	_, err = runCommand(t, append([]string{"play", "sim.rec", "--speed", "-1"}, flags...)...)
	require.Error(t, err)
}
