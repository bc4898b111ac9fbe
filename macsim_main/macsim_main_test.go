// Copyright (c) 2024, The OTNS Authors.
// All rights reserved.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions are met:
// 1. Redistributions of source code must retain the above copyright
//    notice, this list of conditions and the following disclaimer.
// 2. Redistributions in binary form must reproduce the above copyright
//    notice, this list of conditions and the following disclaimer in the
//    documentation and/or other materials provided with the distribution.
// 3. Neither the name of the copyright holder nor the
//    names of its contributors may be used to endorse or promote products
//    derived from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS"
// AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE
// IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE
// ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE
// LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR
// CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF
// SUBSTITUTE GOODS OR SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN
// CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE)
// ARISING IN ANY WAY OUT OF THE USE OF THIS SOFTWARE, EVEN IF ADVISED OF THE
// POSSIBILITY OF SUCH DAMAGE.

package macsim_main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openthread/ot-macsim/progctx"
	"github.com/openthread/ot-macsim/simulation"
)

func TestParseArgs(t *testing.T) {
	var out bytes.Buffer
	args, fs, err := parseArgs([]string{"-seed", "5", "-pcap", "wpan", "-echo"}, &out)
	require.Nil(t, err)
	assert.Equal(t, int64(5), args.Seed)
	assert.True(t, args.Echo)
	assert.Equal(t, "-", args.ScriptFile)

	cfg, err := createConfig(args, fs)
	require.Nil(t, err)
	assert.Equal(t, int64(5), cfg.Seed)
	assert.Equal(t, "wpan", cfg.Pcap)
	assert.Equal(t, "warn", cfg.LogLevel)

	_, _, err = parseArgs([]string{"-nosuchflag"}, &out)
	assert.NotNil(t, err)
	_, _, err = parseArgs([]string{"extra"}, &out)
	assert.NotNil(t, err)

	args, fs, err = parseArgs([]string{"-pcap", "bogus"}, &out)
	require.Nil(t, err)
	_, err = createConfig(args, fs)
	assert.NotNil(t, err)
}

func TestCreateConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	fn := filepath.Join(dir, "sim.toml")
	require.Nil(t, os.WriteFile(fn, []byte("seed = 3\nlog-level = \"info\"\n[pib]\nchannel = 20\n"), 0644))

	var out bytes.Buffer
	args, fs, err := parseArgs([]string{"-config", fn, "-seed", "9"}, &out)
	require.Nil(t, err)
	cfg, err := createConfig(args, fs)
	require.Nil(t, err)
	assert.Equal(t, int64(9), cfg.Seed)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, uint8(20), cfg.Pib.Channel)
}

func TestMainRunsScript(t *testing.T) {
	dir := t.TempDir()
	script := "acks n y\nsend 1\ngo 100ms\nset channel 12\n"
	saved := filepath.Join(dir, "final.yaml")

	var out bytes.Buffer
	ctx := progctx.New(context.Background())
	logFile := filepath.Join(dir, "macsim.log")
	err := Main(ctx, []string{"-output", dir, "-seed", "1", "-kpi", "-log", "info", "-log-file", logFile, "-save-config", saved},
		strings.NewReader(script), &out)
	require.Nil(t, err)
	assert.Contains(t, out.String(), "DATA.confirm(handle=1,SUCCESS,retries=1,attempts=2)")
	assert.Contains(t, out.String(), "2 frames sent")
	assert.NotNil(t, ctx.Err())

	cfg, err := simulation.LoadConfigFile(saved)
	require.Nil(t, err)
	assert.Equal(t, uint8(12), cfg.Pib.Channel)
	assert.FileExists(t, filepath.Join(dir, "0_kpi.json"))
	assert.FileExists(t, logFile)
}

func TestMainFailedCommand(t *testing.T) {
	var out bytes.Buffer
	ctx := progctx.New(context.Background())
	err := Main(ctx, []string{"-output", t.TempDir()}, strings.NewReader("purge 3\n"), &out)
	assert.EqualError(t, err, "1 commands failed")
	assert.Contains(t, out.String(), "INVALID_HANDLE")
}

func TestMainWithMetricsServer(t *testing.T) {
	var out bytes.Buffer
	ctx := progctx.New(context.Background())
	err := Main(ctx, []string{"-output", t.TempDir(), "-metrics-addr", "127.0.0.1:0"},
		strings.NewReader("go 10ms\n"), &out)
	require.Nil(t, err)
	assert.Equal(t, 0, ctx.WaitCount())
	assert.Nil(t, ctx.Cause())
}
