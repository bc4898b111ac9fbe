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

// Package scenario parses and runs the commands of a scenario script against a simulation.
package scenario

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/openthread/ot-macsim/channel"
	"github.com/openthread/ot-macsim/dissectpkt/wpan"
	"github.com/openthread/ot-macsim/logger"
	"github.com/openthread/ot-macsim/mac"
	"github.com/openthread/ot-macsim/pib"
	"github.com/openthread/ot-macsim/progctx"
	"github.com/openthread/ot-macsim/radioclock"
	"github.com/openthread/ot-macsim/radiomodel"
	"github.com/openthread/ot-macsim/simulation"
)

const (
	Prompt = "> "

	// PeerAddress is the short address of the simulated neighbor that sent and receives frames.
	PeerAddress       = 0x0001
	defaultPayloadLen = 10
	requestTimeout    = time.Second
)

type CommandContext struct {
	context.Context
	*Command
	rt     *Runner
	err    error
	output io.Writer
}

func (cc *CommandContext) outputStr(msg string) {
	_, _ = fmt.Fprint(cc.output, msg)
}

func (cc *CommandContext) outputf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(cc.output, format, args...)
}

func (cc *CommandContext) errorf(format string, args ...interface{}) {
	cc.error(errors.Errorf(format, args...))
}

func (cc *CommandContext) error(err error) {
	if err != nil {
		if cc.err != nil { // if previous error, print it now and keep the last.
			cc.outputf("Error: %s\n", cc.err)
		}
		cc.err = err
	}
}

// Err returns the last error that occurred during command execution.
func (cc *CommandContext) Err() error {
	return cc.err
}

func (cc *CommandContext) outputItemsAsYaml(items interface{}) {
	var itemsYaml yaml.Node

	err := itemsYaml.Encode(items)
	logger.PanicfIfError(err, "encoding items")

	for _, content := range itemsYaml.Content {
		content.Style = yaml.FlowStyle
	}

	data, err := yaml.Marshal(&itemsYaml)
	logger.PanicfIfError(err, "marshalling items")

	_, err = cc.output.Write(data)
	logger.PanicfIfError(err, "writing items")
}

func (cc *CommandContext) outputYaml(v interface{}) {
	data, err := yaml.Marshal(v)
	logger.PanicfIfError(err, "marshalling %T", v)

	_, err = cc.output.Write(data)
	logger.PanicfIfError(err, "writing %T", v)
}

type indicationItem struct {
	Seq          uint8  `yaml:"seq"`
	Len          int    `yaml:"len"`
	RMarker      string `yaml:"at"`
	AckRequested bool   `yaml:"ack"`
}

type pendingConfirm struct {
	label string
	p     *channel.Pending[mac.Confirm]
}

// Runner executes commands against one simulation. It is not safe for concurrent use.
type Runner struct {
	sim       *simulation.Simulation
	ctx       *progctx.ProgCtx
	help      Help
	pending   []pendingConfirm
	injectSeq uint8
	exited    bool
}

func NewRunner(ctx *progctx.ProgCtx, sim *simulation.Simulation) *Runner {
	// a realtime simulation must serve requests before the first 'go'.
	sim.Start()
	return &Runner{
		ctx:  ctx,
		sim:  sim,
		help: newHelp(),
	}
}

// RunCommand parses and executes a single command line, writing its output to output.
func (rt *Runner) RunCommand(cmdline string, output io.Writer) error {
	rt.runLine(cmdline, output)
	if rt.exited {
		return nil
	}
	return rt.ctx.Err()
}

// RunScript executes r line by line. Blank lines and lines starting with '#' are skipped. It returns
// the number of commands that failed; execution stops after an 'exit' command.
func (rt *Runner) RunScript(r io.Reader, output io.Writer, echo bool) (int, error) {
	failed := 0
	scanner := bufio.NewScanner(r)
	for scanner.Scan() && !rt.exited {
		line := strings.TrimSpace(scanner.Text())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		if rt.ctx.Err() != nil {
			return failed, rt.ctx.Err()
		}
		if echo {
			_, _ = fmt.Fprintf(output, "%s%s\n", Prompt, line)
		}
		if !rt.runLine(line, output) {
			failed++
		}
	}
	return failed, scanner.Err()
}

// Exited tells whether an 'exit' command was executed.
func (rt *Runner) Exited() bool {
	return rt.exited
}

func (rt *Runner) runLine(cmdline string, output io.Writer) bool {
	if rt.ctx.Err() != nil {
		return false
	}
	cmd := Command{}
	if err := ParseBytes([]byte(cmdline), &cmd); err != nil {
		_, _ = fmt.Fprintf(output, "Error: %v\n", err)
		return false
	}
	return rt.execute(&cmd, output).Err() == nil
}

func (rt *Runner) execute(cmd *Command, output io.Writer) (cc *CommandContext) {
	cc = &CommandContext{
		Context: rt.ctx,
		Command: cmd,
		rt:      rt,
		output:  output,
	}

	defer func() {
		rt.outputConfirms(cc)
		if cc.Err() != nil {
			cc.outputf("Error: %v\n", cc.Err())
		} else {
			cc.outputf("Done\n")
		}
	}()

	defer func() {
		rerr := recover()

		if rerr != nil {
			if err, ok := rerr.(error); ok {
				cc.err = errors.Wrapf(err, "panic: %v", err)
			} else {
				cc.err = errors.Errorf("panic: %v", rerr)
			}
		}
	}()

	if cmd.Send != nil {
		rt.executeSend(cc, cmd.Send)
	} else if cmd.Go != nil {
		rt.executeGo(cc, cmd.Go)
	} else if cmd.Inject != nil {
		rt.executeInject(cc, cmd.Inject)
	} else if cmd.Indications != nil {
		rt.executeIndications(cc)
	} else if cmd.Acks != nil {
		rt.executeAcks(cc, cmd.Acks)
	} else if cmd.Busy != nil {
		rt.executeBusy(cc, cmd.Busy)
	} else if cmd.Get != nil {
		rt.executeGet(cc, cmd.Get)
	} else if cmd.Set != nil {
		rt.executeSet(cc, cmd.Set)
	} else if cmd.Purge != nil {
		rt.executePurge(cc, cmd.Purge)
	} else if cmd.Reset != nil {
		rt.executeReset(cc, cmd.Reset)
	} else if cmd.RxEnable != nil {
		rt.executeRxEnable(cc, cmd.RxEnable)
	} else if cmd.Time != nil {
		cc.outputf("%s\n", rt.sim.Now())
	} else if cmd.Stats != nil {
		cc.outputYaml(rt.sim.Report().Counters())
	} else if cmd.Kpi != nil {
		rt.executeKpi(cc, cmd.Kpi)
	} else if cmd.Energy != nil {
		rt.executeEnergy(cc, cmd.Energy)
	} else if cmd.Config != nil {
		rt.executeConfig(cc, cmd.Config)
	} else if cmd.LogLevel != nil {
		rt.executeLogLevel(cc, cmd.LogLevel)
	} else if cmd.Help != nil {
		rt.executeHelp(cc, cmd.Help)
	} else if cmd.Exit != nil {
		rt.executeExit(cc)
	} else {
		logger.Panicf("unimplemented command: %#v", cmd)
	}
	return
}

// outputConfirms prints the confirms that arrived since the last command, in submission order.
func (rt *Runner) outputConfirms(cc *CommandContext) {
	remaining := rt.pending[:0]
	for _, pc := range rt.pending {
		select {
		case <-pc.p.Done():
			c, _ := pc.p.Wait(context.Background())
			cc.outputf("%s %s\n", pc.label, c)
		default:
			remaining = append(remaining, pc)
		}
	}
	rt.pending = remaining
}

func parseDuration(s string) (radioclock.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		d, err = time.ParseDuration(s + "s") // try parsing as seconds
		if err != nil {
			return 0, errors.Errorf("could not parse time duration: %s", s)
		}
	}
	if d < 0 {
		return 0, errors.Errorf("negative time duration: %s", s)
	}
	return radioclock.Duration(d), nil
}

func payload(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i)
	}
	return b
}

func encodeFrame(df *wpan.DataFrame) ([]byte, error) {
	psdu := make([]byte, df.EncodedLen())
	n, err := df.Encode(psdu)
	if err != nil {
		return nil, err
	}
	return psdu[:n], nil
}

func (rt *Runner) executeSend(cc *CommandContext, cmd *SendCmd) {
	if cmd.Handle < 0 || cmd.Handle > 0xff {
		cc.errorf("invalid msdu handle: %d", cmd.Handle)
		return
	}
	values := rt.sim.Pib().Snapshot()

	df := wpan.DataFrame{
		PanId:        values.PanId,
		DstAddrShort: PeerAddress,
		SrcAddrShort: values.ShortAddress,
		AckRequest:   cmd.NoAck == nil && values.AutoRequestAck,
		Payload:      payload(defaultPayloadLen),
	}
	if cmd.Dst != nil {
		df.DstAddrShort = uint16(*cmd.Dst)
	}
	if df.DstAddrShort == 0xffff {
		df.AckRequest = false
	}
	if values.ShortAddress >= 0xfffe {
		df.SrcAddrExtended = values.ExtendedAddress
	}
	if cmd.Len != nil {
		if *cmd.Len < 0 {
			cc.errorf("invalid payload length: %d", *cmd.Len)
			return
		}
		df.Payload = payload(*cmd.Len)
	}
	if cmd.Seq != nil {
		df.Seq = uint8(*cmd.Seq)
	} else {
		df.Seq = rt.sim.Pib().NextDsn()
	}

	psdu, err := encodeFrame(&df)
	if err != nil {
		cc.error(err)
		return
	}
	p, err := rt.sim.Client().TrySendData(uint8(cmd.Handle), psdu, df.Seq, df.AckRequest)
	if errors.Is(err, mac.ErrNoSlot) {
		cc.outputf("send %d %s\n", cmd.Handle, mac.Confirm{Op: mac.OpData, Handle: uint8(cmd.Handle), Status: mac.StatusTransactionOverflow})
		return
	} else if err != nil {
		cc.error(err)
		return
	}
	rt.pending = append(rt.pending, pendingConfirm{label: fmt.Sprintf("send %d", cmd.Handle), p: p})
}

func (rt *Runner) executeInject(cc *CommandContext, cmd *InjectCmd) {
	values := rt.sim.Pib().Snapshot()

	df := wpan.DataFrame{
		PanId:        values.PanId,
		DstAddrShort: values.ShortAddress,
		SrcAddrShort: PeerAddress,
		AckRequest:   cmd.NoAck == nil,
		Payload:      payload(defaultPayloadLen),
	}
	if cmd.Len != nil {
		if *cmd.Len < 0 {
			cc.errorf("invalid payload length: %d", *cmd.Len)
			return
		}
		df.Payload = payload(*cmd.Len)
	}
	if cmd.Seq != nil {
		df.Seq = uint8(*cmd.Seq)
	} else {
		df.Seq = rt.injectSeq
		rt.injectSeq++
	}

	var delay radioclock.Duration
	if cmd.Delay != nil {
		var err error
		if delay, err = parseDuration(*cmd.Delay); err != nil {
			cc.error(err)
			return
		}
	}

	psdu, err := encodeFrame(&df)
	if err != nil {
		cc.error(err)
		return
	}
	cc.error(rt.sim.InjectFrame(delay, psdu))
}

func (rt *Runner) executeIndications(cc *CommandContext) {
	var items []indicationItem
	for {
		ind, ok := rt.sim.Client().TryReceiveIndication()
		if !ok {
			break
		}
		items = append(items, indicationItem{
			Seq:          ind.Seq,
			Len:          len(ind.Psdu),
			RMarker:      ind.RMarker.String(),
			AckRequested: ind.AckRequested,
		})
	}
	if len(items) > 0 {
		cc.outputItemsAsYaml(items)
	}
}

func (rt *Runner) scriptedMedium(cc *CommandContext) *radiomodel.ScriptedMedium {
	medium := rt.sim.Radio().Medium()
	m, ok := medium.(*radiomodel.ScriptedMedium)
	if !ok {
		cc.errorf("medium %s cannot be scripted", medium.GetName())
		return nil
	}
	return m
}

func (rt *Runner) executeAcks(cc *CommandContext, cmd *AcksCmd) {
	m := rt.scriptedMedium(cc)
	if m == nil {
		return
	}
	received := make([]bool, len(cmd.Received))
	for i, r := range cmd.Received {
		received[i] = r == "y" || r == "yes"
	}
	m.ScriptAcks(received...)
}

func (rt *Runner) executeBusy(cc *CommandContext, cmd *BusyCmd) {
	if cmd.Count < 0 {
		cc.errorf("invalid count: %d", cmd.Count)
		return
	}
	if m := rt.scriptedMedium(cc); m != nil {
		m.ScriptBusy(cmd.Count)
	}
}

// request submits a management request and waits for its confirm, which must be SUCCESS.
func (rt *Runner) request(cc *CommandContext, req *mac.Request) (mac.Confirm, bool) {
	p, err := rt.sim.Client().TrySubmit(req)
	if err != nil {
		cc.error(errors.Wrapf(err, "%s", req))
		return mac.Confirm{}, false
	}
	rt.sim.Poll()

	ctx, cancel := context.WithTimeout(rt.ctx, requestTimeout)
	defer cancel()
	c, err := p.Wait(ctx)
	if err != nil {
		cc.error(errors.Wrapf(err, "%s", req))
		return c, false
	}
	if c.Status != mac.StatusSuccess {
		cc.errorf("%s", c)
		return c, false
	}
	return c, true
}

func (rt *Runner) executeGet(cc *CommandContext, cmd *GetCmd) {
	attr, err := pib.ParseAttribute(cmd.Attr.Attribute())
	if err != nil {
		cc.error(err)
		return
	}
	if c, ok := rt.request(cc, &mac.Request{Op: mac.OpGet, Attr: attr}); ok {
		cc.outputf("%s=%d\n", attr, c.Value)
	}
}

func (rt *Runner) executeSet(cc *CommandContext, cmd *SetCmd) {
	attr, err := pib.ParseAttribute(cmd.Attr.Attribute())
	if err != nil {
		cc.error(err)
		return
	}
	rt.request(cc, &mac.Request{Op: mac.OpSet, Attr: attr, Value: cmd.Value})
}

func (rt *Runner) executePurge(cc *CommandContext, cmd *PurgeCmd) {
	if cmd.Handle < 0 || cmd.Handle > 0xff {
		cc.errorf("invalid msdu handle: %d", cmd.Handle)
		return
	}
	rt.request(cc, &mac.Request{Op: mac.OpPurge, Handle: uint8(cmd.Handle)})
}

func (rt *Runner) executeReset(cc *CommandContext, cmd *ResetCmd) {
	rt.request(cc, &mac.Request{Op: mac.OpReset, SetDefaultPib: cmd.Default != nil})
}

func (rt *Runner) executeRxEnable(cc *CommandContext, cmd *RxEnableCmd) {
	rt.request(cc, &mac.Request{Op: mac.OpRxEnable, RxOn: cmd.State == "on"})
}

func (rt *Runner) executeGo(cc *CommandContext, cmd *GoCmd) {
	d, err := parseDuration(cmd.Time)
	if err != nil {
		cc.error(err)
		return
	}
	cc.error(rt.sim.Go(d))
}

func (rt *Runner) executeKpi(cc *CommandContext, cmd *KpiCmd) {
	km := rt.sim.Kpi()
	if cmd.Save != nil {
		if cmd.Save.Path != nil {
			km.SaveFile(*cmd.Save.Path)
		} else {
			km.SaveDefaultFile()
		}
		return
	}
	if cmd.Action == nil {
		cc.outputYaml(km.Data())
		return
	}

	switch *cmd.Action {
	case "start":
		if km.IsRunning() {
			cc.errorf("kpi collection already running")
			return
		}
		km.Start()
	case "stop":
		if !km.IsRunning() {
			cc.errorf("kpi collection not running")
			return
		}
		km.Stop()
	}
}

func (rt *Runner) executeEnergy(cc *CommandContext, cmd *EnergyCmd) {
	if cmd.Save == nil {
		cc.outputYaml(rt.sim.Report().Energy)
		return
	}
	if cmd.Save.Path == nil {
		cc.error(rt.sim.SaveEnergy())
		return
	}
	cc.error(rt.sim.Energy().SaveFile(*cmd.Save.Path, rt.sim.Now().Micros()))
}

func (rt *Runner) executeConfig(cc *CommandContext, cmd *ConfigCmd) {
	if cmd.Save != nil {
		cc.error(rt.sim.SaveConfig(*cmd.Save))
		return
	}
	format := simulation.FormatYaml
	if cmd.Format != nil && *cmd.Format == "toml" {
		format = simulation.FormatToml
	}
	data, err := rt.sim.ExportConfig(format)
	if err != nil {
		cc.error(err)
		return
	}
	cc.outputStr(string(data))
}

func (rt *Runner) executeLogLevel(cc *CommandContext, cmd *LogLevelCmd) {
	if cmd.Level == nil {
		cc.outputf("%s\n", logger.GetLevel().String())
		return
	}
	lv, err := logger.ParseLevelString(*cmd.Level)
	if err != nil {
		cc.error(err)
		return
	}
	logger.SetLevel(lv)
}

func (rt *Runner) executeHelp(cc *CommandContext, cmd *HelpCmd) {
	if len(cmd.Commands) == 0 {
		cc.outputStr(rt.help.outputGeneralHelp())
	} else {
		cc.outputStr(rt.help.outputHelp(cmd.Commands))
	}
}

func (rt *Runner) executeExit(cc *CommandContext) {
	rt.exited = true
	rt.ctx.Cancel("exit")
}
