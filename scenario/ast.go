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

package scenario

import (
	"strings"

	"github.com/alecthomas/participle"
)

// noinspection GoStructTag
type Command struct {
	Acks        *AcksCmd        `  @@` //nolint
	Busy        *BusyCmd        `| @@` //nolint
	Config      *ConfigCmd      `| @@` //nolint
	Energy      *EnergyCmd      `| @@` //nolint
	Exit        *ExitCmd        `| @@` //nolint
	Get         *GetCmd         `| @@` //nolint
	Go          *GoCmd          `| @@` //nolint
	Help        *HelpCmd        `| @@` //nolint
	Indications *IndicationsCmd `| @@` //nolint
	Inject      *InjectCmd      `| @@` //nolint
	Kpi         *KpiCmd         `| @@` //nolint
	LogLevel    *LogLevelCmd    `| @@` //nolint
	Purge       *PurgeCmd       `| @@` //nolint
	Reset       *ResetCmd       `| @@` //nolint
	RxEnable    *RxEnableCmd    `| @@` //nolint
	Send        *SendCmd        `| @@` //nolint
	Set         *SetCmd         `| @@` //nolint
	Stats       *StatsCmd       `| @@` //nolint
	Time        *TimeCmd        `| @@` //nolint
}

// noinspection GoStructTag
type AcksCmd struct {
	Cmd      struct{} `"acks"`                           //nolint
	Received []string `{ @( "y" | "n" | "yes" | "no" ) }` //nolint
}

// noinspection GoStructTag
type BusyCmd struct {
	Cmd   struct{} `"busy"` //nolint
	Count int      `@Int`   //nolint
}

// noinspection GoStructTag
type ConfigCmd struct {
	Cmd    struct{} `"config"`              //nolint
	Format *string  `[ @( "yaml" | "toml" )` //nolint
	Save   *string  `| "save" @String ]`     //nolint
}

// noinspection GoStructTag
type EnergyCmd struct {
	Cmd  struct{}       `"energy"` //nolint
	Save *EnergySaveArg `[ @@ ]`   //nolint
}

// noinspection GoStructTag
type EnergySaveArg struct {
	Dummy struct{} `"save"`       //nolint
	Path  *string  `[ @String ]` //nolint
}

// noinspection GoStructTag
type ExitCmd struct {
	Cmd struct{} `"exit"` //nolint
}

// noinspection GoStructTag
type AttrName struct {
	Name string `@( Ident | String )` //nolint
}

// Attribute returns the PIB attribute name, which may be written with underscores in place of dashes.
func (a AttrName) Attribute() string {
	return strings.ReplaceAll(a.Name, "_", "-")
}

// noinspection GoStructTag
type GetCmd struct {
	Cmd  struct{} `"get"` //nolint
	Attr AttrName `@@`    //nolint
}

// noinspection GoStructTag
type SetCmd struct {
	Cmd   struct{} `"set"` //nolint
	Attr  AttrName `@@`    //nolint
	Value uint64   `@Int`  //nolint
}

// noinspection GoStructTag
type GoCmd struct {
	Cmd  struct{} `"go"`                                //nolint
	Time string   `@( (Int|Float) ["us"|"ms"|"s"|"m"] )` //nolint
}

// noinspection GoStructTag
type HelpCmd struct {
	Cmd      struct{} `"help"`     //nolint
	Commands []string `{ @Ident }` //nolint
}

// noinspection GoStructTag
type IndicationsCmd struct {
	Cmd struct{} `"recv"` //nolint
}

// noinspection GoStructTag
type InjectCmd struct {
	Cmd   struct{}  `"inject"`                                  //nolint
	Seq   *int      `[ "seq" @Int ]`                            //nolint
	Len   *int      `[ "len" @Int ]`                            //nolint
	NoAck *NoAckArg `[ @@ ]`                                    //nolint
	Delay *string   `[ "in" @( (Int|Float) ["us"|"ms"|"s"] ) ]` //nolint
}

// noinspection GoStructTag
type KpiCmd struct {
	Cmd    struct{}    `"kpi"`                  //nolint
	Action *string     `[ @( "start" | "stop" )` //nolint
	Save   *KpiSaveArg `| @@ ]`                  //nolint
}

// noinspection GoStructTag
type KpiSaveArg struct {
	Dummy struct{} `"save"`       //nolint
	Path  *string  `[ @String ]` //nolint
}

// noinspection GoStructTag
type LogLevelCmd struct {
	Cmd   struct{} `"log"`       //nolint
	Level *string  `[ @Ident ]` //nolint
}

// noinspection GoStructTag
type NoAckArg struct {
	Dummy struct{} `"noack"` //nolint
}

// noinspection GoStructTag
type PurgeCmd struct {
	Cmd    struct{} `"purge"` //nolint
	Handle int      `@Int`    //nolint
}

// noinspection GoStructTag
type ResetCmd struct {
	Cmd     struct{} `"reset"`        //nolint
	Default *string  `[ @"default" ]` //nolint
}

// noinspection GoStructTag
type RxEnableCmd struct {
	Cmd   struct{} `"rxenable"`        //nolint
	State string   `@( "on" | "off" )` //nolint
}

// noinspection GoStructTag
type SendCmd struct {
	Cmd    struct{}  `"send"`         //nolint
	Handle int       `@Int`           //nolint
	Seq    *int      `[ "seq" @Int ]` //nolint
	Len    *int      `[ "len" @Int ]` //nolint
	Dst    *int      `[ "dst" @Int ]` //nolint
	NoAck  *NoAckArg `[ @@ ]`         //nolint
}

// noinspection GoStructTag
type StatsCmd struct {
	Cmd struct{} `"stats"` //nolint
}

// noinspection GoStructTag
type TimeCmd struct {
	Cmd struct{} `"time"` //nolint
}

var (
	commandParser = participle.MustBuild(&Command{})
)

func ParseBytes(b []byte, cmd *Command) error {
	err := commandParser.ParseBytes(b, cmd)
	return err
}
