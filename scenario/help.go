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
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/mitchellh/go-wordwrap"
	"golang.org/x/term"
)

const (
	defaultTermWidth = 80
	helpNameColumn   = 12
	helpBodyIndent   = "  "
)

var (
	topicHeaderPattern = regexp.MustCompile(`^###\s+(\S+)`)
	mdLinkPattern      = regexp.MustCompile(`\(#[a-z-]+\)`)
)

//go:embed README.md
var commandReference string

// helpTopic is one `### <command>` section of the command reference.
type helpTopic struct {
	name    string
	summary string
	body    []string
}

// Help renders the embedded command reference.
type Help struct {
	topics map[string]*helpTopic
	names  []string
}

func newHelp() Help {
	h := Help{topics: parseCommandReference(commandReference)}
	for name := range h.topics {
		h.names = append(h.names, name)
	}
	sort.Strings(h.names)
	return h
}

// TermWidth returns the width of the terminal on stdout, or 80 if stdout is not a terminal.
func TermWidth() uint {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return defaultTermWidth
	}
	if width, _, err := term.GetSize(fd); err == nil && width > 0 {
		return uint(width)
	}
	return defaultTermWidth
}

// outputGeneralHelp lists every command with the first sentence of its description.
func (help *Help) outputGeneralHelp() string {
	var sb strings.Builder
	for _, name := range help.names {
		_, _ = fmt.Fprintf(&sb, "%-*s %s\n", helpNameColumn, name, help.topics[name].summary)
	}
	sb.WriteString(wordwrap.WrapString("\nFor detailed help per command, use: 'help <command>'\n", TermWidth()))
	return sb.String()
}

// outputHelp prints the full reference of the given commands, in the given order.
func (help *Help) outputHelp(commands []string) string {
	width := TermWidth() - uint(len(helpBodyIndent))
	var sb strings.Builder
	for _, name := range commands {
		sb.WriteString(name + "\n")
		topic, ok := help.topics[name]
		if !ok {
			sb.WriteString(helpBodyIndent + "(Non-existent command.)\n")
			continue
		}
		for _, line := range topic.body {
			for _, wrapped := range strings.Split(wordwrap.WrapString(line, width), "\n") {
				sb.WriteString(helpBodyIndent + wrapped + "\n")
			}
		}
	}
	return sb.String()
}

// parseCommandReference splits the markdown reference into topics. Text before the
// first topic header is the general introduction and is skipped.
func parseCommandReference(md string) map[string]*helpTopic {
	topics := make(map[string]*helpTopic)
	var cur *helpTopic
	inBlock := false

	for _, line := range strings.Split(md, "\n") {
		line = strings.TrimRight(line, " \t\r")
		if m := topicHeaderPattern.FindStringSubmatch(line); m != nil {
			cur = &helpTopic{name: m[1]}
			topics[cur.name] = cur
			inBlock = false
			continue
		}
		if cur == nil {
			continue
		}

		switch strings.TrimSpace(line) {
		case "```shell":
			cur.body = append(cur.body, "", "Definition:")
			inBlock = true
			continue
		case "```bash":
			cur.body = append(cur.body, "", "Example:")
			inBlock = true
			continue
		case "```":
			inBlock = false
			continue
		}

		if inBlock {
			cur.body = append(cur.body, "  "+line)
			continue
		}
		text := unquoteMarkdown(strings.TrimSpace(line))
		if text == "" {
			continue
		}
		cur.body = append(cur.body, text)
		if cur.summary == "" {
			cur.summary = firstSentence(text)
		}
	}
	return topics
}

func firstSentence(s string) string {
	if idx := strings.Index(s, ". "); idx > 0 {
		return s[:idx+1]
	}
	return s
}

func unquoteMarkdown(md string) string {
	md = strings.ReplaceAll(md, "\\", "")
	md = strings.ReplaceAll(md, "`", "")
	return mdLinkPattern.ReplaceAllString(md, "")
}
