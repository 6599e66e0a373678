//
//  Copyright 2023 PayPal Inc.
//
//  Licensed to the Apache Software Foundation (ASF) under one or more
//  contributor license agreements.  See the NOTICE file distributed with
//  this work for additional information regarding copyright ownership.
//  The ASF licenses this file to You under the Apache License, Version 2.0
//  (the "License"); you may not use this file except in compliance with
//  the License.  You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.
//

package stats

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"os"
	"time"

	"tchannel/pkg/logging"
)

type (
	IHtmlStatsSection interface {
		Title() template.HTML
		Body() template.HTML
	}

	HtmlStats struct {
		Title       string
		Version     string
		ChannelName string
		Sections    []IHtmlStatsSection
	}

	ServerInfo struct {
		Name      string
		StartTime time.Time
	}

	// PeerInfo describes one connection of a channel as shown on the stats page.
	PeerInfo struct {
		Name       string
		RemoteAddr string
		Direction  string
		State      string
		InPending  int
		OutPending int
	}

	PeersSection struct {
		List func() []PeerInfo
	}

	CallStatsSection struct {
		Stats *CallStats
	}
)

func (s *ServerInfo) Title() template.HTML {
	return template.HTML("Server Info")
}

func (s *ServerInfo) Body() template.HTML {
	var buf bytes.Buffer
	buf.WriteString(
		`<div id="id-server-info"><table title="server-info">
<tr><th>Channel</th><th>Start Time</th><th>Process ID</th></tr>`)

	fmt.Fprintf(&buf, "<tr><td>%s</td><td>%s</td><td>%d</td></tr></table></div>",
		template.HTMLEscapeString(s.Name), s.StartTime.Format("2006-01-02 15:04:05"), os.Getpid())

	return template.HTML(buf.String())
}

func (s *PeersSection) Title() template.HTML {
	return template.HTML("Peers")
}

func (s *PeersSection) Body() template.HTML {
	var buf bytes.Buffer
	buf.WriteString(`<div id="id-peers"><table title="peers">
<tr><th>Remote Name</th><th>Remote Address</th><th>Direction</th><th>State</th><th>In Pending</th><th>Out Pending</th></tr>`)
	if s.List != nil {
		for _, p := range s.List() {
			fmt.Fprintf(&buf, "<tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%d</td><td>%d</td></tr>",
				template.HTMLEscapeString(p.Name), template.HTMLEscapeString(p.RemoteAddr),
				p.Direction, p.State, p.InPending, p.OutPending)
		}
	}
	buf.WriteString("</table></div>")
	return template.HTML(buf.String())
}

func (s *CallStatsSection) Title() template.HTML {
	return template.HTML("Outbound Calls")
}

func (s *CallStatsSection) Body() template.HTML {
	var buf bytes.Buffer
	snap := s.Stats.Snapshot()
	fmt.Fprintf(&buf, `<div id="id-call-stats"><p>since %s</p><table title="call-stats">
<tr><th>Operation</th><th>Calls</th><th>Errors</th><th>Timeouts</th><th>Avg</th><th>Min</th><th>Max</th><th>50%%</th><th>95%%</th><th>99%%</th></tr>`,
		snap.Since.Format("2006-01-02 15:04:05"))
	row := func(d *StatsData) {
		fmt.Fprintf(&buf, "<tr><td>%s</td><td>%d</td><td>%d</td><td>%d</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>",
			template.HTMLEscapeString(d.Operation), d.NumRequests, d.NumErrors, d.NumTimeouts,
			HtmlDurationEscapeString(d.AvgLatency), HtmlDurationEscapeString(d.MinLatency),
			HtmlDurationEscapeString(d.MaxLatency), HtmlDurationEscapeString(d.P50Latency),
			HtmlDurationEscapeString(d.P95Latency), HtmlDurationEscapeString(d.P99Latency))
	}
	for i := range snap.Ops {
		row(&snap.Ops[i])
	}
	row(&snap.All)
	buf.WriteString("</table></div>")
	return template.HTML(buf.String())
}

func (s *HtmlStats) AddSection(sec IHtmlStatsSection) {
	s.Sections = append(s.Sections, sec)
}

func (s *HtmlStats) WriteTo(w io.Writer) error {
	return HtmlStatsTmpl.Execute(w, s)
}

// ServeHTTP renders the page. A query of ?sections=only omits the page frame.
func (s *HtmlStats) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	var err error
	if r.URL.Query().Get("sections") == "only" {
		err = HtmlSectionsTmpl.Execute(w, s)
	} else {
		err = s.WriteTo(w)
	}
	if err != nil {
		logging.Errorf("stats page: %s", err)
	}
}
