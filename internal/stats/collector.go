// Package stats aggregates audit entries into the counters exposed by the
// /stats endpoint and the CLI.
package stats

import (
	"time"

	"cloak/internal/audit"
)

type Stats struct {
	Status        string       `json:"status"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	Requests      RequestStats `json:"requests"`
	Entities      EntityStats  `json:"entities"`
	Latency       LatencyStats `json:"latency"`
	Recent        []RecentDoc  `json:"recent,omitempty"`
}

type RequestStats struct {
	Total     int     `json:"total"`
	Failed    int     `json:"failed"`
	PerMinute float64 `json:"per_minute"`
}

type EntityStats struct {
	Total   int            `json:"total"`
	ByLabel map[string]int `json:"by_label"`
}

type LatencyStats struct {
	MeanMs float64 `json:"mean_ms"`
	MaxMs  float64 `json:"max_ms"`
}

type RecentDoc struct {
	Timestamp string  `json:"timestamp"`
	DocLen    int     `json:"doc_len"`
	Entities  int     `json:"entities"`
	Strategy  string  `json:"strategy,omitempty"`
	ElapsedMs float64 `json:"elapsed_ms"`
	Status    string  `json:"status"`
}

type Options struct {
	Status  string
	Uptime  time.Duration
	RecentN int
}

func CollectFromEntries(entries []audit.Entry, opts Options) Stats {
	recentN := opts.RecentN
	if recentN <= 0 {
		recentN = 20
	}

	out := Stats{
		Status:        opts.Status,
		UptimeSeconds: int64(opts.Uptime.Seconds()),
		Entities:      EntityStats{ByLabel: map[string]int{}},
	}

	var elapsedSum float64
	for _, e := range entries {
		out.Requests.Total++
		if e.Status != "ok" {
			out.Requests.Failed++
		}
		out.Entities.Total += e.Entities
		for label, n := range e.ByLabel {
			out.Entities.ByLabel[label] += n
		}
		elapsedSum += e.ElapsedMs
		if e.ElapsedMs > out.Latency.MaxMs {
			out.Latency.MaxMs = e.ElapsedMs
		}
	}
	if out.Requests.Total > 0 {
		out.Latency.MeanMs = elapsedSum / float64(out.Requests.Total)
	}
	if minutes := opts.Uptime.Minutes(); minutes > 0 {
		out.Requests.PerMinute = float64(out.Requests.Total) / minutes
	}

	start := len(entries) - recentN
	if start < 0 {
		start = 0
	}
	for _, e := range entries[start:] {
		out.Recent = append(out.Recent, RecentDoc{
			Timestamp: e.Timestamp,
			DocLen:    e.DocLen,
			Entities:  e.Entities,
			Strategy:  e.Strategy,
			ElapsedMs: e.ElapsedMs,
			Status:    e.Status,
		})
	}
	return out
}
