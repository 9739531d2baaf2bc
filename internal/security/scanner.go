// Package security flags analysis output that mentions security-relevant
// activity, using a fixed case-insensitive keyword list.
package security

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"vidsentry/internal/models"
)

// SuspiciousKeywords is the fixed list matched against the analysis text.
var SuspiciousKeywords = []string{
	"intruder",
	"break-in",
	"suspicious",
	"unknown person",
	"stranger",
	"trespassing",
	"trespasser",
	"break in",
	"breaking in",
	"forced entry",
	"unauthorized",
	"burglar",
	"theft",
	"stealing",
	"night",
	"masked",
}

const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
	SeverityLow    = "low"
)

// Report is the scan outcome for one analysis payload.
type Report struct {
	HasSuspiciousActivity bool     `json:"hasSuspiciousActivity"`
	Flags                 []string `json:"flags"`
	Timestamps            []string `json:"timestamps"`
	Severity              string   `json:"severity"`
}

// Scan checks main_subject, each key event, and the overall summary for
// suspicious keywords. Malformed or non-JSON input yields the zero result
// rather than an error.
func Scan(analysis string) Report {
	report := Report{Flags: []string{}, Timestamps: []string{}, Severity: SeverityLow}

	var data models.VideoReport
	if err := json.Unmarshal([]byte(stripFences(analysis)), &data); err != nil {
		log.Warn().Err(err).Msg("analysis payload is not valid JSON, skipping security scan")
		return report
	}

	if data.MainSubject != "" {
		lower := strings.ToLower(data.MainSubject)
		for _, keyword := range SuspiciousKeywords {
			if strings.Contains(lower, keyword) {
				report.Flags = append(report.Flags, fmt.Sprintf("Suspicious activity detected in main subject: %s", keyword))
			}
		}
	}

	for _, event := range data.KeyEvents {
		if event.Event == "" {
			continue
		}
		lower := strings.ToLower(event.Event)
		for _, keyword := range SuspiciousKeywords {
			if strings.Contains(lower, keyword) {
				report.Flags = append(report.Flags, fmt.Sprintf("Suspicious activity detected at %s: %s", event.Timestamp, keyword))
				report.Timestamps = append(report.Timestamps, event.Timestamp)
			}
		}
	}

	if data.OverallSummary != "" {
		lower := strings.ToLower(data.OverallSummary)
		for _, keyword := range SuspiciousKeywords {
			if strings.Contains(lower, keyword) {
				report.Flags = append(report.Flags, fmt.Sprintf("Suspicious activity detected in summary: %s", keyword))
			}
		}
	}

	report.HasSuspiciousActivity = len(report.Flags) > 0
	switch {
	case len(report.Flags) > 2:
		report.Severity = SeverityHigh
	case len(report.Flags) > 0:
		report.Severity = SeverityMedium
	}
	return report
}

// stripFences removes a ```json ... ``` wrapper some model responses carry.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	if len(lines) < 3 {
		return text
	}
	end := len(lines) - 1
	for i := len(lines) - 1; i > 0; i-- {
		if strings.TrimSpace(lines[i]) == "```" {
			end = i
			break
		}
	}
	return strings.Join(lines[1:end], "\n")
}
