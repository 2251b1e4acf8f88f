package security

import (
	"context"
	"regexp"
	"strings"
)

// Detector is a named threat pattern.
type Detector struct {
	Name     string
	Pattern  *regexp.Regexp
	Severity Severity
	Score    int
}

// Match is a detector hit on a specific request field.
type Match struct {
	Detector string   `json:"detector"`
	Field    string   `json:"field,omitempty"`
	Severity Severity `json:"severity"`
	Score    int      `json:"score"`
}

// Assessment is the outcome of evaluating input against the detector set.
type Assessment struct {
	Matches   []Match `json:"matches"`
	Score     int     `json:"score"`
	Threshold int     `json:"threshold"`
}

// Exceeds reports whether the accumulated score reached the threshold.
func (a Assessment) Exceeds() bool {
	return a.Threshold > 0 && a.Score >= a.Threshold
}

// DefaultDetectors returns the built-in detector set. The patterns are
// coarse on purpose; enforcement layers are expected to tune them.
func DefaultDetectors() []Detector {
	return []Detector{
		{
			Name:     "sql_injection",
			Pattern:  regexp.MustCompile(`(?i)(\bunion\b\s+(all\s+)?\bselect\b|'\s*or\s+'?\d+'?\s*=\s*'?\d+|\bor\b\s+1\s*=\s*1\b|;\s*(drop|delete|truncate|alter)\s+\w+|--\s*$|/\*.*\*/)`),
			Severity: SeverityHigh,
			Score:    60,
		},
		{
			Name:     "xss",
			Pattern:  regexp.MustCompile(`(?i)(<\s*script\b|javascript\s*:|\bon(error|load|click|mouseover|focus)\s*=|<\s*iframe\b|<\s*img[^>]+src\s*=\s*["']?\s*javascript)`),
			Severity: SeverityHigh,
			Score:    50,
		},
		{
			Name:     "path_traversal",
			Pattern:  regexp.MustCompile(`(?i)(\.\./|\.\.\\|%2e%2e(%2f|%5c|/|\\)|\.\.%2f|/etc/passwd\b)`),
			Severity: SeverityMedium,
			Score:    40,
		},
	}
}

// DefaultSuspiciousAgents returns user-agent substrings of common scanners.
func DefaultSuspiciousAgents() []string {
	return []string{
		"sqlmap", "nikto", "nmap", "masscan", "acunetix", "nessus",
		"dirbuster", "gobuster", "wpscan", "havij", "zgrab",
	}
}

// Evaluate runs every detector against input.
func (s *Service) Evaluate(input string) Assessment {
	a := Assessment{Threshold: s.cfg.ScoreThreshold}
	s.evaluateField(&a, "", input)
	return a
}

func (s *Service) evaluateField(a *Assessment, field, input string) {
	if input == "" {
		return
	}
	for _, d := range s.detectors {
		if d.Pattern == nil || !d.Pattern.MatchString(input) {
			continue
		}
		a.Matches = append(a.Matches, Match{
			Detector: d.Name,
			Field:    field,
			Severity: d.Severity,
			Score:    d.Score,
		})
		a.Score += d.Score
	}
}

// IsSuspiciousAgent reports whether ua contains a denylisted substring.
func (s *Service) IsSuspiciousAgent(ua string) bool {
	ua = strings.ToLower(ua)
	if ua == "" {
		return false
	}
	for _, agent := range s.agents {
		if strings.Contains(ua, strings.ToLower(agent)) {
			return true
		}
	}
	return false
}

// Request carries the parts of an inbound request worth inspecting.
type Request struct {
	IP        string
	Identity  string
	UserAgent string
	Path      string
	Query     string
	Body      string
}

// Inspect evaluates a request and logs one event per detector match, plus one
// for a suspicious user agent. Acting on the result is the caller's job.
func (s *Service) Inspect(ctx context.Context, r Request) Assessment {
	a := Assessment{Threshold: s.cfg.ScoreThreshold}
	s.evaluateField(&a, "path", r.Path)
	s.evaluateField(&a, "query", r.Query)
	s.evaluateField(&a, "body", r.Body)

	for _, m := range a.Matches {
		s.LogEvent(ctx, m.Detector, m.Severity, map[string]any{
			"ip":         r.IP,
			"identity":   r.Identity,
			"user_agent": r.UserAgent,
			"field":      m.Field,
			"score":      m.Score,
		})
	}

	if s.IsSuspiciousAgent(r.UserAgent) {
		s.LogEvent(ctx, "suspicious_user_agent", SeverityMedium, map[string]any{
			"ip":         r.IP,
			"identity":   r.Identity,
			"user_agent": r.UserAgent,
		})
	}

	return a
}
