package extraction

import (
	"regexp"
	"strings"
	"time"
)

var (
	issuerPattern    = regexp.MustCompile(`(?i)^(?:issued by|presented by|offered by|certified by|authorized by)[:\s]+(.+)$`)
	recipientPattern = regexp.MustCompile(`(?i)^(?:awarded to|presented to|granted to|this certifies that|this is to certify that)[:\s]+(.+?)(?:\s+has\b.*)?$`)
	skillsPattern    = regexp.MustCompile(`(?i)^skills?(?:\s+(?:covered|acquired|demonstrated))?[:\s]+(.+)$`)
	emailPattern     = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern     = regexp.MustCompile(`\+?\d[\d\s().\-]{7,}\d`)

	monthDayYearPattern = regexp.MustCompile(`(?i)\b(january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sep|sept|oct|nov|dec)\.?\s+(\d{1,2}),?\s+(\d{4})\b`)
	monthYearPattern    = regexp.MustCompile(`(?i)\b(january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sep|sept|oct|nov|dec)\.?\s+(\d{4})\b`)
	isoDatePattern      = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	slashDatePattern    = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)

	academicKeywords = []string{"bachelor", "master of", "masters", "doctor", "phd", "ph.d", "diploma", "degree", "b.sc", "m.sc", "bsc", "msc"}
)

// ParseFields applies heuristic field parsing to raw certificate text.
func ParseFields(raw string) Fields {
	fields := Fields{RawText: raw}

	lines := splitLines(raw)
	for _, line := range lines {
		if fields.Title == "" {
			fields.Title = line
		}
		if fields.Issuer == "" {
			if m := issuerPattern.FindStringSubmatch(line); m != nil {
				fields.Issuer = strings.TrimRight(strings.TrimSpace(m[1]), ".")
			}
		}
		if fields.Recipient == "" {
			if m := recipientPattern.FindStringSubmatch(line); m != nil {
				fields.Recipient = strings.TrimRight(strings.TrimSpace(m[1]), ".")
			}
		}
		if fields.Skills == nil {
			if m := skillsPattern.FindStringSubmatch(line); m != nil {
				fields.Skills = splitSkills(m[1])
			}
		}
	}

	if m := emailPattern.FindString(raw); m != "" {
		fields.Email = m
	}
	// Phone matching is greedy; skip anything that is really a date.
	for _, candidate := range phonePattern.FindAllString(raw, -1) {
		if isoDatePattern.MatchString(candidate) || slashDatePattern.MatchString(candidate) {
			continue
		}
		fields.Phone = strings.TrimSpace(candidate)
		break
	}

	if issued := parseDate(raw); issued != nil {
		fields.IssuedAt = issued
	}

	fields.Academic = isAcademic(fields.Title, fields.Issuer)
	return fields
}

func splitLines(raw string) []string {
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func splitSkills(raw string) []string {
	raw = strings.NewReplacer(";", ",", "•", ",", "|", ",").Replace(raw)
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(strings.TrimRight(part, ".")); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseDate(raw string) *time.Time {
	if m := monthDayYearPattern.FindStringSubmatch(raw); m != nil {
		candidate := m[1] + " " + m[2] + ", " + m[3]
		for _, layout := range []string{"January 2, 2006", "Jan 2, 2006"} {
			if ts, err := time.Parse(layout, normalizeMonth(candidate)); err == nil {
				return &ts
			}
		}
	}
	if m := isoDatePattern.FindString(raw); m != "" {
		if ts, err := time.Parse("2006-01-02", m); err == nil {
			return &ts
		}
	}
	if m := slashDatePattern.FindStringSubmatch(raw); m != nil {
		candidate := m[1] + "/" + m[2] + "/" + m[3]
		for _, layout := range []string{"1/2/2006", "01/02/2006"} {
			if ts, err := time.Parse(layout, candidate); err == nil {
				return &ts
			}
		}
	}
	if m := monthYearPattern.FindStringSubmatch(raw); m != nil {
		for _, layout := range []string{"January 2006", "Jan 2006"} {
			if ts, err := time.Parse(layout, normalizeMonth(m[1]+" "+m[2])); err == nil {
				return &ts
			}
		}
	}
	return nil
}

// normalizeMonth title-cases the month token so time.Parse accepts it.
func normalizeMonth(candidate string) string {
	if candidate == "" {
		return candidate
	}
	lower := strings.ToLower(candidate)
	return strings.ToUpper(lower[:1]) + lower[1:]
}

func isAcademic(title, issuer string) bool {
	haystack := strings.ToLower(title + " " + issuer)
	for _, kw := range academicKeywords {
		if strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}
