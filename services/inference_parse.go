package services

import (
	"math"
	"strconv"
	"strings"

	"truthlens/models"
)

// InferenceResult is the model reply after tolerant decoding. Fields the
// reply omits or mistypes keep their defaults.
type InferenceResult struct {
	Verdict     models.Verdict
	RiskScore   int
	Confidence  float64
	Narrative   string
	Tactics     []string
	FactChecks  []models.FactCheck
	SourceLinks []models.SourceLink
	// Parsed is false when the reply was not a JSON object at all.
	Parsed bool
}

func defaultInference() InferenceResult {
	return InferenceResult{
		Verdict:     models.VerdictUnverified,
		Tactics:     []string{},
		FactChecks:  []models.FactCheck{},
		SourceLinks: []models.SourceLink{},
	}
}

// ParseInference never fails. A reply that is not JSON leaves every default in
// place and keeps the raw text as the narrative.
func ParseInference(raw string) InferenceResult {
	res := defaultInference()
	body := stripFences(raw)

	fields := decodeObject(body)
	if fields == nil {
		// the model sometimes wraps the object in prose
		if start, end := strings.Index(body, "{"), strings.LastIndex(body, "}"); start != -1 && end > start {
			fields = decodeObject(body[start : end+1])
		}
	}
	if fields == nil {
		res.Narrative = strings.TrimSpace(raw)
		return res
	}
	res.Parsed = true

	if s, ok := fields["verdict"].(string); ok {
		if v, ok := models.ParseVerdict(s); ok {
			res.Verdict = v
		}
	}
	if n, ok := number(fields["risk_score"]); ok {
		res.RiskScore = clampScore(int(n))
	}
	if n, ok := number(fields["confidence"]); ok {
		if n > 1 {
			n /= 100
		}
		res.Confidence = math.Max(0, math.Min(1, n))
	}
	if s, ok := fields["ai_analysis"].(string); ok {
		res.Narrative = strings.TrimSpace(s)
	}
	res.Tactics = stringList(fields["manipulation_tactics"])
	res.FactChecks = factCheckList(fields["fact_checks"])
	res.SourceLinks = sourceList(fields["source_links"])
	return res
}

func decodeObject(s string) map[string]any {
	var fields map[string]any
	if err := json.Unmarshal([]byte(s), &fields); err != nil {
		return nil
	}
	return fields
}

// stripFences removes a leading ``` or ```json and a trailing ```.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if strings.HasPrefix(s, "```json") {
		s = s[len("```json"):]
	} else {
		s = s[len("```"):]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(n), "%"), 64)
		return f, err == nil && !math.IsNaN(f) && !math.IsInf(f, 0)
	}
	return 0, false
}

func stringList(v any) []string {
	out := []string{}
	switch items := v.(type) {
	case []any:
		for _, item := range items {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case string:
		if strings.TrimSpace(items) != "" {
			out = append(out, strings.TrimSpace(items))
		}
	}
	return out
}

func factCheckList(v any) []models.FactCheck {
	out := []models.FactCheck{}
	items, _ := v.([]any)
	for _, item := range items {
		switch f := item.(type) {
		case string:
			if f != "" {
				out = append(out, models.FactCheck{Description: f})
			}
		case map[string]any:
			fc := models.FactCheck{}
			fc.Description, _ = f["description"].(string)
			fc.Rating, _ = f["rating"].(string)
			fc.Publisher, _ = f["publisher"].(string)
			fc.URL, _ = f["url"].(string)
			if fc.Description != "" || fc.URL != "" {
				out = append(out, fc)
			}
		}
	}
	return out
}

func sourceList(v any) []models.SourceLink {
	out := []models.SourceLink{}
	items, _ := v.([]any)
	for _, item := range items {
		switch s := item.(type) {
		case string:
			if strings.HasPrefix(s, "http") {
				out = append(out, models.SourceLink{Name: s, URL: s})
			} else if s != "" {
				out = append(out, models.SourceLink{Description: s})
			}
		case map[string]any:
			link := models.SourceLink{}
			link.Name, _ = s["name"].(string)
			link.URL, _ = s["url"].(string)
			link.Description, _ = s["description"].(string)
			if link.Name == "" {
				link.Name = link.URL
			}
			if link.URL != "" || link.Description != "" {
				out = append(out, link)
			}
		}
	}
	return out
}
