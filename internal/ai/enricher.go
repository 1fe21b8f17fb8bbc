package ai

import (
	"context"
	"fmt"
	"log"
	"strings"
)

// Enricher runs the enrichment prompts against a completion backend.
type Enricher struct {
	completer Completer
}

func NewEnricher(completer Completer) *Enricher {
	return &Enricher{completer: completer}
}

const extractionPrompt = `You are extracting facts about a church from its website text.

Church: %s (%s, %s)

Website text:
---
%s
---

Return ONLY a JSON object with these fields. Use null or omit a field when the text does not say.
{
  "denomination": "string",
  "service_times": [{"day": "Sunday", "time": "10:00 AM", "name": "Worship Service"}],
  "worship_styles": ["contemporary", "traditional"],
  "pastor_name": "string",
  "founded_year": 1985,
  "has_youth_ministry": true,
  "has_childrens_ministry": true,
  "has_small_groups": true,
  "email": "string",
  "phone": "string"
}`

// ExtractDetails pulls structured facts from website text. Extraction is
// best-effort: a failed completion or unparseable model output degrades to
// an empty extraction rather than an error, since the rest of enrichment
// can still proceed.
func (e *Enricher) ExtractDetails(ctx context.Context, cc ChurchContext) (*Extraction, error) {
	if strings.TrimSpace(cc.WebsiteText) == "" {
		return &Extraction{}, nil
	}

	prompt := fmt.Sprintf(extractionPrompt, cc.Name, cc.City, cc.State, cc.WebsiteText)
	raw, err := e.completer.Complete(ctx, prompt)
	if err != nil {
		log.Printf("[AI] Extraction call failed, continuing without facts: %v", err)
		return &Extraction{}, nil
	}

	var ext Extraction
	if err := parseJSONObject(raw, &ext); err != nil {
		log.Printf("[AI] Extraction output was not parseable JSON, continuing without facts: %v", err)
		return &Extraction{}, nil
	}
	return &ext, nil
}

const generationPrompt = `Write content for a church directory listing.

Church: %s
Location: %s, %s
Denomination: %s
%s
Return ONLY a JSON object:
{
  "description": "2-3 sentence factual description of the church",
  "what_to_expect": "2-3 sentences telling a first-time visitor what a typical service is like"
}

Be warm but factual. Never invent specifics the context does not support.`

// GenerateContent writes the description and what-to-expect sections in
// one completion. When the combined call yields unusable output, each
// section is retried individually so one bad field does not blank both.
func (e *Enricher) GenerateContent(ctx context.Context, cc ChurchContext, ext *Extraction) (*Generated, error) {
	prompt := fmt.Sprintf(generationPrompt, cc.Name, cc.City, cc.State,
		firstNonEmpty(ext.Denomination, cc.Denomination, "unknown"),
		contextNotes(cc, ext))

	raw, err := e.completer.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generation failed: %w", err)
	}

	var gen Generated
	if err := parseJSONObject(raw, &gen); err != nil {
		log.Printf("[AI] Combined generation unparseable, falling back to per-section prompts: %v", err)
		return e.generateSections(ctx, cc), nil
	}
	if gen.Description == "" || gen.WhatToExpect == "" {
		fallback := e.generateSections(ctx, cc)
		if gen.Description == "" {
			gen.Description = fallback.Description
		}
		if gen.WhatToExpect == "" {
			gen.WhatToExpect = fallback.WhatToExpect
		}
	}
	return &gen, nil
}

// generateSections prompts for each section on its own. The sections fail
// independently; an unproducible section stays empty.
func (e *Enricher) generateSections(ctx context.Context, cc ChurchContext) *Generated {
	gen := &Generated{}

	desc, err := e.completer.Complete(ctx, fmt.Sprintf(
		"Write a 2-3 sentence factual description of %s, a church in %s, %s. Return only the prose, no preamble.",
		cc.Name, cc.City, cc.State))
	if err != nil {
		log.Printf("[AI] Description generation failed, leaving it empty: %v", err)
	} else {
		gen.Description = strings.TrimSpace(desc)
	}

	expect, err := e.completer.Complete(ctx, fmt.Sprintf(
		"In 2-3 sentences, tell a first-time visitor what to expect at a typical service of %s in %s, %s. Return only the prose, no preamble.",
		cc.Name, cc.City, cc.State))
	if err != nil {
		log.Printf("[AI] What-to-expect generation failed, leaving it empty: %v", err)
	} else {
		gen.WhatToExpect = strings.TrimSpace(expect)
	}

	return gen
}

func contextNotes(cc ChurchContext, ext *Extraction) string {
	var b strings.Builder
	if cc.Website != "" {
		fmt.Fprintf(&b, "Website: %s\n", cc.Website)
	}
	if ext.PastorName != "" {
		fmt.Fprintf(&b, "Pastor: %s\n", ext.PastorName)
	}
	if len(ext.WorshipStyles) > 0 {
		fmt.Fprintf(&b, "Worship style: %s\n", strings.Join(ext.WorshipStyles, ", "))
	}
	if len(ext.ServiceTimes) > 0 {
		fmt.Fprintf(&b, "Services: ")
		for i, st := range ext.ServiceTimes {
			if i > 0 {
				b.WriteString("; ")
			}
			fmt.Fprintf(&b, "%s %s", st.Day, st.Time)
		}
		b.WriteString("\n")
	}
	if text := strings.TrimSpace(cc.WebsiteText); text != "" {
		if len(text) > 4000 {
			text = text[:4000]
		}
		fmt.Fprintf(&b, "Website excerpt:\n%s\n", text)
	}
	return b.String()
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
