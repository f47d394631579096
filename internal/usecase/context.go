package usecase

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"rag-agent/internal/domain"
)

const contextHeader = "Extracted documents:"

type passageMetadata struct {
	Source      string `json:"source"`
	PageNumbers string `json:"page_numbers"`
}

// parsePassage decodes the citation metadata of a match. A match is never
// turned into a partial passage: missing source or pages is an error.
func parsePassage(m domain.Match, sourceNames map[string]string) (domain.Passage, error) {
	raw := strings.TrimSpace(m.Metadata)
	if raw == "" {
		return domain.Passage{}, &MetadataError{MatchID: m.ID, Err: errors.New("metadata is empty")}
	}
	var md passageMetadata
	if err := json.Unmarshal([]byte(raw), &md); err != nil {
		return domain.Passage{}, &MetadataError{MatchID: m.ID, Err: err}
	}
	if strings.TrimSpace(md.Source) == "" {
		return domain.Passage{}, &MetadataError{MatchID: m.ID, Err: errors.New("source is missing")}
	}
	if strings.TrimSpace(md.PageNumbers) == "" {
		return domain.Passage{}, &MetadataError{MatchID: m.ID, Err: errors.New("page_numbers is missing")}
	}

	source := md.Source
	if name, ok := sourceNames[source]; ok && name != "" {
		source = name
	}
	return domain.Passage{
		Text:        m.Text,
		Source:      source,
		PageNumbers: normalizePageNumbers(md.PageNumbers),
	}, nil
}

// normalizePageNumbers collapses a "n-n" range to "n". Everything else,
// including malformed values, is returned unchanged.
func normalizePageNumbers(pages string) string {
	parts := strings.Split(pages, "-")
	if len(parts) == 2 && parts[0] == parts[1] {
		return parts[0]
	}
	return pages
}

// buildContext renders passages as numbered citation blocks in input order.
func buildContext(passages []domain.Passage) string {
	if len(passages) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(contextHeader)
	b.WriteString("\n")
	for i, p := range passages {
		fmt.Fprintf(&b, "\nContext ID: %d\nSource: %s\nPage(s): %s\n%s\n", i+1, p.Source, p.PageNumbers, p.Text)
	}
	return b.String()
}
