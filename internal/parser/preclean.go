package parser

import (
	"regexp"
	"sort"
	"strings"
)

var (
	omittedPictureRE = regexp.MustCompile(`(?s)\*\*==>.*?<==\*\*`)
	bulletGlyphRE    = regexp.MustCompile("[•▪◦‣·]")
	dottedLeaderRE   = regexp.MustCompile(`(?:\.\s*){3,}`)
	tableSeparatorRE = regexp.MustCompile(`^\|?\s*-+\s*(\|\s*-+\s*)+\|?$`)
	pipeRE           = regexp.MustCompile(`\s*\|\s*`)
	doubleDashRE     = regexp.MustCompile(`-\s*-`)
	trailingPipesRE  = regexp.MustCompile(`\|\|+$`)
	urlRE            = regexp.MustCompile(`https?://[^\s\)\]]+`)
	emptyLinkRE      = regexp.MustCompile(`\[([^\[\]]+)\]\s*\(\s*\)`)
	separatorBlockRE = regexp.MustCompile(`^[\-\s]+$`)
	headingMarkRE    = regexp.MustCompile(`#+\s`)
)

// preclean removes converter artifacts that would otherwise pollute heading
// detection and identity extraction: omitted-image markers, replacement
// characters, pipe tables, bullet glyphs and dotted leader runs.
func preclean(markdown string) string {
	out := omittedPictureRE.ReplaceAllString(markdown, "")
	out = strings.ReplaceAll(out, "�", "")
	out = flattenTables(out)
	out = bulletGlyphRE.ReplaceAllString(out, "")
	return dottedLeaderRE.ReplaceAllString(out, "")
}

// flattenTables rewrites pipe-table rows as dash-joined plain text and drops
// separator rows like |---|---|. Lines without pipes pass through unchanged,
// and blank lines survive so block splitting still sees them.
func flattenTables(text string) string {
	lines := strings.Split(text, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.Contains(trimmed, "|") {
			cleaned = append(cleaned, trimmed)
			continue
		}
		if tableSeparatorRE.MatchString(trimmed) {
			continue
		}
		row := strings.Trim(trimmed, "|")
		row = pipeRE.ReplaceAllString(row, " - ")
		row = doubleDashRE.ReplaceAllString(row, "-")
		row = trailingPipesRE.ReplaceAllString(row, "")
		cleaned = append(cleaned, strings.TrimSpace(row))
	}
	return strings.Join(cleaned, "\n")
}

// cleanBlocks splits text on blank lines and produces the deduplicated clean
// text: separator-only blocks are dropped, bare URLs are stripped out,
// internal newlines collapse to spaces, and exact-duplicate blocks keep only
// their first occurrence.
func cleanBlocks(text string) string {
	seen := make(map[string]struct{})
	var unique []string

	for _, block := range splitBlocks(text) {
		if separatorBlockRE.MatchString(block) {
			continue
		}
		cleaned := strings.TrimSpace(urlRE.ReplaceAllString(block, ""))
		cleaned = strings.TrimSpace(emptyLinkRE.ReplaceAllString(cleaned, "$1"))
		normalized := strings.TrimSpace(strings.Join(strings.Split(cleaned, "\n"), " "))
		if normalized == "" {
			continue
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		unique = append(unique, normalized)
	}
	return strings.Join(unique, "\n")
}

// splitBlocks splits on blank lines and strips heading markers from each
// block, dropping blocks left empty.
func splitBlocks(text string) []string {
	var blocks []string
	for _, block := range strings.Split(text, "\n\n") {
		normalized := strings.TrimSpace(strings.TrimLeft(headingMarkRE.ReplaceAllString(block, ""), "\n"))
		if normalized != "" {
			blocks = append(blocks, normalized)
		}
	}
	return blocks
}

// extractLinks returns the sorted, deduplicated URLs found in text.
func extractLinks(text string) []string {
	matches := urlRE.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	var links []string
	for _, m := range matches {
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		links = append(links, m)
	}
	sort.Strings(links)
	return links
}
