// Package sniffer detects the field delimiter of a delimited statement export.
package sniffer

import (
	"bytes"
	"strings"
)

// Candidates are the delimiters tried, in tie-break order.
var Candidates = []rune{',', '\t', ';', '|'}

// DetectDelimiter inspects the header line of data and returns the delimiter
// that splits out the most of the expected header names. When no candidate
// yields a known header, the most frequent candidate wins; ',' is the default.
func DetectDelimiter(data []byte, expected []string) rune {
	line := headerLine(data)
	if line == "" {
		return ','
	}

	want := make(map[string]struct{}, len(expected))
	for _, h := range expected {
		want[h] = struct{}{}
	}

	best, bestMatches, bestCount := ',', 0, 0
	for _, d := range Candidates {
		count := strings.Count(line, string(d))
		if count == 0 {
			continue
		}
		matches := 0
		for _, cell := range strings.Split(line, string(d)) {
			if _, ok := want[strings.Trim(strings.TrimSpace(cell), `"`)]; ok {
				matches++
			}
		}
		if matches > bestMatches || (matches == bestMatches && count > bestCount) {
			best, bestMatches, bestCount = d, matches, count
		}
	}
	return best
}

func headerLine(data []byte) string {
	data = bytes.TrimPrefix(data, []byte("\uFEFF"))
	line, _, _ := bytes.Cut(data, []byte("\n"))
	return strings.TrimSpace(strings.TrimRight(string(line), "\r"))
}
