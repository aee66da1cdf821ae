package llm

import (
	"encoding/json"
	"strings"
)

const fence = "```"

// LocateJSONObject finds the JSON object in a free-form model reply. A fenced code block
// is searched first, then the whole text. The first balanced {...} that is valid JSON
// wins; failing that, the first balanced span is returned so it fails to parse. Braces
// inside string literals are ignored. An opening brace that never closes still yields
// the text from that brace on, so truncated output reports a parse failure rather than
// a missing object. ok is false only when the text has no opening brace at all.
func LocateJSONObject(text string) (string, bool) {
	blocks := fencedBlocks(text)
	scopes := append(append([]string(nil), blocks...), text)
	for _, scope := range scopes {
		for _, obj := range balancedObjects(scope) {
			if json.Valid([]byte(obj)) {
				return obj, true
			}
		}
	}
	for _, scope := range scopes {
		if objs := balancedObjects(scope); len(objs) > 0 {
			return objs[0], true
		}
	}
	for _, block := range blocks {
		if i := strings.IndexByte(block, '{'); i >= 0 {
			return strings.TrimSpace(block[i:]), true
		}
	}
	if i := strings.IndexByte(text, '{'); i >= 0 {
		return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text[i:]), fence)), true
	}
	return "", false
}

// fencedBlocks returns the bodies of ``` fenced blocks, without the info string line.
func fencedBlocks(text string) []string {
	var blocks []string
	rest := text
	for {
		start := strings.Index(rest, fence)
		if start < 0 {
			return blocks
		}
		body := rest[start+len(fence):]
		end := strings.Index(body, fence)
		if end < 0 {
			return blocks
		}
		block := body[:end]
		if nl := strings.IndexByte(block, '\n'); nl >= 0 && !strings.Contains(block[:nl], "{") {
			block = block[nl+1:]
		}
		blocks = append(blocks, block)
		rest = body[end+len(fence):]
	}
}

// balancedObjects returns the successive {...} substrings of s whose braces balance.
// Scanning resumes after the end of each span, so nested objects are not listed.
func balancedObjects(s string) []string {
	var objs []string
	for start := strings.IndexByte(s, '{'); start >= 0; {
		from := start + 1
		if end := matchingBrace(s, start); end >= 0 {
			objs = append(objs, s[start:end+1])
			from = end + 1
		}
		next := strings.IndexByte(s[from:], '{')
		if next < 0 {
			break
		}
		start = from + next
	}
	return objs
}

// matchingBrace returns the index of the brace closing s[start], or -1.
func matchingBrace(s string, start int) int {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
