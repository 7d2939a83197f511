package parsers

import (
	"bufio"
	"io"
	"strings"

	logpkg "github.com/haukened/rr-ifw/internal/ifw/common/log"
)

// ParseLineList parses a newline-delimited list of component names, as written by
// the legacy provider list format.
//
// Behavior:
// - Trims surrounding whitespace and a leading BOM
// - Skips empty lines after trimming
// - Preserves order and duplicates; the caller's table deduplicates by name
func ParseLineList(r io.Reader, source string, logger logpkg.Logger) ([]string, error) {
	scanner := bufio.NewScanner(r)
	out := make([]string, 0, 16)
	logger.Debug(map[string]any{"source": source}, "parse_line_list_start")
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		s := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\uFEFF"))
		if s == "" {
			logger.Debug(map[string]any{"line": lineNum}, "skip_empty")
			continue
		}
		out = append(out, s)
	}
	if err := scanner.Err(); err != nil {
		logger.Debug(map[string]any{"source": source, "error": err.Error()}, "parse_line_list_scan_error")
		return nil, err
	}
	logger.Debug(map[string]any{"source": source, "count": len(out)}, "parse_line_list_done")
	return out, nil
}

// ParseSignatureList parses an ordered tracker signature list.
//
// Behavior:
// - Supports comments starting with '#' (inline or whole-line)
// - Trims surrounding whitespace and skips empty lines
// - De-duplicates while preserving first-seen order, since match order is significant
func ParseSignatureList(r io.Reader, source string, logger logpkg.Logger) ([]string, error) {
	scanner := bufio.NewScanner(r)
	seen := make(map[string]struct{})
	out := make([]string, 0, 256)
	logger.Debug(map[string]any{"source": source}, "parse_signature_list_start")
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimPrefix(scanner.Text(), "\uFEFF")

		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "#") {
			logger.Debug(map[string]any{"line": lineNum}, "skip_comment")
			continue
		}
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = line[:idx]
		}
		s := strings.TrimSpace(line)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			logger.Debug(map[string]any{"line": lineNum, "signature": s}, "skip_duplicate")
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	if err := scanner.Err(); err != nil {
		logger.Debug(map[string]any{"source": source, "error": err.Error()}, "parse_signature_list_scan_error")
		return nil, err
	}
	logger.Debug(map[string]any{"source": source, "count": len(out)}, "parse_signature_list_done")
	return out, nil
}
