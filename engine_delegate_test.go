package goOTC

import (
	"bufio"
	"os"
	"regexp"
	"strings"
	"testing"
)

// TestEngineMethodsStayThin keeps public Engine methods as delegates into
// internal/flows. Exceptions must name a reason.
func TestEngineMethodsStayThin(t *testing.T) {
	const maxLines = 30

	exceptions := map[string]struct {
		limit  int
		reason string
	}{
		"flowDeps":     {80, "one-time wiring of every flow dependency"},
		"StartSweeper": {50, "owns the sweeper goroutine lifecycle"},
		"emitAudit":    {40, "event construction"},
	}
	for name, exc := range exceptions {
		if exc.reason == "" {
			t.Errorf("exception %q missing reason", name)
		}
	}

	funcSig := regexp.MustCompile(`^func \(e \*Engine\) ([A-Za-z]\w*)\(`)

	for _, filename := range []string{"engine.go", "sweeper.go", "engine_audit.go", "security_report.go"} {
		f, err := os.Open(filename)
		if err != nil {
			t.Fatalf("open %s: %v", filename, err)
		}

		scanner := bufio.NewScanner(f)
		lineNum := 0
		name, start, depth, opened := "", 0, 0, false
		for scanner.Scan() {
			lineNum++
			line := scanner.Text()

			if name == "" {
				if m := funcSig.FindStringSubmatch(line); m != nil {
					name, start = m[1], lineNum
					depth = strings.Count(line, "{") - strings.Count(line, "}")
					opened = strings.Contains(line, "{")
					if opened && depth == 0 {
						name = ""
					}
				}
				continue
			}

			depth += strings.Count(line, "{") - strings.Count(line, "}")
			opened = opened || strings.Contains(line, "{")
			if !opened || depth > 0 {
				continue
			}
			length := lineNum - start + 1
			limit := maxLines
			if exc, ok := exceptions[name]; ok {
				limit = exc.limit
			}
			if length > limit {
				t.Errorf("%s:%d: method %s is %d lines (limit %d); move logic to internal/flows/",
					filename, start, name, length, limit)
			}
			name = ""
		}
		if err := scanner.Err(); err != nil {
			t.Fatalf("scan %s: %v", filename, err)
		}
		f.Close()
	}
}
