// Package depfile reads and writes Make-syntax dependency files as emitted
// by a C compiler running with -MMD -MP.
//
// The format is a sequence of rules "target...: prereq... \", with
// backslash-newline continuations and backslash-escaped spaces in paths.
// -MP additionally emits one phony rule per header (a target with no
// prerequisites); those are skipped when collecting prerequisites.
package depfile

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// Rule is one dependency rule: every target depends on every prerequisite.
type Rule struct {
	Targets []string
	Prereqs []string
}

// Parse decodes all rules in a depfile.
func Parse(data []byte) ([]Rule, error) {
	var rules []Rule

	for _, logical := range logicalLines(string(data)) {
		tokens := splitTokens(logical)
		if len(tokens) == 0 {
			continue
		}

		colon := -1
		for i, tok := range tokens {
			if strings.HasSuffix(tok, ":") || tok == ":" {
				colon = i
				break
			}
		}
		if colon == -1 {
			return nil, fmt.Errorf("depfile rule without target separator: %q", logical)
		}

		targets := make([]string, 0, colon+1)
		targets = append(targets, tokens[:colon]...)
		if last := strings.TrimSuffix(tokens[colon], ":"); last != "" {
			targets = append(targets, last)
		}
		if len(targets) == 0 {
			return nil, fmt.Errorf("depfile rule without targets: %q", logical)
		}

		rules = append(rules, Rule{Targets: targets, Prereqs: tokens[colon+1:]})
	}

	return rules, nil
}

// Prereqs returns the deduplicated, sorted prerequisites recorded for target
// in the depfile at path. Phony -MP rules do not contribute. A missing
// depfile yields no prerequisites and no error: the unit simply has no
// recorded headers yet.
func Prereqs(path, target string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading depfile %s: %w", path, err)
	}

	rules, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing depfile %s: %w", path, err)
	}

	seen := make(map[string]struct{})
	var prereqs []string
	for _, r := range rules {
		if len(r.Prereqs) == 0 {
			continue // -MP phony rule
		}
		for _, t := range r.Targets {
			if t != target {
				continue
			}
			for _, p := range r.Prereqs {
				if _, ok := seen[p]; ok {
					continue
				}
				seen[p] = struct{}{}
				prereqs = append(prereqs, p)
			}
		}
	}
	sort.Strings(prereqs)
	return prereqs, nil
}

// Format renders one rule in depfile syntax, escaping spaces in paths.
func Format(r Rule) string {
	var b strings.Builder
	for i, t := range r.Targets {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(escape(t))
	}
	b.WriteByte(':')
	for _, p := range r.Prereqs {
		b.WriteByte(' ')
		b.WriteString(escape(p))
	}
	b.WriteByte('\n')
	return b.String()
}

func escape(path string) string {
	return strings.ReplaceAll(path, " ", `\ `)
}

// logicalLines joins backslash-newline continuations.
func logicalLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	var lines []string
	var cur strings.Builder
	for _, raw := range strings.Split(s, "\n") {
		if strings.HasSuffix(raw, `\`) && !strings.HasSuffix(raw, `\\`) {
			cur.WriteString(strings.TrimSuffix(raw, `\`))
			cur.WriteByte(' ')
			continue
		}
		cur.WriteString(raw)
		line := strings.TrimSpace(cur.String())
		cur.Reset()
		if line != "" {
			lines = append(lines, line)
		}
	}
	if rest := strings.TrimSpace(cur.String()); rest != "" {
		lines = append(lines, rest)
	}
	return lines
}

// splitTokens splits a logical line on unescaped whitespace, honoring
// backslash-escaped spaces inside paths.
func splitTokens(line string) []string {
	var tokens []string
	var cur strings.Builder
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '\\' && i+1 < len(line) && line[i+1] == ' ':
			cur.WriteByte(' ')
			i++
		case c == ' ' || c == '\t':
			if cur.Len() > 0 {
				tokens = append(tokens, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteByte(c)
		}
	}
	if cur.Len() > 0 {
		tokens = append(tokens, cur.String())
	}
	return tokens
}
