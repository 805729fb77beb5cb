package storage

import (
	"regexp"
	"strconv"
	"strings"
)

// Rewriter translates SQLite-dialect SQL (the dialect every core query is
// authored in) into a target dialect. The substitution table
// is exhaustive: any construct not covered passes through unchanged. The
// rewriter is idempotent — rewriting already-rewritten SQL is a no-op.
type Rewriter struct {
	tableMap map[string]string
}

// NewPostgresRewriter returns the rewriter targeting the hosted Postgres
// backend, with the five logical->physical table mappings.
func NewPostgresRewriter() *Rewriter {
	return &Rewriter{
		tableMap: map[string]string{
			"knowledge_nodes": "vestige_knowledge",
			"people":          "vestige_people",
			"graph_edges":     "vestige_edges",
			"intentions":      "vestige_intentions",
			"metadata":        "vestige_metadata",
		},
	}
}

var (
	datetimeNowRe    = regexp.MustCompile(`datetime\(\s*'now'\s*\)`)
	datetimeOffsetRe = regexp.MustCompile(`datetime\(\s*'now'\s*,\s*'([+-])(\d+)\s+(day|days|hour|hours|minute|minutes)'\s*\)`)
	jsonExtractRe    = regexp.MustCompile(`json_extract\(\s*([A-Za-z_][A-Za-z0-9_]*)\s*,\s*'\$((?:\.[A-Za-z_][A-Za-z0-9_]*)+)'\s*\)`)
	ftsMatchRe       = regexp.MustCompile(`knowledge_fts\s+MATCH\s+\?`)
	ftsJoinRe        = regexp.MustCompile(`(?i)\s*JOIN\s+knowledge_fts\s+\w+\s+ON\s+`)
	ftsJoinEndRe     = regexp.MustCompile(`(?i)\s+(?:WHERE|GROUP|ORDER|LIMIT|JOIN)\b`)
)

// Rewrite translates a single SQLite-dialect query into the target
// dialect. Params are returned unchanged; only placeholder syntax in sql
// changes.
func (r *Rewriter) Rewrite(sql string) string {
	out := sql

	// The hosted backend enforces tenancy via row-access policy, so the
	// {{tenant}} sentinel becomes a defense-in-depth literal predicate
	// rather than a bound parameter — no placeholder is introduced, so
	// this must run before placeholder renumbering but has no effect on
	// it.
	out = strings.ReplaceAll(out, TenantFilter, "tenant_id = current_setting('vestige.current_tenant')")

	// Each "JOIN knowledge_fts <alias> ON ..." clause is cut up to the next
	// WHERE/GROUP/ORDER/LIMIT/JOIN keyword, or to the end of the query.
	for loc := ftsJoinRe.FindStringIndex(out); loc != nil; loc = ftsJoinRe.FindStringIndex(out) {
		end := len(out)
		if m := ftsJoinEndRe.FindStringIndex(out[loc[1]:]); m != nil {
			end = loc[1] + m[0]
		}
		out = out[:loc[0]] + out[end:]
	}
	out = ftsMatchRe.ReplaceAllString(out, "search_vector @@ plainto_tsquery(?)")

	out = datetimeOffsetRe.ReplaceAllStringFunc(out, func(m string) string {
		sub := datetimeOffsetRe.FindStringSubmatch(m)
		sign, n, unit := sub[1], sub[2], sub[3]
		op := "+"
		if sign == "-" {
			op = "-"
		}
		return "CURRENT_TIMESTAMP " + op + " INTERVAL '" + n + " " + unit + "'"
	})
	out = datetimeNowRe.ReplaceAllString(out, "CURRENT_TIMESTAMP")

	out = jsonExtractRe.ReplaceAllStringFunc(out, func(m string) string {
		sub := jsonExtractRe.FindStringSubmatch(m)
		col := sub[1]
		parts := strings.Split(strings.TrimPrefix(sub[2], "."), ".")
		var b strings.Builder
		b.WriteString(col)
		for i, p := range parts {
			if i == len(parts)-1 {
				b.WriteString(" ->> '")
			} else {
				b.WriteString(" -> '")
			}
			b.WriteString(p)
			b.WriteString("'")
		}
		return b.String()
	})

	out = r.renameTables(out)
	out = renumberPlaceholders(out)

	return out
}

// renameTables rewrites logical table names to their physical names using
// identifier-boundary matching, so e.g. "people_tags" is never touched by
// the "people" mapping.
func (r *Rewriter) renameTables(sql string) string {
	out := sql
	for logical, physical := range r.tableMap {
		re := regexp.MustCompile(`\b` + regexp.QuoteMeta(logical) + `\b`)
		out = re.ReplaceAllString(out, physical)
	}
	return out
}

// renumberPlaceholders replaces every remaining `?` with `$1, $2, …` in
// left-to-right order, reflecting the original occurrence order after all
// other substitutions have run (so a `?` introduced by the FTS rewrite is
// numbered in its textual position, same as any other).
func renumberPlaceholders(sql string) string {
	var b strings.Builder
	n := 0
	for _, r := range sql {
		if r == '?' {
			n++
			b.WriteString("$")
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
