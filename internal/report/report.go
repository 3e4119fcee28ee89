// Package report renders a cluster snapshot (worlds, locks, plans) as
// Markdown, and optionally as HTML via goldmark, for the conductor CLI's
// status-reporting commands.
package report

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"github.com/harrison/conductor/internal/models"
)

// ClusterSnapshot is a point-in-time view of cluster state assembled by the
// CLI from the registry, lock table and store.
type ClusterSnapshot struct {
	Worlds    []models.World
	Locks     []models.Lock
	Plans     []models.ExecutionPlan
	Timeout   time.Duration
	Generated time.Time

	// Note is an optional free-text incident note an operator attaches to a
	// manual invalidation or status run (e.g. "invalidated after OOM kill,
	// see incident #482"). It is rendered through goldmark before being
	// embedded, so raw HTML the operator typed is dropped (replaced by an
	// omission comment) rather than passed through verbatim.
	Note string
}

// RenderMarkdown renders s as a Markdown document with one section per
// entity kind, each a table sorted by id for stable, diffable output.
func RenderMarkdown(s ClusterSnapshot) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Cluster status\n\n_generated %s_\n\n", s.Generated.Format(time.RFC3339))

	if s.Note != "" {
		sanitized, err := sanitizeNote(s.Note)
		if err == nil {
			b.WriteString("## Operator note\n\n")
			b.WriteString(sanitized)
			b.WriteString("\n")
		}
	}

	b.WriteString("## Worlds\n\n")
	if len(s.Worlds) == 0 {
		b.WriteString("_none registered_\n\n")
	} else {
		worlds := append([]models.World(nil), s.Worlds...)
		sort.Slice(worlds, func(i, j int) bool { return worlds[i].ID.String() < worlds[j].ID.String() })

		b.WriteString("| ID | Kind | Last seen | Stale |\n|---|---|---|---|\n")
		for _, w := range worlds {
			stale := w.IsStale(s.Generated, s.Timeout)
			fmt.Fprintf(&b, "| %s | %s | %s | %t |\n", w.ID, w.Kind, w.LastSeen.Format(time.RFC3339), stale)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Locks\n\n")
	if len(s.Locks) == 0 {
		b.WriteString("_none held_\n\n")
	} else {
		locks := append([]models.Lock(nil), s.Locks...)
		sort.Slice(locks, func(i, j int) bool { return locks[i].ID < locks[j].ID })

		b.WriteString("| ID | Class | Variant | Owner |\n|---|---|---|---|\n")
		for _, l := range locks {
			owner := "-"
			if l.OwnerWorldID != nil {
				owner = l.OwnerWorldID.String()
			}
			fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", l.ID, l.Class, variantOrDash(l.Variant), owner)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Plans\n\n")
	if len(s.Plans) == 0 {
		b.WriteString("_none_\n\n")
	} else {
		plans := append([]models.ExecutionPlan(nil), s.Plans...)
		sort.Slice(plans, func(i, j int) bool { return plans[i].ID.String() < plans[j].ID.String() })

		b.WriteString("| ID | State | Result | Steps | Executor |\n|---|---|---|---|---|\n")
		for _, p := range plans {
			executor := "-"
			if p.ExecutorWorldID != nil {
				executor = p.ExecutorWorldID.String()
			}
			fmt.Fprintf(&b, "| %s | %s | %s | %d | %s |\n", p.ID, p.State, p.Result, len(p.Steps), executor)
		}
		b.WriteString("\n")
	}

	return b.String()
}

// sanitizeNote renders a free-text operator note through goldmark and
// returns the resulting HTML fragment. goldmark's default HTML renderer
// replaces raw HTML with a "raw HTML omitted" comment rather than passing it
// through, so an operator
// pasting e.g. a <script> tag into an incident note gets it neutralized
// before the report embeds it.
func sanitizeNote(note string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(note), &buf); err != nil {
		return "", fmt.Errorf("sanitize note: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func variantOrDash(v models.LockVariant) string {
	if v == models.LockVariantNone {
		return "-"
	}
	return string(v)
}

// RenderHTML converts a previously-rendered Markdown report to HTML.
func RenderHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return buf.String(), nil
}
