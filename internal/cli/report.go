package cli

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/roach88/watchgraft/internal/engine"
)

// writeReport prints a run report for humans.
func writeReport(w io.Writer, r *engine.Report) {
	fmt.Fprintf(w, "Run %s\n", r.RunID)
	fmt.Fprintf(w, "  source:     %s\n", r.Source)
	if r.Target != "" {
		fmt.Fprintf(w, "  target:     %s\n", r.Target)
	}
	fmt.Fprintf(w, "  extracted:  %d accounts, %d events, %d added dates\n", r.SourceAccounts, r.Events, r.AddedDates)
	if r.StageDir != "" {
		fmt.Fprintf(w, "  staged:     %s\n", r.StageDir)
	}
	if r.Target == "" {
		return
	}

	fmt.Fprintf(w, "  resolved:   %d of %d (%d unresolved, %d unsupported, %d ambiguous)\n",
		r.Resolved, r.Events, r.Unresolved, r.Unsupported, r.Ambiguous)
	fmt.Fprintf(w, "  attributed: %s (%d unattributed)\n", formatTiers(r.AttributedBy), r.Unattributed)
	fmt.Fprintf(w, "  facts:      %d (%s)\n", r.Facts, r.FactsDigest)

	if a := r.Apply; a != nil {
		fmt.Fprintf(w, "  accounts:   %d upserted, %d removed, %d header rows removed\n",
			a.AccountsUpserted, a.AccountsRemoved, a.HeaderRowsRemoved)
		fmt.Fprintf(w, "  added:      %d set (%d cleared)\n", a.AddedDatesSet, a.AddedDatesCleared)
		fmt.Fprintf(w, "  views:      %d inserted (%d deleted)\n", a.ViewsInserted, a.ViewsDeleted)
		fmt.Fprintf(w, "  settings:   %d inserted (%d replaced)\n", a.SettingsInserted, a.SettingsDeleted)
		if a.Committed {
			fmt.Fprintln(w, "✓ Committed")
		} else {
			fmt.Fprintln(w, "✓ Dry run complete, rolled back")
		}
	}
}

// formatTiers renders per-tier counts in a stable order.
func formatTiers(tiers map[string]int) string {
	if len(tiers) == 0 {
		return "none"
	}
	names := make([]string, 0, len(tiers))
	for name := range tiers {
		names = append(names, name)
	}
	slices.Sort(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s=%d", name, tiers[name])
	}
	return strings.Join(parts, " ")
}
