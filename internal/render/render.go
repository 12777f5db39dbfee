// Package render formats a Report for the terminal. Pure formatting,
// no decisions.
package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"subaudit/internal/engine"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	totalStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("220"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	trialStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("213"))
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	statusStyles = map[engine.Status]lipgloss.Style{
		engine.StatusActive:           lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		engine.StatusUnused:           lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		engine.StatusDuplicateSuspect: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		engine.StatusTrialEnding:      lipgloss.NewStyle().Foreground(lipgloss.Color("213")),
	}
)

// Report renders the audit summary.
func Report(r *engine.Report) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Subscription Audit"))
	b.WriteString(subtleStyle.Render(fmt.Sprintf("  %s to %s",
		r.WindowStart.Format("2006-01-02"), r.WindowEnd.Format("2006-01-02"))))
	b.WriteString("\n\n")

	if r.Partial {
		b.WriteString(warnStyle.Render("! report is partial: the scan was interrupted"))
		b.WriteString("\n\n")
	}

	if len(r.Entities) == 0 {
		b.WriteString("No subscriptions found.\n")
		return b.String()
	}

	entities := make([]*engine.Entity, len(r.Entities))
	copy(entities, r.Entities)
	sort.Slice(entities, func(i, j int) bool { return entities[i].ServiceName < entities[j].ServiceName })

	b.WriteString(headerStyle.Render(row("Service", "Category", "Cost", "Frequency", "Last Charged", "Status")))
	b.WriteString("\n")
	for _, e := range entities {
		cost := "n/a"
		if e.CurrentAmount != nil {
			cost = e.CurrentAmount.String()
		}
		line := row(e.ServiceName, string(e.Category), cost, string(e.Frequency),
			e.LastSeenAt.Format("Jan 02"), string(e.Status))
		if st, ok := statusStyles[e.Status]; ok {
			line = st.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	sym := engine.CurrencySymbol(dominantCurrency(entities))
	b.WriteString("\n")
	b.WriteString(totalStyle.Render(fmt.Sprintf("Monthly total: %s%s", sym, r.MonthlyTotal.StringFixed(2))))
	b.WriteString("\n")
	b.WriteString(totalStyle.Render(fmt.Sprintf("Annual projection: %s%s", sym, r.AnnualProjection.StringFixed(2))))
	b.WriteString("\n")

	if unused := byStatus(entities, engine.StatusUnused); len(unused) > 0 {
		b.WriteString("\n")
		b.WriteString(warnStyle.Render("Unused subscriptions (no charge emails recently):"))
		b.WriteString("\n")
		for _, e := range unused {
			b.WriteString(warnStyle.Render(fmt.Sprintf("  - %s (last seen %s)", e.ServiceName, e.LastSeenAt.Format("2006-01-02"))))
			b.WriteString("\n")
		}
	}

	if trials := byStatus(entities, engine.StatusTrialEnding); len(trials) > 0 {
		b.WriteString("\n")
		b.WriteString(trialStyle.Render("Trials ending soon:"))
		b.WriteString("\n")
		for _, e := range trials {
			when := "unknown"
			if e.TrialEndsAt != nil {
				when = e.TrialEndsAt.Format("Jan 02")
				if e.TrialEndEstimated {
					when += " (estimated)"
				}
			}
			b.WriteString(trialStyle.Render(fmt.Sprintf("  - %s (ends %s)", e.ServiceName, when)))
			b.WriteString("\n")
		}
	}

	if suspects := byStatus(entities, engine.StatusDuplicateSuspect); len(suspects) > 0 {
		b.WriteString("\n")
		b.WriteString(warnStyle.Render("Suspected duplicate or changed billing (review, not merged):"))
		b.WriteString("\n")
		for _, e := range suspects {
			b.WriteString(warnStyle.Render(fmt.Sprintf("  - %s", e.ServiceName)))
			b.WriteString("\n")
		}
	}

	for _, w := range r.Warnings {
		b.WriteString("\n")
		b.WriteString(warnStyle.Render("warning: " + w))
		b.WriteString("\n")
	}
	return b.String()
}

const colWidth = 16

func row(cols ...string) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = padRight(c, colWidth)
	}
	return strings.TrimRight(strings.Join(parts, " "), " ")
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s[:width]
	}
	return s + strings.Repeat(" ", width-len(s))
}

// dominantCurrency picks the currency most entities bill in, so the
// totals line matches the table above it. USD when nothing has an
// amount.
func dominantCurrency(entities []*engine.Entity) string {
	counts := map[string]int{}
	best, bestN := engine.USD, 0
	for _, e := range entities {
		if e.CurrentAmount == nil {
			continue
		}
		cur := e.CurrentAmount.Currency
		counts[cur]++
		if counts[cur] > bestN {
			best, bestN = cur, counts[cur]
		}
	}
	return best
}

func byStatus(entities []*engine.Entity, st engine.Status) []*engine.Entity {
	var out []*engine.Entity
	for _, e := range entities {
		if e.Status == st {
			out = append(out, e)
		}
	}
	return out
}
