package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/raphaelgruber/rafeeq/internal/service"
	"github.com/spf13/cobra"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Show the fallback chain and provider health",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := journal.Providers(cmd.Context())
		if err != nil {
			return fmt.Errorf("providers: %w", err)
		}
		out := cmd.OutOrStdout()
		if asJSON {
			return printJSON(out, st)
		}
		fmt.Fprint(out, renderProviders(defaultTheme, st))
		return nil
	},
}

func renderProviders(t Theme, st service.ProviderStatus) string {
	var b strings.Builder
	b.WriteString(t.titleStyle().Render("Chain") + "\n  " + strings.Join(st.Stages, " → ") + "\n")
	if m := st.Mirror; m != nil {
		dot := t.completedStyle().Render("●")
		detail := "since " + m.Since.Format(time.DateTime)
		if !m.Up() {
			dot = t.errorStyle().Render("●")
			detail = fmt.Sprintf("%d failures: %s", m.Failures, m.LastError)
		}
		fmt.Fprintf(&b, "\n%s\n  %s %s %s\n", t.titleStyle().Render("Cloud mirror"), dot, m.State, t.hintStyle().Render(detail))
	}
	if len(st.Providers) == 0 {
		b.WriteString(t.hintStyle().Render("No API providers configured; answers come from memory or offline.") + "\n")
		return b.String()
	}
	b.WriteString("\n" + t.titleStyle().Render("Providers") + "\n")
	for _, p := range st.Providers {
		if p.Available {
			fmt.Fprintf(&b, "  %s %s\n", t.completedStyle().Render("●"), p.Name)
			continue
		}
		fmt.Fprintf(&b, "  %s %s %s\n", t.errorStyle().Render("●"), p.Name,
			t.hintStyle().Render("cooling down "+p.Remaining.Round(time.Second).String()))
	}
	return b.String()
}
