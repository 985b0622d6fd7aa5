package main

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/quillab/quill"
	"github.com/quillab/quill/config"
	"github.com/quillab/quill/telemetry"
)

func newHistoryCmd(flags *rootFlags) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(flags.configPath)
			if err != nil {
				return err
			}
			store, err := telemetry.Open(cfg.HistoryPath, nil)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			records, err := store.Recent(limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println("no runs recorded yet")
				return nil
			}

			theme := quill.DefaultTheme()
			muted := lipgloss.NewStyle().Foreground(ansiColor(theme.Muted)).Faint(true)
			for _, rec := range records {
				line := fmt.Sprintf("%s  %-7s %-12s %s %4d tokens",
					rec.StartedAt.Local().Format("2006-01-02 15:04"),
					rec.Mode, rec.App, outcomeLabel(rec, theme), rec.Tokens)
				fmt.Println(line + "  " + muted.Render(rec.ID))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show")
	return cmd
}

func outcomeLabel(rec quill.RunRecord, theme quill.Theme) string {
	style := lipgloss.NewStyle()
	switch rec.Outcome {
	case quill.OutcomeCompleted:
		style = style.Foreground(ansiColor(theme.Success))
	case "", quill.OutcomeCancelled:
		style = style.Foreground(ansiColor(theme.Muted))
	default:
		style = style.Foreground(ansiColor(theme.Error))
	}
	label := string(rec.Outcome)
	if label == "" {
		label = "unfinished"
	}
	return style.Render(fmt.Sprintf("%-18s", label))
}

func ansiColor(index int) lipgloss.TerminalColor {
	if index < 0 {
		return lipgloss.NoColor{}
	}
	return lipgloss.Color(strconv.Itoa(index))
}
