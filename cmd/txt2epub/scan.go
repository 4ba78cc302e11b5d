package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/kerbaras/txt2epub/pkg/chapters"
)

var scanCmd = &cobra.Command{
	Use:   "scan [file]",
	Short: "List the chapter headings of a text file",
	Long: `Match every line of the file against the chapter patterns and list the hits.

Without --pattern the enabled pattern slots from the settings database are used.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		patterns, _ := cmd.Flags().GetStringArray("pattern")

		env, err := bootstrap()
		cobra.CheckErr(err)
		defer env.logger.Sync()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		records, err := scanChapters(ctx, env, args[0], patterns)
		cobra.CheckErr(err)

		if len(records) == 0 {
			fmt.Println("📭 No chapter headings found.")
			return
		}

		columns := []table.Column{
			{Title: "#", Width: 5},
			{Title: "Line", Width: 8},
			{Title: "Heading", Width: 60},
		}

		rows := []table.Row{}
		for i, r := range records {
			rows = append(rows, table.Row{
				fmt.Sprintf("%d", i+1),
				fmt.Sprintf("%d", r.LineNo),
				truncateString(r.Text, 58),
			})
		}

		t := table.New(
			table.WithColumns(columns),
			table.WithRows(rows),
			table.WithFocused(false),
			table.WithHeight(len(rows)),
		)

		s := table.DefaultStyles()
		s.Header = s.Header.
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("240")).
			BorderBottom(true).
			Bold(true)
		s.Selected = lipgloss.NewStyle()
		t.SetStyles(s)

		fmt.Printf("\n📖 %s (%d chapters)\n\n", args[0], len(records))
		fmt.Println(t.View())
	},
}

func init() {
	scanCmd.Flags().StringArrayP("pattern", "p", nil, "Chapter pattern, repeatable (overrides the stored slots)")
}

// scanChapters matches path against explicit patterns, or against the
// stored slots when there are none.
func scanChapters(ctx context.Context, env *environment, path string, patterns []string) ([]chapters.ChapterRecord, error) {
	var (
		set *chapters.PatternSet
		err error
	)

	if len(patterns) > 0 {
		set, err = env.controller.PatternSet(nil, patterns)
	} else {
		repo, openErr := openRepository(env.cfg)
		if openErr != nil {
			return nil, openErr
		}
		defer repo.Close()
		set, err = env.controller.PatternSet(repo, nil)
	}
	if err != nil {
		return nil, err
	}

	return env.controller.Scan(ctx, path, set)
}
