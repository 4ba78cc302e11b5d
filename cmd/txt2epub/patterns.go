package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/kerbaras/txt2epub/pkg/chapters"
	"github.com/kerbaras/txt2epub/pkg/data"
)

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "Manage chapter heading patterns",
	Long:  "Manage the pattern library and the nine pattern slots used when scanning",
}

var patternsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the pattern library and slots",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		env, err := bootstrap()
		cobra.CheckErr(err)
		defer env.logger.Sync()

		repo, err := openRepository(env.cfg)
		cobra.CheckErr(err)
		defer repo.Close()

		regexes, err := repo.ListRegexes(false)
		cobra.CheckErr(err)

		t := newTable("ID", "On", "Name", "Pattern")
		for _, r := range regexes {
			t.Row(fmt.Sprintf("%d", r.ID), onOff(r.Enabled), truncateString(r.Label(), 38), r.Pattern)
		}

		fmt.Printf("\n📚 Pattern library (%d)\n", len(regexes))
		fmt.Println(t)

		slots, err := repo.LoadSlots()
		cobra.CheckErr(err)

		st := newTable("Slot", "On", "Pattern")
		for _, s := range slots {
			st.Row(fmt.Sprintf("%d", s.Slot), onOff(s.Enabled), s.Pattern)
		}

		fmt.Printf("\n🎯 Slots (%d of %d)\n", len(slots), data.MaxSlots)
		fmt.Println(st)
	},
}

var patternsAddCmd = &cobra.Command{
	Use:   "add [name] [pattern]",
	Short: "Add a pattern to the library",
	Long: `Add a pattern to the library. The pattern must match a whole line.

Example:
  txt2epub patterns add "Volume N" 'Volume \d+.*' --example "Volume 2"`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		example, _ := cmd.Flags().GetString("example")
		disabled, _ := cmd.Flags().GetBool("disabled")

		env, err := bootstrap()
		cobra.CheckErr(err)
		defer env.logger.Sync()

		if _, err := chapters.CompilePattern(args[1], env.cfg.Scan.RegexTimeout); err != nil {
			cobra.CheckErr(err)
		}

		repo, err := openRepository(env.cfg)
		cobra.CheckErr(err)
		defer repo.Close()

		regex := &data.ChapterRegex{
			Name:    args[0],
			Example: example,
			Pattern: args[1],
			Enabled: !disabled,
		}
		cobra.CheckErr(repo.SaveRegex(regex))

		fmt.Printf("✅ Added pattern %d: %s\n", regex.ID, regex.Label())
	},
}

var patternsRemoveCmd = &cobra.Command{
	Use:   "rm [id]",
	Short: "Remove a pattern from the library",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := strconv.ParseInt(args[0], 10, 64)
		cobra.CheckErr(err)

		env, err := bootstrap()
		cobra.CheckErr(err)
		defer env.logger.Sync()

		repo, err := openRepository(env.cfg)
		cobra.CheckErr(err)
		defer repo.Close()

		regex, err := repo.GetRegex(id)
		cobra.CheckErr(err)
		if regex == nil {
			cobra.CheckErr(fmt.Errorf("pattern %d not found", id))
		}

		cobra.CheckErr(repo.DeleteRegex(id))
		fmt.Printf("🗑️  Removed pattern %d: %s\n", id, regex.Label())
	},
}

var patternsSlotsCmd = &cobra.Command{
	Use:   "slots [N=ID|N=off ...]",
	Short: "Assign library patterns to slots",
	Long: `Assign library patterns to the numbered slots (1-9) used when scanning.

Examples:
  txt2epub patterns slots 1=2 2=5
  txt2epub patterns slots 3=off`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		env, err := bootstrap()
		cobra.CheckErr(err)
		defer env.logger.Sync()

		repo, err := openRepository(env.cfg)
		cobra.CheckErr(err)
		defer repo.Close()

		slots, err := repo.LoadSlots()
		cobra.CheckErr(err)

		slots, err = assignSlots(slots, args, repo.GetRegex)
		cobra.CheckErr(err)
		cobra.CheckErr(repo.SaveSlots(slots))

		fmt.Printf("✅ Saved %d slots\n", len(slots))
	},
}

func init() {
	patternsAddCmd.Flags().String("example", "", "Sample heading shown next to the name")
	patternsAddCmd.Flags().Bool("disabled", false, "Add the pattern disabled")

	patternsCmd.AddCommand(patternsListCmd)
	patternsCmd.AddCommand(patternsAddCmd)
	patternsCmd.AddCommand(patternsRemoveCmd)
	patternsCmd.AddCommand(patternsSlotsCmd)
}

// assignSlots applies N=ID and N=off assignments on top of the stored slots.
// Unassigned slots between stored ones are kept empty and disabled.
func assignSlots(slots []data.SlotSetting, args []string, lookup func(int64) (*data.ChapterRegex, error)) ([]data.SlotSetting, error) {
	for _, arg := range args {
		num, value, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("invalid slot assignment %q, expected N=ID or N=off", arg)
		}
		n, err := strconv.Atoi(num)
		if err != nil || n < 1 || n > data.MaxSlots {
			return nil, fmt.Errorf("invalid slot %q, expected 1-%d", num, data.MaxSlots)
		}

		for len(slots) < n {
			slots = append(slots, data.SlotSetting{Slot: len(slots) + 1})
		}

		if value == "off" {
			slots[n-1].Enabled = false
			continue
		}

		id, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern id %q: %w", value, err)
		}
		regex, err := lookup(id)
		if err != nil {
			return nil, err
		}
		if regex == nil {
			return nil, fmt.Errorf("pattern %d not found", id)
		}
		slots[n-1] = data.SlotSetting{Slot: n, Enabled: true, Pattern: regex.Pattern}
	}

	return slots, nil
}

func newTable(headers ...string) *table.Table {
	var (
		purple = lipgloss.Color("99")

		headerStyle = lipgloss.NewStyle().Foreground(purple).Bold(true).Align(lipgloss.Center)
		cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	)

	return table.New().
		Border(lipgloss.HiddenBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(purple)).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			default:
				return cellStyle
			}
		}).
		Headers(headers...)
}

func onOff(enabled bool) string {
	if enabled {
		return "on"
	}
	return "off"
}
