package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kerbaras/txt2epub/pkg/chapters"
	"github.com/kerbaras/txt2epub/pkg/integrations"
	"github.com/kerbaras/txt2epub/pkg/services"
)

var buildCmd = &cobra.Command{
	Use:   "build [file]",
	Short: "Build an EPUB from a text file",
	Long: `Convert the file to UTF-8 when needed, split it at the chapter headings and
write an EPUB.

Chapters are numbered as in 'txt2epub scan'. All of them are included unless
listed with --exclude.

Examples:
  txt2epub build novel.txt --title "My Novel" --author "Someone"
  txt2epub build novel.txt --exclude 1,2 --illustration 3=art/ch3.png
  txt2epub build novel.txt --device kindle-paperwhite3`,
	Args: func(cmd *cobra.Command, args []string) error {
		if listDevices, _ := cmd.Flags().GetBool("list-devices"); listDevices {
			return nil
		}
		return cobra.ExactArgs(1)(cmd, args)
	},
	Run: func(cmd *cobra.Command, args []string) {
		if listDevices, _ := cmd.Flags().GetBool("list-devices"); listDevices {
			printDeviceList()
			return
		}

		yes, _ := cmd.Flags().GetBool("yes")
		device, _ := cmd.Flags().GetString("device")
		patterns, _ := cmd.Flags().GetStringArray("pattern")
		exclude, _ := cmd.Flags().GetIntSlice("exclude")
		illustrations, _ := cmd.Flags().GetStringArray("illustration")

		opts := integrations.BookOptions{}
		opts.Title, _ = cmd.Flags().GetString("title")
		opts.Author, _ = cmd.Flags().GetString("author")
		opts.Description, _ = cmd.Flags().GetString("description")
		opts.CoverPath, _ = cmd.Flags().GetString("cover")
		opts.OutputPath, _ = cmd.Flags().GetString("output")

		env, err := bootstrap()
		cobra.CheckErr(err)
		defer env.logger.Sync()

		if device != "" {
			if _, ok := integrations.DeviceProfile(device); !ok {
				cobra.CheckErr(fmt.Errorf("unknown device %q (use --list-devices)", device))
			}
			env.cfg.EPub.Device = device
			env.controller = services.NewController(env.cfg, env.logger)
		}

		cobra.CheckErr(checkSize(args[0], env.cfg.Convert.LargeFileWarning, yes))

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		// the worker detects once and hands back the source when it is already UTF-8
		textPath, err := runConversion(ctx, env.controller, args[0], os.Stdout)
		if err != nil {
			cobra.CheckErr(fmt.Errorf("conversion failed: %w", err))
		}

		records, err := scanChapters(ctx, env, textPath, patterns)
		cobra.CheckErr(err)

		model := chapters.NewSelectionModel(records)
		cobra.CheckErr(applySelection(model, exclude, illustrations))

		fmt.Printf("📖 %d of %d chapters selected\n", model.SelectedCount(), model.Len())

		out, err := env.controller.BuildEPub(textPath, model.Selected(), opts)
		if err != nil {
			cobra.CheckErr(fmt.Errorf("EPUB generation failed: %w", err))
		}

		fmt.Printf("✅ EPUB created: %s\n", out)
	},
}

func init() {
	buildCmd.Flags().String("title", "", "Book title (default is the file name)")
	buildCmd.Flags().String("author", "", "Book author")
	buildCmd.Flags().String("description", "", "Book description")
	buildCmd.Flags().String("cover", "", "Cover image path")
	buildCmd.Flags().StringP("output", "o", "", "Output EPUB path")
	buildCmd.Flags().IntSlice("exclude", nil, "Chapter numbers to leave out (e.g., 1,2)")
	buildCmd.Flags().StringArray("illustration", nil, "Chapter illustration as N=path, repeatable")
	buildCmd.Flags().StringArrayP("pattern", "p", nil, "Chapter pattern, repeatable (overrides the stored slots)")
	buildCmd.Flags().String("device", "", "Size illustrations for a reader device")
	buildCmd.Flags().Bool("list-devices", false, "List supported reader devices")
	buildCmd.Flags().BoolP("yes", "y", false, "Skip the large file confirmation")
}

func printDeviceList() {
	fmt.Println("📱 Supported reader devices:")
	for _, device := range integrations.DeviceList() {
		fmt.Println("  " + device)
	}
}

// applySelection deselects the 1-based chapter numbers in exclude and
// attaches N=path illustrations.
func applySelection(model *chapters.SelectionModel, exclude []int, illustrations []string) error {
	for _, n := range exclude {
		row, err := model.Row(n - 1)
		if err != nil {
			return fmt.Errorf("chapter %d: %w", n, err)
		}
		if row.Selected {
			if err := model.Toggle(n - 1); err != nil {
				return err
			}
		}
	}

	for _, arg := range illustrations {
		num, path, ok := strings.Cut(arg, "=")
		if !ok || path == "" {
			return fmt.Errorf("invalid illustration %q, expected N=path", arg)
		}
		n, err := strconv.Atoi(strings.TrimSpace(num))
		if err != nil {
			return fmt.Errorf("invalid illustration %q: %w", arg, err)
		}
		if err := model.SetIllustration(n-1, path); err != nil {
			return fmt.Errorf("chapter %d: %w", n, err)
		}
	}

	return nil
}
