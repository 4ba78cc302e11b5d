package cmd

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/kerbaras/txt2epub/pkg/charset"
	"github.com/kerbaras/txt2epub/pkg/services"
)

var detectCmd = &cobra.Command{
	Use:   "detect [file]",
	Short: "Guess the encoding of a text file",
	Long:  "Sample the file, report the inferred encoding and whether it needs conversion to UTF-8",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		env, err := bootstrap()
		cobra.CheckErr(err)
		defer env.logger.Sync()

		info, err := os.Stat(args[0])
		cobra.CheckErr(err)

		guess := env.controller.Detect(args[0])

		fmt.Printf("📄 %s (%s)\n", args[0], humanize.Bytes(uint64(info.Size())))
		fmt.Printf("   Encoding:   %s\n", guess.Name)
		fmt.Printf("   Confidence: %.0f%%\n", guess.Confidence*100)

		if charset.IsNormalized(guess.Name) {
			fmt.Println("✅ Already UTF-8 compatible, no conversion needed")
			return
		}
		fmt.Printf("🔄 Needs conversion, output would be %s\n",
			services.DestinationPath(args[0], env.cfg.Convert.OutputSuffix))
	},
}
