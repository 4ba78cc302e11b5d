package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/spf13/cobra"

	"github.com/kerbaras/txt2epub/pkg/services"
)

var convertCmd = &cobra.Command{
	Use:   "convert [file]",
	Short: "Convert a text file to UTF-8",
	Long:  "Detect the encoding of a text file and write a UTF-8 copy next to it",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		yes, _ := cmd.Flags().GetBool("yes")

		env, err := bootstrap()
		cobra.CheckErr(err)
		defer env.logger.Sync()

		cobra.CheckErr(checkSize(args[0], env.cfg.Convert.LargeFileWarning, yes))

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		result, err := runConversion(ctx, env.controller, args[0], os.Stdout)
		if err != nil {
			cobra.CheckErr(fmt.Errorf("conversion failed: %w", err))
		}

		fmt.Printf("✅ UTF-8 text: %s\n", result)
	},
}

func init() {
	convertCmd.Flags().BoolP("yes", "y", false, "Skip the large file confirmation")
}

// runConversion drives one worker to completion, printing its status lines
// and a progress bar to out. Cancelling ctx cancels the run.
func runConversion(ctx context.Context, c *services.Controller, path string, out io.Writer) (string, error) {
	w, err := c.StartConversion(path)
	if err != nil {
		return "", err
	}

	go func() {
		select {
		case <-ctx.Done():
			w.Cancel()
		case <-w.Done():
		}
	}()

	bar := progress.New(progress.WithDefaultGradient(), progress.WithWidth(40))
	percent := 0

	for ev := range w.Events() {
		switch ev.Kind {
		case services.EventStatus:
			fmt.Fprintf(out, "\r\033[K%s\n", ev.Status)
		case services.EventProgress:
			percent = ev.Progress
		}
		fmt.Fprintf(out, "\r%s", bar.ViewAs(float64(percent)/100))
	}
	fmt.Fprintln(out)

	done := w.Wait()
	switch done.State {
	case services.StateDone:
		return done.ResultPath, nil
	case services.StateCancelled:
		return "", errors.New("cancelled")
	default:
		return "", done.Err
	}
}
