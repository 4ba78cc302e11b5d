package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kerbaras/txt2epub/pkg/app"
	"github.com/kerbaras/txt2epub/pkg/config"
	"github.com/kerbaras/txt2epub/pkg/data"
	"github.com/kerbaras/txt2epub/pkg/logger"
	"github.com/kerbaras/txt2epub/pkg/services"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "txt2epub [file]",
	Short: "Convert legacy-encoded novels to UTF-8 and EPUB",
	Long: `Detect the encoding of a plain-text novel, convert it to UTF-8, find its
chapter headings and build an EPUB from the chapters you pick.

Run with a file and no subcommand to open the interactive view.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		yes, _ := cmd.Flags().GetBool("yes")

		env, err := bootstrap()
		cobra.CheckErr(err)
		defer env.logger.Sync()

		cobra.CheckErr(checkSize(args[0], env.cfg.Convert.LargeFileWarning, yes))

		repo, err := openRepository(env.cfg)
		cobra.CheckErr(err)
		defer repo.Close()

		// the terminal belongs to the UI from here on
		tuiLogger := uiLogger(env)
		defer tuiLogger.Sync()

		a := app.NewApp(services.NewController(env.cfg, tuiLogger), repo, args[0])
		if err := a.Run(); err != nil {
			cobra.CheckErr(err)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.txt2epub.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.Flags().BoolP("yes", "y", false, "Skip the large file confirmation")

	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(patternsCmd)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

type environment struct {
	cfg        *config.Config
	logger     *zap.Logger
	controller *services.Controller
}

func bootstrap() (*environment, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if debug {
		cfg.Debug = true
	}

	l := logger.NewLogger(cfg.Debug)

	return &environment{
		cfg:        cfg,
		logger:     l,
		controller: services.NewController(cfg, l),
	}, nil
}

// uiLogger logs next to the settings database. Without a writable log file
// the UI runs unlogged rather than not at all.
func uiLogger(env *environment) *zap.Logger {
	path := filepath.Join(filepath.Dir(env.cfg.DatabasePath), "txt2epub.log")
	l, err := logger.NewFileLogger(path, env.cfg.Debug)
	if err != nil {
		env.logger.Warn("running the UI without a log file", zap.Error(err))
		return zap.NewNop()
	}
	return l
}

func openRepository(cfg *config.Config) (*data.Repository, error) {
	repo, err := data.NewRepository(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open settings database: %w", err)
	}
	return repo, nil
}

// checkSize refuses files above limit unless confirmed.
func checkSize(path string, limit int64, confirmed bool) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if limit <= 0 || info.Size() <= limit || confirmed {
		return nil
	}
	return fmt.Errorf("%s is %s (over %s), processing may take a while; rerun with --yes to continue",
		path, humanize.Bytes(uint64(info.Size())), humanize.Bytes(uint64(limit)))
}

func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
