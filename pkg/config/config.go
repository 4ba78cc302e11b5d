package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// DetectConfig controls sampling for encoding inference.
type DetectConfig struct {
	SampleSize          int     `mapstructure:"sample_size"`
	ResampleFactor      int     `mapstructure:"resample_factor"`
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
}

// ConvertConfig controls streaming conversion.
type ConvertConfig struct {
	ChunkSize        int    `mapstructure:"chunk_size"`
	ProgressInterval int64  `mapstructure:"progress_interval"`
	OutputSuffix     string `mapstructure:"output_suffix"`
	LockDir          string `mapstructure:"lock_dir"`
	// LargeFileWarning is the size in bytes above which the CLI asks for confirmation.
	LargeFileWarning int64 `mapstructure:"large_file_warning"`
}

// ScanConfig controls chapter scanning.
type ScanConfig struct {
	Encodings    []string      `mapstructure:"encodings"`
	RegexTimeout time.Duration `mapstructure:"regex_timeout"`
}

// EPubConfig holds book metadata defaults and illustration limits.
type EPubConfig struct {
	Author             string `mapstructure:"author"`
	Language           string `mapstructure:"language"`
	OutputDir          string `mapstructure:"output_dir"`
	IllustrationWidth  int    `mapstructure:"illustration_width"`
	IllustrationHeight int    `mapstructure:"illustration_height"`
	// Device is a reader preset ID; when set it overrides the illustration size.
	Device string `mapstructure:"device"`
}

// Config is passed explicitly into pipeline construction. The caller owns
// its lifecycle; nothing in the core reads global settings.
type Config struct {
	Debug        bool          `mapstructure:"debug"`
	DatabasePath string        `mapstructure:"database_path"`
	Detect       DetectConfig  `mapstructure:"detect"`
	Convert      ConvertConfig `mapstructure:"convert"`
	Scan         ScanConfig    `mapstructure:"scan"`
	EPub         EPubConfig    `mapstructure:"epub"`
}

// LoadConfig reads configPath, or ~/.txt2epub.yaml and ./.txt2epub.yaml when
// configPath is empty. A missing file is not an error.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigName(".txt2epub")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("TXT2EPUB")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// NewDefaultConfig returns the built-in defaults without touching the filesystem.
func NewDefaultConfig() *Config {
	v := viper.New()
	setDefaults(v)

	var config Config
	_ = v.Unmarshal(&config)
	return &config
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)
	v.SetDefault("database_path", filepath.Join(defaultDataDir(), "settings.db"))

	v.SetDefault("detect.sample_size", 100*1024)
	v.SetDefault("detect.resample_factor", 3)
	v.SetDefault("detect.confidence_threshold", 0.7)

	v.SetDefault("convert.chunk_size", 1024*1024)
	v.SetDefault("convert.progress_interval", 5*1024*1024)
	v.SetDefault("convert.output_suffix", "_utf8")
	v.SetDefault("convert.lock_dir", filepath.Join(os.TempDir(), "txt2epub-locks"))
	v.SetDefault("convert.large_file_warning", 100*1024*1024)

	v.SetDefault("scan.encodings", []string{"utf-8-sig", "utf-8", "euc-kr"})
	v.SetDefault("scan.regex_timeout", 2*time.Second)

	v.SetDefault("epub.author", "Unknown")
	v.SetDefault("epub.language", "ko")
	v.SetDefault("epub.output_dir", "")
	v.SetDefault("epub.illustration_width", 1200)
	v.SetDefault("epub.illustration_height", 1600)
	v.SetDefault("epub.device", "")
}

// defaultDataDir returns XDG_DATA_HOME/txt2epub or ~/.local/share/txt2epub.
func defaultDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "txt2epub")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".txt2epub"
	}
	return filepath.Join(home, ".local", "share", "txt2epub")
}
