package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// LoadOptions selects the sources merged by Load.
type LoadOptions struct {
	// ConfigFile is an optional yaml, toml or json file.
	ConfigFile string
	// Flags are bound by key; a flag only overrides when it was set.
	Flags *pflag.FlagSet
	// FlagKeys maps flag names to config keys when they differ.
	FlagKeys map[string]string
}

// keys lists every config key; each is bound to BFILES_<KEY>.
var keys = []string{
	"root_dir", "output", "encoding", "hash_algorithm", "use_gitignore",
	"follow_symlinks", "max_files", "chunk_size", "chunk_overlap", "tokenizer",
	"allow_unsafe", "sanitize_unsafe", "include", "exclude", "comment",
	"show_excluded", "exclusion_report", "summary_format",
}

// Load merges defaults, the config file, BFILES_* environment variables and
// flags, in increasing precedence. The result is not validated.
func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	d := Default()
	v.SetDefault("root_dir", d.RootDir)
	v.SetDefault("output", d.OutputFile)
	v.SetDefault("encoding", d.Encoding)
	v.SetDefault("hash_algorithm", d.HashAlgorithm)
	v.SetDefault("use_gitignore", d.UseGitignore)
	v.SetDefault("follow_symlinks", d.FollowSymlinks)
	v.SetDefault("max_files", d.MaxFiles)
	v.SetDefault("chunk_size", d.ChunkSize)
	v.SetDefault("chunk_overlap", d.ChunkOverlap)
	v.SetDefault("tokenizer", d.Tokenizer)
	v.SetDefault("allow_unsafe", d.AllowUnsafe)
	v.SetDefault("sanitize_unsafe", d.SanitizeUnsafe)
	v.SetDefault("include", []string{})
	v.SetDefault("exclude", []string{})
	v.SetDefault("comment", d.HeaderComment)
	v.SetDefault("show_excluded", d.ShowExcluded)
	v.SetDefault("exclusion_report", d.ExclusionReport)
	v.SetDefault("summary_format", d.SummaryFormat)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	for _, k := range keys {
		if err := v.BindEnv(k); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", k, err)
		}
	}

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", opts.ConfigFile, err)
		}
	}

	if opts.Flags != nil {
		var bindErr error
		opts.Flags.VisitAll(func(f *pflag.Flag) {
			key, ok := opts.FlagKeys[f.Name]
			if !ok {
				key = strings.ReplaceAll(f.Name, "-", "_")
			}
			if !isKey(key) || bindErr != nil {
				return
			}
			bindErr = v.BindPFlag(key, f)
		})
		if bindErr != nil {
			return Config{}, fmt.Errorf("bind flags: %w", bindErr)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

func isKey(k string) bool {
	for _, known := range keys {
		if known == k {
			return true
		}
	}
	return false
}
