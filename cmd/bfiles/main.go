// Package main provides the bfiles CLI. It packs a directory tree into a
// single delimited text bundle and restores files from such a bundle.
//
// Commands:
//   - bundle   : bfiles bundle [flags] [root_dir]
//   - list     : bfiles list [flags] [root_dir]
//   - unbundle : bfiles unbundle [flags] <bundle_file> [output_dir]
//
// Settings come from defaults, an optional --config file, BFILES_*
// environment variables and flags, in increasing precedence.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"bfiles/internal/bundle"
	"bfiles/internal/config"
	"bfiles/internal/sortutil"
	"bfiles/internal/unbundle"
)

type globalFlags struct {
	configFile string
	logLevel   string
	verbose    bool
	quiet      bool
}

// level resolves the log level: an explicit --log-level wins, otherwise
// info, raised to debug by --verbose or lowered to error by --quiet.
func (g *globalFlags) level() (log.Level, error) {
	switch {
	case g.verbose && g.quiet:
		return 0, errors.New("--verbose and --quiet are mutually exclusive")
	case g.logLevel != "":
		lvl, err := log.ParseLevel(g.logLevel)
		if err != nil {
			return 0, fmt.Errorf("--log-level: %w", err)
		}
		return lvl, nil
	case g.verbose:
		return log.DebugLevel, nil
	case g.quiet:
		return log.ErrorLevel, nil
	}
	return log.InfoLevel, nil
}

func newLogger(w io.Writer, g *globalFlags) (*log.Logger, error) {
	lvl, err := g.level()
	if err != nil {
		return nil, err
	}
	return log.NewWithOptions(w, log.Options{Prefix: "bfiles", Level: lvl}), nil
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "bfiles",
		Short:         "Bundle a directory tree into one annotated text file and back",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&g.configFile, "config", "", "config file (yaml, toml or json)")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides -v and -q)")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "debug logging")
	root.PersistentFlags().BoolVarP(&g.quiet, "quiet", "q", false, "log errors only")

	root.AddCommand(newBundleCmd(g, stdout, stderr), newListCmd(g, stdout, stderr), newUnbundleCmd(g, stdout, stderr))
	return root
}

// addBundleFlags registers the flags shared by bundle and list. Flag names
// map onto config keys by replacing "-" with "_".
func addBundleFlags(cmd *cobra.Command) {
	d := config.Default()
	f := cmd.Flags()
	f.StringP("output", "o", d.OutputFile, "bundle file to write")
	f.String("encoding", d.Encoding, "text encoding of input files")
	f.String("hash-algorithm", d.HashAlgorithm, "content hash: md5, sha1, sha256, sha512, blake2b, blake3")
	f.Bool("use-gitignore", d.UseGitignore, "honor .gitignore files")
	f.Bool("follow-symlinks", d.FollowSymlinks, "follow symbolic links")
	f.Int("max-files", d.MaxFiles, "stop including after N files (0 = no limit)")
	f.Int("chunk-size", d.ChunkSize, "split files above N tokens (0 = never)")
	f.Int("chunk-overlap", d.ChunkOverlap, "tokens repeated between consecutive chunks")
	f.String("tokenizer", d.Tokenizer, "token encoding: cl100k_base or bytes")
	f.Bool("allow-unsafe", false, "include files with terminal control characters as-is")
	f.Bool("sanitize-unsafe", false, "replace terminal control characters with [NAME]")
	f.StringSliceP("include", "i", nil, "glob that forces inclusion (repeatable)")
	f.StringSliceP("exclude", "e", nil, "literal path, regex or glob to exclude (repeatable)")
	f.String("comment", "", "comment written into the bundle header")
	f.Bool("show-excluded", false, "print excluded items after bundling")
	f.String("exclusion-report", "", "write an exclusion report to this file")
	f.String("summary-format", d.SummaryFormat, "summary printed to stdout: text, yaml or json")
}

func loadConfig(g *globalFlags, cmd *cobra.Command, args []string) (config.Config, error) {
	cfg, err := config.Load(config.LoadOptions{ConfigFile: g.configFile, Flags: cmd.Flags()})
	if err != nil {
		return config.Config{}, err
	}
	if len(args) > 0 {
		cfg.RootDir = args[0]
	}
	return cfg, nil
}

func newBundleCmd(g *globalFlags, stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bundle [root_dir]",
		Short: "Write a bundle of every included file under root_dir",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(stderr, g)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(g, cmd, args)
			if err != nil {
				return err
			}
			b, err := bundle.New(cfg, bundle.Options{Logger: logger})
			if err != nil {
				return err
			}
			stats, err := b.Run()
			if err != nil {
				return err
			}
			return report(stdout, b, stats)
		},
	}
	addBundleFlags(cmd)
	return cmd
}

// report prints the run summary and, when asked, the excluded items.
func report(w io.Writer, b *bundle.Bundler, stats bundle.Stats) error {
	cfg := b.Config()
	switch cfg.SummaryFormat {
	case config.SummaryYAML, config.SummaryJSON:
		if err := stats.WriteSummary(w, cfg.SummaryFormat); err != nil {
			return err
		}
	default:
		fmt.Fprintf(w, "Bundle written to %s\n", cfg.OutputFile)
		fmt.Fprint(w, stats.Footer(filepath.Base(cfg.OutputFile), cfg.UseGitignore))
	}
	if cfg.ShowExcluded {
		fmt.Fprintln(w, "\nExcluded items:")
		return b.Exclusions().WriteList(w)
	}
	return nil
}

func newListCmd(g *globalFlags, stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list [root_dir]",
		Short: "Print the files a bundle run would consider, without writing one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(stderr, g)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(g, cmd, args)
			if err != nil {
				return err
			}
			b, err := bundle.New(cfg, bundle.Options{Logger: logger})
			if err != nil {
				return err
			}
			files, err := b.Collect()
			if err != nil {
				return err
			}
			root := b.Exclusions().Root()
			for _, f := range files {
				fmt.Fprintln(stdout, sortutil.RelKey(root, f))
			}
			fmt.Fprintf(stdout, "\n%d candidate files\n", len(files))
			if b.Config().ShowExcluded {
				fmt.Fprintln(stdout, "\nExcluded items:")
				return b.Exclusions().WriteList(stdout)
			}
			return nil
		},
	}
	addBundleFlags(cmd)
	return cmd
}

type unbundleFlags struct {
	force  bool
	dryRun bool
	list   bool
}

func newUnbundleCmd(g *globalFlags, stdout, stderr io.Writer) *cobra.Command {
	uf := &unbundleFlags{}
	cmd := &cobra.Command{
		Use:   "unbundle <bundle_file> [output_dir]",
		Short: "Restore files from a bundle",
		Long:  "Restore files from a bundle. Without output_dir files go to <bundle stem>_unbundled next to the bundle.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(stderr, g)
			if err != nil {
				return err
			}
			out := ""
			if len(args) == 2 {
				out = args[1]
			}
			res, err := unbundle.ParseAndExtract(args[0], out, unbundle.Options{
				Force:    uf.force,
				DryRun:   uf.dryRun,
				ListOnly: uf.list,
				Logger:   logger,
				Out:      stdout,
			})
			if err != nil {
				return err
			}
			switch {
			case uf.list:
			case uf.dryRun:
				fmt.Fprintf(stdout, "Dry run complete. Would process %d unique file paths.\n", res.Paths)
			default:
				fmt.Fprintf(stdout, "Extraction complete. Extracted %d files to %s\n", res.Written, res.OutputRoot)
			}
			if n := res.Failed + res.Unsafe; n > 0 {
				fmt.Fprintf(stderr, "Note: %d entries were not restored, see the log for details\n", n)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&uf.force, "force", "f", false, "overwrite existing files")
	cmd.Flags().BoolVar(&uf.dryRun, "dry-run", false, "report actions without writing")
	cmd.Flags().BoolVarP(&uf.list, "list", "l", false, "list bundle contents only")
	return cmd
}

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(1)
	}
}
