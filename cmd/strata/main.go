package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/strata/internal/convert"
	"github.com/ajitpratap0/strata/internal/loader"
	"github.com/ajitpratap0/strata/internal/schema"
	"github.com/ajitpratap0/strata/internal/validator"
	"github.com/ajitpratap0/strata/pkg/compression"
	"github.com/ajitpratap0/strata/pkg/config"
	"github.com/ajitpratap0/strata/pkg/formats/columnar"
	"github.com/ajitpratap0/strata/pkg/jsonutil"
	"github.com/ajitpratap0/strata/pkg/logger"
	"github.com/ajitpratap0/strata/pkg/observability"
	"github.com/ajitpratap0/strata/pkg/performance"
	"github.com/ajitpratap0/strata/pkg/report"
)

var version = "0.1.0"

// inputExtensions are the file suffixes picked up when scanning a directory,
// before any compression extension.
var inputExtensions = map[string]bool{
	".json":    true,
	".ndjson":  true,
	".jsonl":   true,
	".geojson": true,
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	var (
		cfgPath  string
		logLevel string
		cfg      *config.Config
		shutdown func(context.Context) error
	)

	root := &cobra.Command{
		Use:   "strata",
		Short: "Strata - JSON to columnar conversion with schema inference",
		Long: `Strata ingests heterogeneous JSON documents (NDJSON, arrays, wrapped
containers, relaxed syntax), infers one consistent schema per file, and
converts records into columnar artifacts in bounded memory.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(cfgPath)
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.Logging.Level = logLevel
			}
			if err := logger.Init(logger.Config{
				Level:    cfg.Logging.Level,
				Encoding: cfg.Logging.Encoding,
			}); err != nil {
				return err
			}
			shutdown, err = observability.Init(cfg.Observability.EnableTracing)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if shutdown != nil {
				_ = shutdown(context.Background())
			}
			_ = logger.Sync()
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to configuration file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Strata v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(newScanCmd(&cfg))
	root.AddCommand(newConvertCmd(&cfg))
	root.AddCommand(newValidateCmd(&cfg))
	root.AddCommand(newBenchmarkCmd(&cfg))
	root.AddCommand(newConfigCmd(&cfg))

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// collectInputs expands files and directories into the list of source files.
func collectInputs(args []string) ([]string, error) {
	var inputs []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			inputs = append(inputs, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			name := compression.TrimExt(entry.Name())
			if inputExtensions[strings.ToLower(filepath.Ext(name))] {
				inputs = append(inputs, filepath.Join(arg, entry.Name()))
			}
		}
	}
	sort.Strings(inputs)
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no input files found")
	}
	return inputs, nil
}

func newScanCmd(cfg **config.Config) *cobra.Command {
	var (
		sampleSize int
		strategy   string
		markdown   bool
	)
	cmd := &cobra.Command{
		Use:   "scan [files or directories...]",
		Short: "Infer and persist a schema artifact per input file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := *cfg
			if sampleSize > 0 {
				c.Inference.SampleSize = sampleSize
			}
			if strategy != "" {
				c.Inference.Strategy = strategy
			}
			if err := c.Validate(); err != nil {
				return err
			}

			inputs, err := collectInputs(args)
			if err != nil {
				return err
			}

			failures := 0
			for _, path := range inputs {
				art, err := scanFile(path, c)
				if err != nil {
					failures++
					logger.Error("scan failed", zap.String("file", path), zap.Error(err))
					continue
				}
				if markdown {
					fmt.Println(report.SchemaMarkdown(art))
				} else {
					fmt.Println(report.SchemaText(art))
				}
			}
			if failures > 0 {
				return fmt.Errorf("%d of %d files failed to scan", failures, len(inputs))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&sampleSize, "sample-size", 0, "records to sample for inference (0 = config default)")
	cmd.Flags().StringVar(&strategy, "strategy", "", "sampling strategy: first or random")
	cmd.Flags().BoolVar(&markdown, "markdown", false, "render schema reports as Markdown")
	return cmd
}

func scanFile(path string, cfg *config.Config) (*schema.Artifact, error) {
	st, err := loader.Open(path, cfg.Conversion)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	fs, err := schema.NewEngine(cfg.Inference).Infer(st)
	if err != nil {
		return nil, err
	}
	art := schema.NewArtifact(path, string(st.Dialect()), fs)
	artPath := schema.ArtifactPath(compression.TrimExt(path))
	if err := schema.SaveArtifact(artPath, art); err != nil {
		return nil, err
	}
	logger.Info("schema artifact written",
		zap.String("file", path),
		zap.String("artifact", artPath),
		zap.Int("fields", len(art.Fields)))
	return art, nil
}

func newConvertCmd(cfg **config.Config) *cobra.Command {
	var (
		formatNames []string
		outDir      string
		overwrite   bool
		scanFirst   bool
	)
	cmd := &cobra.Command{
		Use:   "convert [files or directories...]",
		Short: "Convert input files to columnar artifacts using persisted schemas",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := *cfg
			if outDir != "" {
				c.Output.Directory = outDir
			}
			if overwrite {
				c.Output.Overwrite = true
			}
			if len(formatNames) == 0 {
				formatNames = c.Output.Formats
			}
			if err := c.Validate(); err != nil {
				return err
			}

			formats := make([]columnar.Format, 0, len(formatNames))
			for _, name := range formatNames {
				f, err := columnar.ParseFormat(name)
				if err != nil {
					return err
				}
				formats = append(formats, f)
			}

			inputs, err := collectInputs(args)
			if err != nil {
				return err
			}
			if scanFirst {
				for _, path := range inputs {
					if _, err := scanFile(path, c); err != nil {
						logger.Error("scan failed", zap.String("file", path), zap.Error(err))
					}
				}
			}

			results := convert.NewOrchestrator(c).Convert(cmd.Context(), inputs, formats)
			failures := 0
			for _, res := range results {
				if res.Success {
					fmt.Printf("ok   %s -> %s (%d records)\n",
						res.Source, strings.Join(res.Outputs, ", "), res.Records)
				} else {
					failures++
					fmt.Printf("fail %s: %s\n", res.Source, res.Error)
				}
			}
			if failures > 0 {
				return fmt.Errorf("%d of %d files failed to convert", failures, len(results))
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&formatNames, "format", nil, "output formats (parquet, arrow, avro, csv)")
	cmd.Flags().StringVar(&outDir, "out", "", "output directory override")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "overwrite existing output artifacts")
	cmd.Flags().BoolVar(&scanFirst, "scan", false, "run schema inference before converting")
	return cmd
}

func newValidateCmd(cfg **config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [files or directories...]",
		Short: "Re-check records against their persisted schema artifacts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := *cfg
			inputs, err := collectInputs(args)
			if err != nil {
				return err
			}

			failures := 0
			for _, path := range inputs {
				rep, err := validateFile(path, c)
				if err != nil {
					failures++
					logger.Error("validation failed", zap.String("file", path), zap.Error(err))
					continue
				}
				data, err := jsonutil.MarshalIndent(rep, "", "  ")
				if err != nil {
					return err
				}
				fmt.Printf("%s:\n%s\n", path, data)
				if rep.Valid < rep.Records {
					failures++
				}
			}
			if failures > 0 {
				return fmt.Errorf("%d of %d files failed validation", failures, len(inputs))
			}
			return nil
		},
	}
	return cmd
}

func validateFile(path string, cfg *config.Config) (*validator.Report, error) {
	art, err := schema.LoadArtifact(schema.ArtifactPath(compression.TrimExt(path)))
	if err != nil {
		return nil, err
	}
	v, err := validator.New(art)
	if err != nil {
		return nil, err
	}
	st, err := loader.Open(path, cfg.Conversion)
	if err != nil {
		return nil, err
	}
	defer st.Close()
	return v.Validate(st)
}

func newBenchmarkCmd(cfg **config.Config) *cobra.Command {
	var (
		formatName string
		benchType  string
	)
	cmd := &cobra.Command{
		Use:   "benchmark [file]",
		Short: "Measure wall-clock, CPU and memory for scan and convert",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := *cfg
			if err := c.Validate(); err != nil {
				return err
			}
			format, err := columnar.ParseFormat(formatName)
			if err != nil {
				return err
			}
			switch benchType {
			case "schema", "conversion", "all":
			default:
				return fmt.Errorf("invalid benchmark type %q: want schema, conversion or all", benchType)
			}
			path := args[0]

			if benchType == "schema" || benchType == "all" {
				scanM, err := performance.Measure("scan", func() error {
					_, err := scanFile(path, c)
					return err
				})
				if err != nil {
					return err
				}
				fmt.Println(scanM)
			}

			if benchType == "conversion" || benchType == "all" {
				convM, err := performance.Measure("convert", func() error {
					results := convert.NewOrchestrator(c).Convert(cmd.Context(),
						[]string{path}, []columnar.Format{format})
					if !results[0].Success {
						return results[0].Err
					}
					fmt.Printf("  %d records in %d chunks (%s)\n",
						results[0].Records, results[0].Chunks, results[0].Strategy)
					return nil
				})
				if err != nil {
					return err
				}
				fmt.Println(convM)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&formatName, "format", "parquet", "output format to benchmark")
	cmd.Flags().StringVar(&benchType, "type", "all", "benchmark type: schema, conversion or all")
	return cmd
}

func newConfigCmd(cfg **config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration helpers",
	}
	var out string
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := yaml.Marshal(config.Default())
			if err != nil {
				return err
			}
			if out == "" {
				fmt.Print(string(data))
				return nil
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return err
			}
			fmt.Printf("configuration written to %s\n", out)
			return nil
		},
	}
	initCmd.Flags().StringVar(&out, "out", "", "write to this file instead of stdout")
	cmd.AddCommand(initCmd)

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := yaml.Marshal(*cfg)
			if err != nil {
				return err
			}
			fmt.Print(string(data))
			return nil
		},
	}
	cmd.AddCommand(showCmd)
	return cmd
}
