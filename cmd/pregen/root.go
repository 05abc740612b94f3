package main

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/kenvix/pregen/processor"
)

const envPrefix = "PREGEN"

// Config keys. They double as flag names.
const (
	keyTargetAppPackage        = "target-app-package"
	keyExtendedProcessPackages = "extended-process-packages"
	keyOptions                 = "options"
	keyOutputDir               = "output-dir"
	keyIncludeTests            = "include-tests"
	keyFragmentScope           = "fragment-scope"
	keyLogLevel                = "log-level"
	keyLogFormat               = "log-format"
	keyWatch                   = "watch"
	keyDebounce                = "debounce"
)

// settings is the resolved configuration of one invocation.
type settings struct {
	patterns     []string
	opts         processor.Options
	outputDir    string
	includeTests bool
	scope        processor.FragmentScope
	watch        bool
	debounce     time.Duration
}

func newRootCommand() *cobra.Command {
	v := viper.New()
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "pregen [packages]",
		Short: "Runs marker-driven code generators over Go packages",
		Long: `pregen loads the given packages, reads the markers in their doc comments
and runs all registered generators over the marked members. Output files are
written to the "generated" package below the target application package.

Configuration is read from flags, from PREGEN_* environment variables and
from .pregen.yaml in the current directory, in that order of precedence.

Examples:
  pregen --target-app-package example.com/app ./...
  pregen -A TargetAppPackage=example.com/app -A ExtendedProcessPackages=example.com/lib ./...
  pregen --watch --target-app-package example.com/app ./...`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return readConfig(v, cfgFile)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger(v, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			s, err := loadSettings(v, cmd.Flags(), args)
			if err != nil {
				return err
			}
			cfg := newProcessorConfig(s, log)
			if s.watch {
				return watch(cmd.Context(), cfg, s.debounce, log)
			}
			return cfg.Execute()
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is .pregen.yaml)")
	pf.String(keyTargetAppPackage, "", "import path of the application that code is generated for")
	pf.String(keyExtendedProcessPackages, "", "comma-separated import path prefixes to process besides the target package")
	pf.StringArrayP("option", "A", nil, "raw generator option as key=value (repeatable)")
	pf.Bool(keyIncludeTests, false, "also process test files")
	pf.String(keyLogLevel, "info", "log level (debug, info, warn, error)")
	pf.String(keyLogFormat, "text", "log format (text, json)")

	f := cmd.Flags()
	f.String(keyOutputDir, "", "root directory for generated files; files go to <dir>/src/<import path>. "+
		"By default they are written into the module that contains the target package")
	f.String(keyFragmentScope, processor.ScopeKind.String(), "sharing of cached code fragments (kind, instance)")
	f.Bool(keyWatch, false, "keep running and regenerate when sources change")
	f.Duration(keyDebounce, 300*time.Millisecond, "quiet period after a change before regenerating")

	for _, fs := range []*pflag.FlagSet{pf, f} {
		fs.VisitAll(func(fl *pflag.Flag) {
			if fl.Name == "config" || fl.Name == "option" {
				return
			}
			_ = v.BindPFlag(fl.Name, fl)
		})
	}

	cmd.AddCommand(newTasksCommand(v))
	return cmd
}

// readConfig reads the config file, if any, and sets up environment lookup.
// A missing default config file is not an error.
func readConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".pregen")
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return errors.Wrap(err, "reading config")
	}
	return nil
}

func newLogger(v *viper.Viper, out io.Writer) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(out)
	level, err := logrus.ParseLevel(v.GetString(keyLogLevel))
	if err != nil {
		return nil, err
	}
	log.SetLevel(level)
	switch format := v.GetString(keyLogFormat); format {
	case "text":
		log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, errors.Errorf("unknown log format %q", format)
	}
	return log, nil
}

func loadSettings(v *viper.Viper, flags *pflag.FlagSet, patterns []string) (*settings, error) {
	opts, err := generatorOptions(v, flags)
	if err != nil {
		return nil, err
	}
	s := &settings{
		patterns:     patterns,
		opts:         opts,
		outputDir:    v.GetString(keyOutputDir),
		includeTests: v.GetBool(keyIncludeTests),
		watch:        v.GetBool(keyWatch),
		debounce:     v.GetDuration(keyDebounce),
	}
	if s.outputDir != "" {
		if _, err := os.Stat(s.outputDir); err != nil {
			return nil, errors.Wrapf(err, "output directory %s", s.outputDir)
		}
	}
	switch scope := v.GetString(keyFragmentScope); scope {
	case "", processor.ScopeKind.String():
		s.scope = processor.ScopeKind
	case processor.ScopeInstance.String():
		s.scope = processor.ScopeInstance
	default:
		return nil, errors.Errorf("unknown fragment scope %q", scope)
	}
	return s, nil
}

// generatorOptions assembles the options handed to generators: the "options"
// map of the config file, then -A flags, then the dedicated flags.
func generatorOptions(v *viper.Viper, flags *pflag.FlagSet) (processor.Options, error) {
	opts := processor.Options{}
	for k, val := range v.GetStringMapString(keyOptions) {
		opts[k] = val
	}
	// viper lower-cases map keys, so known keys are restored
	for _, known := range []string{processor.OptionTargetAppPackage, processor.OptionExtendedProcessPackages} {
		if val, ok := opts[strings.ToLower(known)]; ok {
			delete(opts, strings.ToLower(known))
			opts[known] = val
		}
	}

	if flags != nil {
		raw, err := flags.GetStringArray("option")
		if err != nil {
			return nil, err
		}
		for _, kv := range raw {
			k, val, ok := strings.Cut(kv, "=")
			if !ok || strings.TrimSpace(k) == "" {
				return nil, errors.Errorf("invalid option %q: expecting key=value", kv)
			}
			opts[strings.TrimSpace(k)] = val
		}
	}

	if t := v.GetString(keyTargetAppPackage); t != "" {
		opts[processor.OptionTargetAppPackage] = t
	}
	if v.IsSet(keyExtendedProcessPackages) && v.GetString(keyExtendedProcessPackages) != "" {
		opts[processor.OptionExtendedProcessPackages] = v.GetString(keyExtendedProcessPackages)
	}
	return opts, nil
}

func newProcessorConfig(s *settings, log logrus.FieldLogger) *processor.Config {
	return &processor.Config{
		Patterns:      s.patterns,
		IncludeTests:  s.includeTests,
		Options:       s.opts,
		Generators:    processor.AllRegisteredGenerators(),
		OutputFactory: processor.DefaultOutputFactory(s.outputDir),
		Messager:      processor.NewLogMessager(log),
		Fragments:     processor.NewFragmentCache(),
		FragmentScope: s.scope,
	}
}
