package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kenvix/pregen/processor"
)

// parseRoot parses args with a fresh root command without running it, and
// returns a viper instance bound to the parsed flags.
func parseRoot(t *testing.T, args ...string) (*cobra.Command, *viper.Viper) {
	cmd := newRootCommand()
	cmd.RunE = func(*cobra.Command, []string) error { return nil }
	cmd.SetArgs(args)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	require.NoError(t, cmd.Execute())

	v := viper.New()
	require.NoError(t, v.BindPFlags(cmd.Flags()))
	return cmd, v
}

func chdir(t *testing.T, dir string) {
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func TestGeneratorOptions(t *testing.T) {
	chdir(t, t.TempDir())
	cmd, v := parseRoot(t,
		"-A", "Custom=1",
		"-A", "ExtendedProcessPackages=example.com/a,example.com/b",
		"--target-app-package", "example.com/app",
		"./...")

	opts, err := generatorOptions(v, cmd.Flags())
	require.NoError(t, err)
	assert.Equal(t, processor.Options{
		"Custom":                                "1",
		processor.OptionExtendedProcessPackages: "example.com/a,example.com/b",
		processor.OptionTargetAppPackage:        "example.com/app",
	}, opts)
}

func TestGeneratorOptions_Invalid(t *testing.T) {
	chdir(t, t.TempDir())
	cmd, v := parseRoot(t, "-A", "novalue", "./...")
	_, err := generatorOptions(v, cmd.Flags())
	assert.EqualError(t, err, `invalid option "novalue": expecting key=value`)
}

func TestReadConfig(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".pregen.yaml"), []byte(`
target-app-package: example.com/fromfile
fragment-scope: instance
debounce: 1s
options:
  ExtendedProcessPackages: example.com/lib
  Other: x
`), 0644))

	v := viper.New()
	require.NoError(t, readConfig(v, ""))
	s, err := loadSettings(v, nil, []string{"./..."})
	require.NoError(t, err)
	assert.Equal(t, "example.com/fromfile", s.opts[processor.OptionTargetAppPackage])
	assert.Equal(t, "example.com/lib", s.opts[processor.OptionExtendedProcessPackages])
	assert.Equal(t, "x", s.opts["other"])
	assert.Equal(t, processor.ScopeInstance, s.scope)
	assert.Equal(t, time.Second, s.debounce)
}

func TestReadConfig_Env(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("PREGEN_TARGET_APP_PACKAGE", "example.com/fromenv")

	v := viper.New()
	require.NoError(t, readConfig(v, ""))
	opts, err := generatorOptions(v, nil)
	require.NoError(t, err)
	assert.Equal(t, "example.com/fromenv", opts[processor.OptionTargetAppPackage])
}

func TestReadConfig_MissingExplicitFile(t *testing.T) {
	chdir(t, t.TempDir())
	err := readConfig(viper.New(), "does-not-exist.yaml")
	assert.Error(t, err)
}

func TestLoadSettings_Errors(t *testing.T) {
	v := viper.New()
	v.Set(keyFragmentScope, "global")
	_, err := loadSettings(v, nil, nil)
	assert.EqualError(t, err, `unknown fragment scope "global"`)

	v = viper.New()
	v.Set(keyOutputDir, filepath.Join(t.TempDir(), "missing"))
	_, err = loadSettings(v, nil, nil)
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	v := viper.New()
	v.Set(keyLogLevel, "debug")
	v.Set(keyLogFormat, "json")
	log, err := newLogger(v, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, log.Formatter)

	v.Set(keyLogFormat, "xml")
	_, err = newLogger(v, &bytes.Buffer{})
	assert.Error(t, err)

	v.Set(keyLogLevel, "loud")
	_, err = newLogger(v, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestRootCommand_RequiresPackages(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs(nil)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	assert.Error(t, cmd.Execute())
}

func TestRootCommand_Run(t *testing.T) {
	dir := writeFixture(t, validateFixture)
	out := t.TempDir()
	chdir(t, dir)

	var logs bytes.Buffer
	cmd := newRootCommand()
	cmd.SetArgs([]string{"--target-app-package", "github.com/kenvix/pregen/models", "--output-dir", out, "./..."})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&logs)
	require.NoError(t, cmd.Execute())

	_, err := os.Stat(filepath.Join(out, "src", "github.com", "kenvix", "pregen", "models", "generated", validateFile))
	assert.NoError(t, err)
	assert.Contains(t, logs.String(), "Annotation Preprocessor: validate Initialized")
}

func TestRootCommand_MissingTarget(t *testing.T) {
	dir := writeFixture(t, validateFixture)
	chdir(t, dir)

	cmd := newRootCommand()
	cmd.SetArgs([]string{"./..."})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.Execute()
	var cfgErr *processor.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, processor.OptionTargetAppPackage, cfgErr.Key)
}
