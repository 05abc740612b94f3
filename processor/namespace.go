package processor

import (
	"strings"
)

// Option keys recognized by the framework.
const (
	OptionTargetAppPackage        = "TargetAppPackage"
	OptionExtendedProcessPackages = "ExtendedProcessPackages"
)

// DefaultExtendedPackage is always allowed, in addition to the target package
// and any configured extended packages. DefaultExtendedImportPath is the same
// namespace spelled as a Go import path, and is allowed as well.
const (
	DefaultExtendedPackage    = "com.kenvix.android"
	DefaultExtendedImportPath = "github.com/kenvix/android"
)

const targetHint = `Pass it to the host, for example:
    pregen --target-app-package example.com/app ./...
or as a raw option:
    pregen -A TargetAppPackage=example.com/app -A ExtendedProcessPackages= ./...`

// Options are the key-value options supplied by the host build environment.
type Options map[string]string

// TargetAppPackage returns the root import path that code is generated for.
// It fails with a *ConfigurationError if the option is absent or blank.
func (o Options) TargetAppPackage() (string, error) {
	target := strings.TrimSpace(o[OptionTargetAppPackage])
	if target == "" {
		return "", &ConfigurationError{Key: OptionTargetAppPackage, Hint: targetHint}
	}
	return target, nil
}

// ExtendedProcessPackages returns the configured comma-separated list of
// additional import path prefixes, followed by DefaultExtendedPackage and
// DefaultExtendedImportPath. The defaults are appended even when the option is
// present, so an empty option still yields exactly the two defaults.
func (o Options) ExtendedProcessPackages() []string {
	var pkgs []string
	for _, p := range strings.Split(o[OptionExtendedProcessPackages], ",") {
		if p = strings.TrimSpace(p); p != "" {
			pkgs = append(pkgs, p)
		}
	}
	return append(pkgs, DefaultExtendedPackage, DefaultExtendedImportPath)
}

// NamespaceFilter decides whether an element belongs to the target
// application or to one of the allow-listed packages.
type NamespaceFilter struct {
	opts     Options
	extended []string
}

// NewNamespaceFilter captures the allow-list from the given options. The
// target package is not required here: it is checked on first use.
func NewNamespaceFilter(opts Options) *NamespaceFilter {
	own := make(Options, len(opts))
	for k, v := range opts {
		own[k] = v
	}
	return &NamespaceFilter{opts: own, extended: own.ExtendedProcessPackages()}
}

// AllowList returns a copy of the allow-listed prefixes, not including the
// target package.
func (f *NamespaceFilter) AllowList() []string {
	return append([]string(nil), f.extended...)
}

// ShouldProcess reports whether the given qualified name starts with the
// target package or with any allow-listed prefix. The result depends only on
// the name and the options.
func (f *NamespaceFilter) ShouldProcess(qualifiedName string) (bool, error) {
	target, err := f.opts.TargetAppPackage()
	if err != nil {
		return false, err
	}
	if strings.HasPrefix(qualifiedName, target) {
		return true, nil
	}
	for _, prefix := range f.extended {
		if strings.HasPrefix(qualifiedName, prefix) {
			return true, nil
		}
	}
	return false, nil
}
