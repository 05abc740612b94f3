package main

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/tools/go/packages"

	"github.com/kenvix/pregen/processor"
)

// watch runs cfg once and then again whenever a Go source file in one of the
// loaded package directories changes, until ctx is done. All runs share the
// config's fragment cache. Failed runs are logged, not returned.
func watch(ctx context.Context, cfg *processor.Config, debounce time.Duration, log logrus.FieldLogger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "creating file watcher")
	}
	defer w.Close()

	watched := map[string]struct{}{}
	run := func() {
		pkgs, roots, err := cfg.Load()
		if err != nil {
			log.WithError(err).Error("Loading packages failed")
			return
		}
		if err := cfg.ExecuteElements(pkgs, roots); err != nil {
			log.WithError(err).Error("Processing failed")
		} else {
			log.Info("Processing done")
		}
		for _, dir := range packageDirs(pkgs) {
			if _, ok := watched[dir]; ok {
				continue
			}
			if err := w.Add(dir); err != nil {
				log.WithError(err).WithField("dir", dir).Warn("Cannot watch directory")
				continue
			}
			watched[dir] = struct{}{}
		}
	}

	run()
	log.WithField("dirs", len(watched)).Info("Watching for changes")

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !isSourceChange(ev) {
				continue
			}
			log.WithField("file", ev.Name).Debug("Source changed")
			timer.Reset(debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("File watcher error")
		case <-timer.C:
			run()
		}
	}
}

// isSourceChange reports whether the event touches a Go source file outside
// of a generated package, so that our own output does not trigger a rerun.
func isSourceChange(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return false
	}
	if !strings.HasSuffix(ev.Name, ".go") {
		return false
	}
	return filepath.Base(filepath.Dir(ev.Name)) != processor.GeneratedPackage
}

// packageDirs returns the distinct directories holding the packages' files.
func packageDirs(pkgs []*packages.Package) []string {
	seen := map[string]struct{}{}
	var dirs []string
	for _, pkg := range pkgs {
		for _, f := range pkg.GoFiles {
			dir := filepath.Dir(f)
			if _, ok := seen[dir]; ok {
				continue
			}
			seen[dir] = struct{}{}
			dirs = append(dirs, dir)
		}
	}
	return dirs
}
