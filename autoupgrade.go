package main

import (
	"runtime/debug"

	"github.com/blang/semver"
	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
	"github.com/rhysd/go-github-selfupdate/selfupdate"
)

// appVersion is set at build time with -ldflags "-X main.appVersion=...".
var appVersion string

const githubRepo = "Rione/racoon-frc"

func getVersion() string {
	if appVersion != "" {
		return appVersion
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	return info.Main.Version
}

// releaseVersion parses v as a release version. Development builds have none.
func releaseVersion(v string) (semver.Version, bool) {
	if v == "" || v == "(devel)" || v == "unknown" {
		return semver.Version{}, false
	}
	sv, err := semver.ParseTolerant(v)
	if err != nil {
		return semver.Version{}, false
	}
	return sv, true
}

// confirmAndSelfUpdate replaces the running binary with the latest GitHub
// release when it is newer. It reports whether the binary was replaced, in
// which case the caller should exit and let the supervisor restart it.
func confirmAndSelfUpdate(l hclog.Logger, token string) (bool, error) {
	l = l.Named("upgrade")
	current, ok := releaseVersion(getVersion())
	if !ok {
		l.Info("no release version, skipping update", "version", getVersion())
		return false, nil
	}

	updater, err := selfupdate.NewUpdater(selfupdate.Config{APIToken: token})
	if err != nil {
		return false, errors.Wrap(err, "create updater")
	}
	latest, found, err := updater.DetectLatest(githubRepo)
	if err != nil {
		return false, errors.Wrap(err, "detect latest release")
	}
	if !found {
		l.Info("no releases found", "repo", githubRepo)
		return false, nil
	}
	if !latest.Version.GT(current) {
		l.Info("current version is the latest", "version", current.String())
		return false, nil
	}

	l.Info("new version available", "current", current.String(), "latest", latest.Version.String())
	if _, err := updater.UpdateSelf(current, githubRepo); err != nil {
		return false, errors.Wrap(err, "update binary")
	}
	l.Info("updated", "version", latest.Version.String())
	return true, nil
}
