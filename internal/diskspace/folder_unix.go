//go:build !windows

package diskspace

import (
	"os"
	"path/filepath"
)

func desktopFolder() (string, func(), error) {
	release := func() {}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", release, err
	}

	desktop := filepath.Join(home, "Desktop")
	if fi, err := os.Stat(desktop); err == nil && fi.IsDir() {
		return desktop, release, nil
	}

	return home, release, nil
}
