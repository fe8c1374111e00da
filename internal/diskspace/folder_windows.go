//go:build windows

package diskspace

import "golang.org/x/sys/windows"

// desktopFolder asks the shell for FOLDERID_Desktop. KnownFolderPath frees
// the shell-allocated string itself, so there is nothing left to release.
func desktopFolder() (string, func(), error) {
	release := func() {}

	path, err := windows.KnownFolderPath(windows.FOLDERID_Desktop, windows.KF_FLAG_DEFAULT)
	if err != nil {
		return "", release, err
	}
	return path, release, nil
}
