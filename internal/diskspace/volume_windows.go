//go:build windows

package diskspace

import "golang.org/x/sys/windows"

const platformErrorPrefix = "Win32 error"

func queryVolume(path string) (VolumeSpace, error) {
	var vs VolumeSpace

	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return vs, err
	}

	err = windows.GetDiskFreeSpaceEx(p, &vs.FreeBytesAvailable, &vs.TotalBytes, &vs.TotalFreeBytes)
	return vs, err
}
