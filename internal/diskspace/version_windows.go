//go:build windows

package diskspace

import "golang.org/x/sys/windows"

// osVersion uses RtlGetVersion, which reports the real version regardless of
// the executable's compatibility manifest.
func osVersion() OSVersion {
	info := windows.RtlGetVersion()
	return OSVersion{
		Major:            info.MajorVersion,
		Minor:            info.MinorVersion,
		ServicePackMajor: info.ServicePackMajor,
	}
}
