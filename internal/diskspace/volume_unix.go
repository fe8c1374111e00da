//go:build !windows

package diskspace

import "github.com/shirou/gopsutil/v3/disk"

const platformErrorPrefix = "OS error"

func queryVolume(path string) (VolumeSpace, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return VolumeSpace{}, err
	}

	// gopsutil reports Free as blocks available to unprivileged users and
	// Used as Total minus all free blocks.
	return VolumeSpace{
		FreeBytesAvailable: usage.Free,
		TotalBytes:         usage.Total,
		TotalFreeBytes:     usage.Total - usage.Used,
	}, nil
}
