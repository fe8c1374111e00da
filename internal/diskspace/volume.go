package diskspace

import (
	"errors"
	"fmt"
	"syscall"
)

// bytesPerMegabyte is the divisor used for every size reported to the host.
const bytesPerMegabyte = 1024 * 1024

// VolumeSpace holds the byte counts of the volume containing a path.
type VolumeSpace struct {
	FreeBytesAvailable uint64 // free bytes visible to the calling user
	TotalBytes         uint64
	TotalFreeBytes     uint64
}

// VolumeQuerier reports space on the volume containing path.
type VolumeQuerier interface {
	QueryVolume(path string) (VolumeSpace, error)
}

// VolumeQuerierFunc adapts a function to VolumeQuerier.
type VolumeQuerierFunc func(path string) (VolumeSpace, error)

// QueryVolume calls f(path).
func (f VolumeQuerierFunc) QueryVolume(path string) (VolumeSpace, error) {
	return f(path)
}

// SystemVolumes queries the running OS.
type SystemVolumes struct{}

// QueryVolume reports space for the volume containing path.
func (SystemVolumes) QueryVolume(path string) (VolumeSpace, error) {
	return queryVolume(path)
}

func toMegabytes(b uint64) float64 {
	return float64(b) / bytesPerMegabyte
}

// platformFailure turns an OS error into a PlatformError carrying the native code.
func platformFailure(err error) *PlatformError {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return &PlatformError{
			Code:    uint32(errno),
			Message: fmt.Sprintf("%s %d", platformErrorPrefix, uint32(errno)),
			Err:     err,
		}
	}

	return &PlatformError{
		Message: fmt.Sprintf("%s: %v", platformErrorPrefix, err),
		Err:     err,
	}
}
