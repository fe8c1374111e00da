//go:build !windows

package diskspace

// osVersion has no Windows version to report, so no tier is ever selected.
func osVersion() OSVersion {
	return OSVersion{}
}
