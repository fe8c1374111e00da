package diskspace

// OSVersion is the subset of the OS version used for tier detection.
type OSVersion struct {
	Major            uint32
	Minor            uint32
	ServicePackMajor uint16
}

// AtLeast reports whether v is the given version or newer, comparing major,
// minor and service pack in that order.
func (v OSVersion) AtLeast(major, minor uint32, servicePack uint16) bool {
	if v.Major != major {
		return v.Major > major
	}
	if v.Minor != minor {
		return v.Minor > minor
	}
	return v.ServicePackMajor >= servicePack
}

func (v OSVersion) IsWindows10OrGreater() bool { return v.AtLeast(10, 0, 0) }
func (v OSVersion) IsWindows8OrGreater() bool  { return v.AtLeast(6, 2, 0) }
func (v OSVersion) IsWindows7OrGreater() bool  { return v.AtLeast(6, 1, 0) }

// Tier buckets v into "10+", "8" or "7". Older versions have no tier.
func (v OSVersion) Tier() string {
	switch {
	case v.IsWindows10OrGreater():
		return "10+"
	case v.IsWindows8OrGreater():
		return "8"
	case v.IsWindows7OrGreater():
		return "7"
	default:
		return ""
	}
}

// PlatformVersion renders the string returned by getPlatformVersion.
func PlatformVersion(v OSVersion) string {
	return "Windows " + v.Tier()
}

// VersionProbe reports the running OS version.
type VersionProbe interface {
	OSVersion() OSVersion
}

// VersionProbeFunc adapts a function to VersionProbe.
type VersionProbeFunc func() OSVersion

// OSVersion calls f.
func (f VersionProbeFunc) OSVersion() OSVersion {
	return f()
}

// SystemVersion probes the running OS.
type SystemVersion struct{}

// OSVersion returns the version of the running OS.
func (SystemVersion) OSVersion() OSVersion {
	return osVersion()
}
