package diskspace

// Method identifies one of the operations the adapter answers.
type Method int

// Supported methods. MethodUnknown covers every name outside the table.
const (
	MethodUnknown Method = iota
	MethodFreeSpaceForPath
	MethodTotalSpaceForPath
	MethodFreeSpace
	MethodTotalSpace
	MethodPlatformVersion
)

// Wire names of the supported methods, as sent by the host.
const (
	NameFreeSpaceForPath  = "getFreeDiskSpaceForPath"
	NameTotalSpaceForPath = "getTotalDiskSpaceForPath"
	NameFreeSpace         = "getFreeDiskSpace"
	NameTotalSpace        = "getTotalDiskSpace"
	NamePlatformVersion   = "getPlatformVersion"
)

var methodsByName = map[string]Method{
	NameFreeSpaceForPath:  MethodFreeSpaceForPath,
	NameTotalSpaceForPath: MethodTotalSpaceForPath,
	NameFreeSpace:         MethodFreeSpace,
	NameTotalSpace:        MethodTotalSpace,
	NamePlatformVersion:   MethodPlatformVersion,
}

// ParseMethod maps a wire name onto a Method. Matching is exact and
// case-sensitive; anything else yields MethodUnknown.
func ParseMethod(name string) Method {
	if m, ok := methodsByName[name]; ok {
		return m
	}
	return MethodUnknown
}

func (m Method) String() string {
	switch m {
	case MethodFreeSpaceForPath:
		return NameFreeSpaceForPath
	case MethodTotalSpaceForPath:
		return NameTotalSpaceForPath
	case MethodFreeSpace:
		return NameFreeSpace
	case MethodTotalSpace:
		return NameTotalSpace
	case MethodPlatformVersion:
		return NamePlatformVersion
	default:
		return "unknown"
	}
}

// NeedsPath reports whether the method reads a "path" argument.
func (m Method) NeedsPath() bool {
	return m == MethodFreeSpaceForPath || m == MethodTotalSpaceForPath
}

// Names returns the wire names of every supported method.
func Names() []string {
	return []string{
		NameFreeSpaceForPath,
		NameTotalSpaceForPath,
		NameFreeSpace,
		NameTotalSpace,
		NamePlatformVersion,
	}
}
