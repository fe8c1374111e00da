package diskspace

// pathKey is the argument key read by the path-based methods.
const pathKey = "path"

// Adapter answers disk-space method calls. Every call is independent and
// holds no state between calls.
type Adapter struct {
	volumes VolumeQuerier
	folders FolderResolver
	version VersionProbe
}

// Option customizes an Adapter.
type Option func(*Adapter)

// WithVolumeQuerier replaces the OS volume query.
func WithVolumeQuerier(q VolumeQuerier) Option {
	return func(a *Adapter) { a.volumes = q }
}

// WithFolderResolver replaces the OS known-folder lookup.
func WithFolderResolver(r FolderResolver) Option {
	return func(a *Adapter) { a.folders = r }
}

// WithVersionProbe replaces the OS version lookup.
func WithVersionProbe(p VersionProbe) Option {
	return func(a *Adapter) { a.version = p }
}

// NewAdapter returns an Adapter backed by the running OS unless overridden.
func NewAdapter(opts ...Option) *Adapter {
	a := &Adapter{
		volumes: SystemVolumes{},
		folders: SystemFolders{},
		version: SystemVersion{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handle runs the method named name with the optional argument mapping args.
func (a *Adapter) Handle(name string, args any) Result {
	method := ParseMethod(name)

	switch method {
	case MethodFreeSpaceForPath, MethodTotalSpaceForPath:
		path, err := pathArgument(args)
		if err != nil {
			return Failure(err)
		}
		return a.volumeSpace(method, path)
	case MethodFreeSpace, MethodTotalSpace:
		return a.defaultVolumeSpace(method)
	case MethodPlatformVersion:
		return VersionString(PlatformVersion(a.version.OSVersion()))
	case MethodUnknown:
		return NotImplemented()
	}

	return NotImplemented()
}

func (a *Adapter) defaultVolumeSpace(method Method) Result {
	path, release, err := a.folders.DesktopFolder()
	if release != nil {
		defer release()
	}
	if err != nil {
		return Failure(&PlatformError{Message: MsgDesktopFolder, Err: err})
	}

	return a.volumeSpace(method, path)
}

func (a *Adapter) volumeSpace(method Method, path string) Result {
	vs, err := a.volumes.QueryVolume(path)
	if err != nil {
		return Failure(platformFailure(err))
	}

	switch method {
	case MethodFreeSpaceForPath, MethodFreeSpace:
		return Megabytes(toMegabytes(vs.FreeBytesAvailable))
	default:
		return Megabytes(toMegabytes(vs.TotalBytes))
	}
}

// pathArgument extracts the "path" entry from a host argument mapping.
func pathArgument(args any) (string, error) {
	var (
		value any
		found bool
	)

	switch m := args.(type) {
	case map[string]any:
		value, found = m[pathKey]
	case map[any]any:
		value, found = m[pathKey]
	case map[string]string:
		value, found = m[pathKey]
	default:
		return "", &ArgumentError{Message: MsgExpectedMap}
	}

	if !found {
		return "", &ArgumentError{Message: MsgExpectedPath}
	}

	path, ok := value.(string)
	if !ok {
		return "", &ArgumentError{Message: MsgExpectedString}
	}

	return path, nil
}
