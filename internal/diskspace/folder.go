package diskspace

// FolderResolver locates the folder whose volume stands in for "the disk"
// when the host does not name a path.
//
// DesktopFolder returns a release func that is never nil and must be called
// exactly once, including when err is non-nil.
type FolderResolver interface {
	DesktopFolder() (path string, release func(), err error)
}

// SystemFolders resolves folders through the running OS.
type SystemFolders struct{}

// DesktopFolder resolves the current user's Desktop folder.
func (SystemFolders) DesktopFolder() (string, func(), error) {
	return desktopFolder()
}

// FolderResolverFunc adapts a function to FolderResolver.
type FolderResolverFunc func() (string, func(), error)

// DesktopFolder calls f().
func (f FolderResolverFunc) DesktopFolder() (string, func(), error) {
	return f()
}
