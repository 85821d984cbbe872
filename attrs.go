package netmount

// DOS attribute bits, unified across native FAT ioctls (Linux), native
// Windows attributes, and the extended-attribute fallback. BSD file flags
// are not used: on darwin and freebsd the NATIVE backend reports itself
// unsupported.
const (
	AttrRO        byte = 0x01
	AttrHidden    byte = 0x02
	AttrSystem    byte = 0x04
	AttrVolume    byte = 0x08
	AttrDirectory byte = 0x10
	AttrArchive   byte = 0x20
	AttrDevice    byte = 0x40

	// AttrError is the sentinel returned by a backend probe that failed.
	AttrError byte = 0xFF

	// AttrPersistableMask covers the four bits a backend actually stores;
	// DIRECTORY is derived from the inode type and VOLUME is synthesized.
	AttrPersistableMask = AttrRO | AttrHidden | AttrSystem | AttrArchive
)

// AttrMode selects how a Drive's attribute byte is produced and consumed.
type AttrMode int

const (
	// AttrAuto probes NATIVE first, falls back to IN_EXTENDED, then
	// synthesizes.
	AttrAuto AttrMode = iota
	// AttrIgnore synthesizes on read and no-ops on write.
	AttrIgnore
	// AttrNative delegates to the platform backend unconditionally.
	AttrNative
	// AttrInExtended stores/reads a single byte in an extended attribute.
	AttrInExtended
)

// Backend abstracts the platform-specific half of the DOS attribute
// abstraction: probing whether it is usable for a given path, and
// get/set of the persistable attribute bits.
type Backend interface {
	// Supported reports whether this backend can serve path at all.
	Supported(path string) bool
	// Get returns the persistable attribute bits for path, or an error.
	Get(path string) (byte, error)
	// Set persists attrs (already masked to AttrPersistableMask) for path.
	Set(path string, attrs byte) error
}

// unsupportedBackend is the Backend a platform file installs for a probe it
// cannot implement at all; Supported always reports false so AUTO never
// routes into it, and a drive pinned to it directly gets NotSupportedError.
type unsupportedBackend struct{}

func (unsupportedBackend) Supported(string) bool { return false }
func (unsupportedBackend) Get(path string) (byte, error) {
	return AttrError, &NotSupportedError{Operation: "attrs", Reason: "no backend available on this platform"}
}
func (unsupportedBackend) Set(path string, attrs byte) error {
	return &NotSupportedError{Operation: "attrs", Reason: "no backend available on this platform"}
}

// nativeBackend and extendedBackend are resolved once per process from the
// build-tagged platform files (attrs_unix.go, attrs_windows.go,
// attrs_other.go).
var (
	nativeBackend   Backend = newNativeBackend()
	extendedBackend Backend = newExtendedBackend()
)

// synthesizeAttr produces the attribute byte DOS sees when no backend can
// answer: DIRECTORY is always derived from the inode type, files are
// marked ARCHIVE.
func synthesizeAttr(isDir bool) byte {
	if isDir {
		return AttrDirectory
	}
	return AttrArchive
}

// attrResolver resolves the effective attribute byte for a path under a
// drive's configured AttrMode, following AUTO's NATIVE -> IN_EXTENDED ->
// synthesized probe order.
type attrResolver struct {
	mode AttrMode
}

// Get returns the DOS attribute byte for path. isDir/isFile tells the
// resolver how to synthesize when no backend answers.
func (r attrResolver) Get(path string, isDir bool) (byte, error) {
	switch r.mode {
	case AttrIgnore:
		return synthesizeAttr(isDir), nil
	case AttrNative:
		return r.getFrom(nativeBackend, path, isDir)
	case AttrInExtended:
		return r.getFrom(extendedBackend, path, isDir)
	default: // AttrAuto
		if nativeBackend.Supported(path) {
			return r.getFrom(nativeBackend, path, isDir)
		}
		if extendedBackend.Supported(path) {
			return r.getFrom(extendedBackend, path, isDir)
		}
		return synthesizeAttr(isDir), nil
	}
}

func (r attrResolver) getFrom(b Backend, path string, isDir bool) (byte, error) {
	attrs, err := b.Get(path)
	if err != nil {
		return AttrError, err
	}
	bits := attrs & AttrPersistableMask
	if isDir {
		bits |= AttrDirectory
	}
	return bits, nil
}

// Set persists attrs under the resolver's mode. IGNORE is a no-op.
func (r attrResolver) Set(path string, attrs byte) error {
	bits := attrs & AttrPersistableMask
	switch r.mode {
	case AttrIgnore:
		return nil
	case AttrNative:
		return nativeBackend.Set(path, bits)
	case AttrInExtended:
		return extendedBackend.Set(path, bits)
	default: // AttrAuto
		if nativeBackend.Supported(path) {
			return nativeBackend.Set(path, bits)
		}
		return extendedBackend.Set(path, bits)
	}
}
