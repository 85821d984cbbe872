//go:build linux || darwin || freebsd

package netmount

import (
	"fmt"
	"os"
	"runtime"

	"golang.org/x/sys/unix"
)

// extendedAttrName is the extended-attribute name under which the
// persistable attribute byte is stored, in the mandatory "user." xattr
// namespace.
const extendedAttrName = "user.NetMountAttrs"

type xattrBackend struct{}

func newExtendedBackend() Backend { return xattrBackend{} }

func (xattrBackend) Supported(path string) bool {
	_, err := unix.Lgetxattr(path, extendedAttrName, nil)
	if err != nil && err == unix.ENOTSUP {
		return false
	}
	return true
}

func (xattrBackend) Get(path string) (byte, error) {
	buf := make([]byte, 8)
	n, err := unix.Lgetxattr(path, extendedAttrName, buf)
	if err != nil {
		if err == unix.ENODATA {
			info, statErr := os.Lstat(path)
			if statErr != nil {
				return AttrError, statErr
			}
			return synthesizeAttr(info.IsDir()), nil
		}
		return AttrError, fmt.Errorf("get extended attrs of %q: %w", path, err)
	}
	if n < 1 {
		return 0, nil
	}
	return buf[0] & AttrPersistableMask, nil
}

func (xattrBackend) Set(path string, attrs byte) error {
	info, err := os.Lstat(path)
	if err != nil {
		return err
	}
	defaultAttrs := attrs == 0 && info.IsDir() || attrs == AttrArchive && !info.IsDir()
	if defaultAttrs {
		err := unix.Lremovexattr(path, extendedAttrName)
		if err != nil && err == unix.ENODATA {
			return nil
		}
		if err != nil {
			return fmt.Errorf("remove extended attrs of %q: %w", path, err)
		}
		return nil
	}
	if err := unix.Lsetxattr(path, extendedAttrName, []byte{attrs}, 0); err != nil {
		return fmt.Errorf("set extended attrs of %q: %w", path, err)
	}
	return nil
}

// Linux FAT attribute ioctls, from linux/msdos_fs.h. Other unix platforms
// have no equivalent native FAT ioctl, so the NATIVE probe always fails
// and AUTO falls through to the extended-attribute backend.
const (
	fatIoctlGetAttributes = 0x80047210
	fatIoctlSetAttributes = 0x40047211

	fatAttrRO     = 0x01
	fatAttrHidden = 0x02
	fatAttrSys    = 0x04
	fatAttrArch   = 0x20
)

type fatIoctlBackend struct{}

func newNativeBackend() Backend { return fatIoctlBackend{} }

func (fatIoctlBackend) Supported(path string) bool {
	if runtime.GOOS != "linux" {
		return false
	}
	fd, err := unix.Open(path, unix.O_RDONLY, 0)
	if err != nil {
		return false
	}
	defer unix.Close(fd)
	_, err = unix.IoctlGetInt(fd, fatIoctlGetAttributes)
	return err == nil
}

func (fatIoctlBackend) Get(path string) (byte, error) {
	if runtime.GOOS != "linux" {
		return AttrError, &NotSupportedError{Operation: "native attrs", Reason: "not a FAT-ioctl platform"}
	}
	fd, err := unix.Open(path, unix.O_RDONLY, 0)
	if err != nil {
		return AttrError, err
	}
	defer unix.Close(fd)
	fatAttrs, err := unix.IoctlGetInt(fd, fatIoctlGetAttributes)
	if err != nil {
		return AttrError, fmt.Errorf("fetch native attrs of %q: %w", path, err)
	}
	var attrs byte
	if fatAttrs&fatAttrRO != 0 {
		attrs |= AttrRO
	}
	if fatAttrs&fatAttrHidden != 0 {
		attrs |= AttrHidden
	}
	if fatAttrs&fatAttrSys != 0 {
		attrs |= AttrSystem
	}
	if fatAttrs&fatAttrArch != 0 {
		attrs |= AttrArchive
	}
	return attrs, nil
}

func (fatIoctlBackend) Set(path string, attrs byte) error {
	if runtime.GOOS != "linux" {
		return &NotSupportedError{Operation: "native attrs", Reason: "not a FAT-ioctl platform"}
	}
	fd, err := unix.Open(path, unix.O_RDONLY, 0)
	if err != nil {
		return err
	}
	defer unix.Close(fd)
	var fatAttrs int
	if attrs&AttrRO != 0 {
		fatAttrs |= fatAttrRO
	}
	if attrs&AttrHidden != 0 {
		fatAttrs |= fatAttrHidden
	}
	if attrs&AttrSystem != 0 {
		fatAttrs |= fatAttrSys
	}
	if attrs&AttrArchive != 0 {
		fatAttrs |= fatAttrArch
	}
	if err := unix.IoctlSetInt(fd, fatIoctlSetAttributes, fatAttrs); err != nil {
		return fmt.Errorf("set native attrs of %q: %w", path, err)
	}
	return nil
}
