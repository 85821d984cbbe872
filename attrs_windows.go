//go:build windows

package netmount

import (
	"fmt"

	"golang.org/x/sys/windows"
)

type winAttrBackend struct{}

func newNativeBackend() Backend { return winAttrBackend{} }

// The extended-attribute backend has no Windows equivalent. On IN_EXTENDED
// drives, reads fall back to synthesis (Drive.pathProperties synthesizes
// when the backend errors) and writes fail with NotSupportedError.
func newExtendedBackend() Backend { return unsupportedBackend{} }

func (winAttrBackend) Supported(path string) bool {
	ptr, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return false
	}
	_, err = windows.GetFileAttributes(ptr)
	return err == nil
}

func (winAttrBackend) Get(path string) (byte, error) {
	ptr, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return AttrError, err
	}
	native, err := windows.GetFileAttributes(ptr)
	if err != nil {
		return AttrError, fmt.Errorf("fetch native attrs of %q: %w", path, err)
	}
	var attrs byte
	if native&windows.FILE_ATTRIBUTE_READONLY != 0 {
		attrs |= AttrRO
	}
	if native&windows.FILE_ATTRIBUTE_HIDDEN != 0 {
		attrs |= AttrHidden
	}
	if native&windows.FILE_ATTRIBUTE_SYSTEM != 0 {
		attrs |= AttrSystem
	}
	if native&windows.FILE_ATTRIBUTE_ARCHIVE != 0 {
		attrs |= AttrArchive
	}
	return attrs, nil
}

func (winAttrBackend) Set(path string, attrs byte) error {
	ptr, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return err
	}
	native, err := windows.GetFileAttributes(ptr)
	if err != nil {
		return fmt.Errorf("fetch native attrs of %q: %w", path, err)
	}
	const persistedBits = windows.FILE_ATTRIBUTE_READONLY | windows.FILE_ATTRIBUTE_HIDDEN |
		windows.FILE_ATTRIBUTE_SYSTEM | windows.FILE_ATTRIBUTE_ARCHIVE
	native &^= persistedBits
	if attrs&AttrRO != 0 {
		native |= windows.FILE_ATTRIBUTE_READONLY
	}
	if attrs&AttrHidden != 0 {
		native |= windows.FILE_ATTRIBUTE_HIDDEN
	}
	if attrs&AttrSystem != 0 {
		native |= windows.FILE_ATTRIBUTE_SYSTEM
	}
	if attrs&AttrArchive != 0 {
		native |= windows.FILE_ATTRIBUTE_ARCHIVE
	}
	if native == 0 {
		native = windows.FILE_ATTRIBUTE_NORMAL
	}
	if err := windows.SetFileAttributes(ptr, native); err != nil {
		return fmt.Errorf("set native attrs of %q: %w", path, err)
	}
	return nil
}
