package netmount

import (
	"container/list"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/absfs/absfs"
)

// MaxDrives is the number of simultaneously exposed drive letters.
const MaxDrives = 26

// NoHandle is the reserved handle value meaning "no handle assigned".
const NoHandle = 0xFFFF

// MaxHandleCount bounds how many items a Drive will track at once; past
// this the oldest-used item is evicted to make room, mirroring DOS FIND's
// 16-bit directory offset limit.
const MaxHandleCount = 65535

// listingStaleAfter is how long a cached directory listing is trusted
// before get_handle drops it and forces a rescan.
const listingStaleAfter = time.Hour

// NameConversion selects how client path components are mapped onto real
// host file names.
type NameConversion int

const (
	// NameConversionRAM folds each client path component through the 8.3
	// synthesis/lookup machinery, maintaining a directory-listing cache.
	NameConversionRAM NameConversion = iota
	// NameConversionOFF appends the client path to the root directly and
	// probes for existence, with no translation or caching.
	NameConversionOFF
)

// FileProperties describes one filesystem entry the way the wire protocol
// wants it: a short name, size, packed timestamp, and attribute byte.
type FileProperties struct {
	FCBName    Name
	Size       uint32
	DateTime   uint32
	Attrs      byte
	ServerName string // host-relative name within its parent directory
}

// item is the cached state behind one handle: the resolved host path, when
// it was last touched, and (for directories) the listing FIND_FIRST/
// FIND_NEXT walks.
type item struct {
	path        string
	lastUsed    time.Time
	listing     []FileProperties
	usedNames   UsedNames
	listElement *list.Element
}

// Drive is one exposed DOS drive letter: a host root directory plus the
// policy (read-only, attribute mode, name conversion) governing how it is
// presented to clients.
type Drive struct {
	Letter        byte
	Root          string
	Label         string
	ReadOnly      bool
	AttrModeValue AttrMode
	Conversion    NameConversion
	FS            absfs.FileSystem

	attrs   attrResolver
	items   map[uint16]*item
	byPath  map[string]uint16
	lru     *list.List // of uint16 handles, front = most recently used
	nextNew uint16
}

// NewDrive builds a Drive rooted at root on fs, using mode for attribute
// resolution and conv for client-path translation.
func NewDrive(letter byte, root string, fs absfs.FileSystem, readOnly bool, mode AttrMode, conv NameConversion) *Drive {
	return &Drive{
		Letter:        letter,
		Root:          root,
		ReadOnly:      readOnly,
		AttrModeValue: mode,
		Conversion:    conv,
		FS:            fs,
		attrs:         attrResolver{mode: mode},
		items:         make(map[uint16]*item),
		byPath:        make(map[string]uint16),
		lru:           list.New(),
	}
}

// DriveTable holds the 26 possible drive letters, indexed A=0..Z=25.
type DriveTable [MaxDrives]*Drive

// Get returns the drive at index, or nil if unshared or out of range.
func (t *DriveTable) Get(index int) *Drive {
	if index < 0 || index >= MaxDrives {
		return nil
	}
	return t[index]
}

// touch marks handle as most recently used and refreshes its timestamp.
func (d *Drive) touch(handle uint16, it *item) {
	it.lastUsed = time.Now()
	if it.listElement != nil {
		d.lru.MoveToFront(it.listElement)
	}
}

// GetHandle returns the handle for serverPath, reusing a cached entry when
// one already points at it, evicting stale directory listings as it scans,
// and otherwise allocating a new slot (growing up to MaxHandleCount, then
// recycling the least-recently-used one).
func (d *Drive) GetHandle(serverPath string) uint16 {
	serverPath = filepath.Clean(serverPath)
	if handle, ok := d.byPath[serverPath]; ok {
		it := d.items[handle]
		d.touch(handle, it)
		return handle
	}

	now := time.Now()
	for _, it := range d.items {
		if len(it.listing) > 0 && now.Sub(it.lastUsed) > listingStaleAfter {
			it.listing = nil
			it.usedNames = nil
		}
	}

	var handle uint16
	if len(d.items) < MaxHandleCount {
		handle = d.nextNew
		d.nextNew++
	} else {
		lruEl := d.lru.Back()
		handle = lruEl.Value.(uint16)
		old := d.items[handle]
		delete(d.byPath, old.path)
		d.lru.Remove(lruEl)
	}

	it := &item{path: serverPath, lastUsed: now}
	it.listElement = d.lru.PushFront(handle)
	d.items[handle] = it
	d.byPath[serverPath] = handle
	return handle
}

// GetItem returns the item behind handle, or InvalidHandleError if it is
// out of range or unallocated.
func (d *Drive) GetItem(handle uint16) (*item, error) {
	it, ok := d.items[handle]
	if !ok {
		return nil, &InvalidHandleError{Handle: handle, Reason: "not allocated"}
	}
	return it, nil
}

// GetHandlePath returns the host path behind handle and refreshes its LRU
// position.
func (d *Drive) GetHandlePath(handle uint16) (string, error) {
	it, err := d.GetItem(handle)
	if err != nil {
		return "", err
	}
	d.touch(handle, it)
	return it.path, nil
}

// ReadFile reads up to len(buf) bytes from handle's file at offset.
func (d *Drive) ReadFile(handle uint16, offset uint32, buf []byte) (int, error) {
	it, err := d.GetItem(handle)
	if err != nil {
		return 0, err
	}
	d.touch(handle, it)

	f, err := d.FS.OpenFile(it.path, os.O_RDONLY, 0)
	if err != nil {
		return 0, fmt.Errorf("open %q: %w", it.path, err)
	}
	defer f.Close()
	if _, err := f.Seek(int64(offset), io.SeekStart); err != nil {
		return 0, fmt.Errorf("seek %q: %w", it.path, err)
	}
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		return 0, nil
	}
	return n, nil
}

// WriteFile writes buf to handle's file at offset. An empty buf truncates
// (or extends) the file to offset bytes, matching the wire convention that
// a zero-length write body means "set length".
func (d *Drive) WriteFile(handle uint16, offset uint32, buf []byte) (int, error) {
	it, err := d.GetItem(handle)
	if err != nil {
		return 0, err
	}
	d.touch(handle, it)

	if len(buf) == 0 {
		if err := d.FS.Truncate(it.path, int64(offset)); err != nil {
			return 0, fmt.Errorf("truncate %q: %w", it.path, err)
		}
		return 0, nil
	}

	f, err := d.FS.OpenFile(it.path, os.O_WRONLY, 0)
	if err != nil {
		return 0, fmt.Errorf("open %q: %w", it.path, err)
	}
	defer f.Close()
	if _, err := f.Seek(int64(offset), io.SeekStart); err != nil {
		return 0, fmt.Errorf("seek %q: %w", it.path, err)
	}
	return f.Write(buf)
}

// pathProperties fetches FileProperties for a concrete host path without
// consulting any cache.
func (d *Drive) pathProperties(hostPath string, fallbackName Name) (FileProperties, error) {
	info, err := d.FS.Lstat(hostPath)
	if err != nil {
		return FileProperties{}, err
	}
	attrs, err := d.attrs.Get(hostPath, info.IsDir())
	if err != nil {
		attrs = synthesizeAttr(info.IsDir())
	}
	var size uint32
	if !info.IsDir() {
		size = uint32(info.Size())
	}
	return FileProperties{
		FCBName:  fallbackName,
		Size:     size,
		DateTime: PackTime(info.ModTime()),
		Attrs:    attrs,
	}, nil
}

// refreshListing rescans the directory behind handle, synthesizing 8.3
// names and rebuilding the "." / ".." pseudo-entries.
func (d *Drive) refreshListing(handle uint16, it *item) error {
	it.listing = nil
	it.usedNames = make(UsedNames)

	dir, err := d.FS.OpenFile(it.path, os.O_RDONLY, 0)
	if err != nil {
		return fmt.Errorf("open dir %q: %w", it.path, err)
	}
	defer dir.Close()

	entries, err := dir.Readdir(-1)
	if err != nil {
		return fmt.Errorf("read dir %q: %w", it.path, err)
	}

	for _, pseudo := range []string{".", ".."} {
		props, err := d.pathProperties(filepath.Join(it.path, pseudo), FoldComponent(pseudo))
		if err != nil {
			continue
		}
		props.ServerName = pseudo
		it.listing = append(it.listing, props)
	}

	for _, info := range entries {
		if len(it.listing)-2 >= 0xFFFF {
			break
		}
		childPath := filepath.Join(it.path, info.Name())
		var name Name
		if d.Conversion == NameConversionOFF {
			name = FoldComponent(info.Name())
		} else {
			synthesized, _ := Synthesize(info.Name(), it.usedNames)
			name = synthesized
		}
		props, err := d.pathProperties(childPath, name)
		if err != nil {
			continue
		}
		props.ServerName = info.Name()
		it.listing = append(it.listing, props)
	}
	it.lastUsed = time.Now()
	return nil
}

// FindFile scans handle's directory listing starting at *nth for the next
// entry whose short name matches tmpl under mask and whose attributes are
// no broader than attr, skipping "." / ".." in the root directory. On a
// match it advances *nth past the found entry and returns (props, true).
func (d *Drive) FindFile(handle uint16, tmpl Name, mask Mask, attr byte, nth *uint16) (FileProperties, bool, error) {
	it, err := d.GetItem(handle)
	if err != nil {
		return FileProperties{}, false, err
	}

	isRootDir := filepath.Clean(it.path) == filepath.Clean(d.Root)

	if *nth == 0 || it.listing == nil {
		if err := d.refreshListing(handle, it); err != nil {
			return FileProperties{}, false, err
		}
	}

	for n := int(*nth); n < len(it.listing); n++ {
		props := it.listing[n]
		if isRootDir && props.FCBName.Base()[0] == '.' {
			continue
		}
		if !mask.Match(props.FCBName) {
			continue
		}
		if attr == AttrVolume {
			if props.Attrs&AttrVolume == 0 {
				continue
			}
		} else {
			if attr|(props.Attrs&(AttrHidden|AttrSystem|AttrDirectory)) != attr {
				continue
			}
		}
		*nth = uint16(n + 1)
		return props, true, nil
	}
	return FileProperties{}, false, nil
}

// serverNameFor looks up the host-relative name matching fcbName within
// handle's directory listing, refreshing the listing first if forceRefresh
// is set or no listing is cached yet.
func (d *Drive) serverNameFor(handle uint16, fcbName Name, forceRefresh bool) (string, error) {
	it, err := d.GetItem(handle)
	if err != nil {
		return "", err
	}
	if forceRefresh || it.listing == nil {
		if err := d.refreshListing(handle, it); err != nil {
			return "", err
		}
	}
	for _, props := range it.listing {
		if props.FCBName.Equal(fcbName) {
			return props.ServerName, nil
		}
	}
	return "", nil
}

// CreateServerPath translates a client-relative path into a host path
// under the drive's root. When refresh is true, every directory-listing
// cache visited along the way is rebuilt. The returned bool reports
// whether the resolved path actually exists; when it does not, only the
// final path component falls back to the client's own spelling.
func (d *Drive) CreateServerPath(clientPath string, refresh bool) (string, bool, error) {
	if clientPath == "" || clientPath == "." {
		return d.Root, true, nil
	}

	components := splitClientPath(clientPath)

	if d.Conversion == NameConversionOFF {
		serverPath := filepath.Join(d.Root, filepath.Join(components...))
		_, err := d.FS.Lstat(serverPath)
		return serverPath, err == nil, nil
	}

	serverPath := d.Root
	for i, comp := range components {
		fcbName := FoldComponent(comp)
		handle := d.GetHandle(serverPath)
		serverName, err := d.serverNameFor(handle, fcbName, refresh)
		if err != nil {
			return "", false, err
		}
		last := i == len(components)-1
		if serverName == "" {
			if last {
				return filepath.Join(serverPath, comp), false, nil
			}
			return "", false, fmt.Errorf("create_server_path: parent path not found: %s", filepath.Join(serverPath, comp))
		}
		serverPath = filepath.Join(serverPath, serverName)
		if last {
			return serverPath, true, nil
		}
	}
	return serverPath, true, nil
}

func splitClientPath(clientPath string) []string {
	clientPath = strings.ReplaceAll(clientPath, "\\", "/")
	clientPath = strings.Trim(clientPath, "/")
	if clientPath == "" {
		return nil
	}
	return strings.Split(clientPath, "/")
}

// MakeDir creates the directory named by clientPath.
func (d *Drive) MakeDir(clientPath string) error {
	serverPath, exists, err := d.CreateServerPath(clientPath, false)
	if err != nil {
		return err
	}
	if exists {
		return dosErr(ErrAccessDenied, fmt.Errorf("make_dir: directory exists: %s", serverPath))
	}
	if err := d.FS.Mkdir(serverPath, 0755); err != nil {
		return dosErr(ErrPathNotFound, err)
	}
	_, _, err = d.CreateServerPath(clientPath, true)
	return err
}

// DeleteDir removes the directory named by clientPath.
func (d *Drive) DeleteDir(clientPath string) error {
	serverPath, exists, err := d.CreateServerPath(clientPath, false)
	if err != nil {
		return err
	}
	if !exists {
		return dosErr(ErrPathNotFound, fmt.Errorf("delete_dir: directory does not exist: %s", serverPath))
	}
	if err := d.FS.Remove(serverPath); err != nil {
		return dosErr(ErrAccessDenied, err)
	}
	_, _, err = d.CreateServerPath(clientPath, true)
	return err
}

// ChangeDir verifies that clientPath names an existing directory.
func (d *Drive) ChangeDir(clientPath string) (string, error) {
	serverPath, exists, err := d.CreateServerPath(clientPath, false)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", dosErr(ErrPathNotFound, fmt.Errorf("change_dir: directory does not exist: %s", serverPath))
	}
	return serverPath, nil
}

// SetItemAttrs sets attrs on the item named by clientPath.
func (d *Drive) SetItemAttrs(clientPath string, attrs byte) error {
	serverPath, _, err := d.CreateServerPath(clientPath, false)
	if err != nil {
		return err
	}
	if err := d.attrs.Set(serverPath, attrs); err != nil {
		return dosErr(ErrAccessDenied, err)
	}
	_, _, err = d.CreateServerPath(clientPath, true)
	return err
}

// GetDosProperties resolves clientPath and returns its attribute byte plus
// full properties.
func (d *Drive) GetDosProperties(clientPath string) (FileProperties, error) {
	serverPath, exists, err := d.CreateServerPath(clientPath, false)
	if err != nil {
		return FileProperties{}, err
	}
	if !exists {
		return FileProperties{}, dosErr(ErrFileNotFound, fmt.Errorf("get_dos_properties: not found: %s", serverPath))
	}
	return d.pathProperties(serverPath, FoldComponent(filepath.Base(serverPath)))
}

// RenameFile renames oldClientPath to newClientPath.
func (d *Drive) RenameFile(oldClientPath, newClientPath string) error {
	oldServerPath, exists, err := d.CreateServerPath(oldClientPath, false)
	if err != nil {
		return err
	}
	if !exists {
		return dosErr(ErrFileNotFound, fmt.Errorf("rename_file: not found: %s", oldServerPath))
	}
	newServerPath, _, err := d.CreateServerPath(newClientPath, false)
	if err != nil {
		return err
	}
	if err := d.FS.Rename(oldServerPath, newServerPath); err != nil {
		return dosErr(ErrAccessDenied, err)
	}
	_, _, err = d.CreateServerPath(newClientPath, true)
	return err
}

// DeleteFiles removes every file matching clientPattern, which may contain
// FCB '?' wildcards, and drops the parent directory's cached listing.
func (d *Drive) DeleteFiles(clientPattern string) error {
	serverPath, exists, err := d.CreateServerPath(clientPattern, false)
	if err != nil {
		return err
	}

	props, statErr := d.pathProperties(serverPath, Name{})
	if statErr == nil && props.Attrs&AttrRO != 0 {
		return dosErr(ErrAccessDenied, fmt.Errorf("delete_files: read-only: %s", serverPath))
	}

	if exists {
		if err := d.FS.Remove(serverPath); err != nil {
			return dosErr(ErrAccessDenied, err)
		}
		if h, ok := d.byPath[filepath.Dir(serverPath)]; ok {
			d.items[h].listing = nil
		}
		return nil
	}

	filemask := filepath.Base(serverPath)
	if !strings.Contains(filemask, "?") {
		return dosErr(ErrFileNotFound, fmt.Errorf("delete_files: file does not exist: %s", serverPath))
	}

	mask := FoldComponent(filemask).AsMask()
	directory := filepath.Dir(serverPath)
	handle := d.GetHandle(directory)
	it := d.items[handle]
	if it.listing == nil {
		if err := d.refreshListing(handle, it); err != nil {
			return err
		}
	}
	for _, entry := range it.listing {
		if entry.Attrs&AttrDirectory != 0 {
			continue
		}
		if !mask.Match(entry.FCBName) {
			continue
		}
		_ = d.FS.Remove(filepath.Join(directory, entry.ServerName))
	}
	it.listing = nil
	return nil
}

// CreateOrTruncateFile creates (or truncates, if it exists) the file at
// serverPath and applies attrs to it, dropping the parent directory's cached
// listing so the next lookup sees the new file.
func (d *Drive) CreateOrTruncateFile(serverPath string, attrs byte) (FileProperties, error) {
	f, err := d.FS.Create(serverPath)
	if err != nil {
		return FileProperties{}, dosErr(ErrAccessDenied, err)
	}
	f.Close()
	if err := d.attrs.Set(serverPath, attrs); err != nil {
		_ = d.FS.Remove(serverPath)
		return FileProperties{}, dosErr(ErrAccessDenied, err)
	}
	if h, ok := d.byPath[filepath.Dir(serverPath)]; ok {
		d.items[h].listing = nil
	}
	return d.pathProperties(serverPath, FoldComponent(filepath.Base(serverPath)))
}

// SpaceInfo returns the total and free byte counts of the drive's host
// filesystem.
func (d *Drive) SpaceInfo() (total, free uint64, err error) {
	return spaceInfo(d.Root)
}

// fileSize returns the current size of handle's file, for SEEK_FROM_END.
func (d *Drive) fileSize(handle uint16) (int32, error) {
	it, err := d.GetItem(handle)
	if err != nil {
		return 0, err
	}
	info, err := d.FS.Lstat(it.path)
	if err != nil {
		return 0, err
	}
	return int32(info.Size()), nil
}

// parentExists reports whether serverPath's parent directory exists, used
// by OPEN/CREATE to distinguish a missing file from an entirely bogus path.
func (d *Drive) parentExists(serverPath string) bool {
	info, err := d.FS.Lstat(filepath.Dir(serverPath))
	return err == nil && info.IsDir()
}
