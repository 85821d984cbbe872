package netmount

import (
	"testing"

	"github.com/absfs/memfs"
)

func newTestDrive(t *testing.T) *Drive {
	t.Helper()
	fs, err := memfs.NewFS()
	if err != nil {
		t.Fatalf("memfs.NewFS: %v", err)
	}
	return NewDrive('C', "/", fs, false, AttrIgnore, NameConversionRAM)
}

func TestDriveMakeDirAndChangeDir(t *testing.T) {
	d := newTestDrive(t)
	if err := d.MakeDir("games"); err != nil {
		t.Fatalf("MakeDir: %v", err)
	}
	if _, err := d.ChangeDir("games"); err != nil {
		t.Fatalf("ChangeDir: %v", err)
	}
	if _, err := d.ChangeDir("nonexistent"); err == nil {
		t.Fatalf("expected error changing into a nonexistent directory")
	}
}

func TestDriveCreateWriteReadFile(t *testing.T) {
	d := newTestDrive(t)
	serverPath, _, err := d.CreateServerPath("hello.txt", false)
	if err != nil {
		t.Fatalf("CreateServerPath: %v", err)
	}
	if _, err := d.CreateOrTruncateFile(serverPath, AttrArchive); err != nil {
		t.Fatalf("CreateOrTruncateFile: %v", err)
	}

	handle := d.GetHandle(serverPath)
	n, err := d.WriteFile(handle, 0, []byte("hello world"))
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if n != len("hello world") {
		t.Fatalf("WriteFile wrote %d bytes, want %d", n, len("hello world"))
	}

	buf := make([]byte, 32)
	n, err = d.ReadFile(handle, 0, buf)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(buf[:n]) != "hello world" {
		t.Fatalf("ReadFile = %q, want %q", string(buf[:n]), "hello world")
	}
}

func TestDriveWriteEmptyBodyTruncates(t *testing.T) {
	d := newTestDrive(t)
	serverPath, _, _ := d.CreateServerPath("grow.dat", false)
	d.CreateOrTruncateFile(serverPath, AttrArchive)
	handle := d.GetHandle(serverPath)
	d.WriteFile(handle, 0, []byte("0123456789"))

	if _, err := d.WriteFile(handle, 4, nil); err != nil {
		t.Fatalf("WriteFile truncate: %v", err)
	}

	size, err := d.fileSize(handle)
	if err != nil {
		t.Fatalf("fileSize: %v", err)
	}
	if size != 4 {
		t.Fatalf("size after truncate = %d, want 4", size)
	}
}

func TestDriveFindFileListsEntries(t *testing.T) {
	d := newTestDrive(t)
	for _, name := range []string{"a.txt", "b.txt"} {
		serverPath, _, _ := d.CreateServerPath(name, false)
		d.CreateOrTruncateFile(serverPath, AttrArchive)
	}

	handle := d.GetHandle(d.Root)
	var nth uint16
	var mask Mask
	for i := range mask {
		mask[i] = '?'
	}

	count := 0
	for {
		_, found, err := d.FindFile(handle, Name{}, mask, 0, &nth)
		if err != nil {
			t.Fatalf("FindFile: %v", err)
		}
		if !found {
			break
		}
		count++
	}
	if count != 2 {
		t.Fatalf("FindFile found %d entries, want 2 (dot entries excluded at root)", count)
	}
}

func TestDriveRenameFile(t *testing.T) {
	d := newTestDrive(t)
	serverPath, _, _ := d.CreateServerPath("old.txt", false)
	d.CreateOrTruncateFile(serverPath, AttrArchive)

	if err := d.RenameFile("old.txt", "new.txt"); err != nil {
		t.Fatalf("RenameFile: %v", err)
	}
	if _, exists, _ := d.CreateServerPath("new.txt", false); !exists {
		t.Fatalf("expected new.txt to exist after rename")
	}
	if _, exists, _ := d.CreateServerPath("old.txt", false); exists {
		t.Fatalf("expected old.txt to no longer exist after rename")
	}
}

func TestDriveDeleteFilesWildcard(t *testing.T) {
	d := newTestDrive(t)
	for _, name := range []string{"one.tmp", "two.tmp", "keep.txt"} {
		serverPath, _, _ := d.CreateServerPath(name, false)
		d.CreateOrTruncateFile(serverPath, AttrArchive)
	}

	if err := d.DeleteFiles("???.tmp"); err != nil {
		t.Fatalf("DeleteFiles: %v", err)
	}
	if _, exists, _ := d.CreateServerPath("keep.txt", false); !exists {
		t.Fatalf("expected keep.txt to survive the wildcard delete")
	}
	if _, exists, _ := d.CreateServerPath("one.tmp", false); exists {
		t.Fatalf("expected one.tmp to be deleted")
	}
}
