package netmount

import "testing"

func TestSynthesizeAttr(t *testing.T) {
	if got := synthesizeAttr(true); got != AttrDirectory {
		t.Fatalf("synthesizeAttr(dir) = %#x, want AttrDirectory", got)
	}
	if got := synthesizeAttr(false); got != AttrArchive {
		t.Fatalf("synthesizeAttr(file) = %#x, want AttrArchive", got)
	}
}

func TestAttrResolverIgnoreModeSynthesizesOnGetAndNoopsOnSet(t *testing.T) {
	r := attrResolver{mode: AttrIgnore}
	got, err := r.Get("/any/path", false)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != AttrArchive {
		t.Fatalf("Get = %#x, want AttrArchive", got)
	}
	if err := r.Set("/any/path", AttrHidden); err != nil {
		t.Fatalf("Set under AttrIgnore should be a no-op, got: %v", err)
	}
}

type fakeBackend struct {
	supported bool
	attrs     byte
	getErr    error
	setErr    error
	setCalls  []byte
}

func (f *fakeBackend) Supported(string) bool { return f.supported }
func (f *fakeBackend) Get(string) (byte, error) {
	if f.getErr != nil {
		return AttrError, f.getErr
	}
	return f.attrs, nil
}
func (f *fakeBackend) Set(path string, attrs byte) error {
	f.setCalls = append(f.setCalls, attrs)
	return f.setErr
}

func TestAttrResolverNativeModeMasksAndAddsDirectoryBit(t *testing.T) {
	orig := nativeBackend
	defer func() { nativeBackend = orig }()
	nativeBackend = &fakeBackend{supported: true, attrs: AttrRO | AttrHidden | AttrDevice}

	r := attrResolver{mode: AttrNative}
	got, err := r.Get("/some/dir", true)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	want := (AttrRO | AttrHidden) | AttrDirectory // AttrDevice is masked out, AttrDirectory added
	if got != want {
		t.Fatalf("Get = %#x, want %#x", got, want)
	}
}

func TestAttrResolverAutoFallsBackToExtendedWhenNativeUnsupported(t *testing.T) {
	origNative, origExtended := nativeBackend, extendedBackend
	defer func() { nativeBackend, extendedBackend = origNative, origExtended }()
	nativeBackend = &fakeBackend{supported: false}
	extFake := &fakeBackend{supported: true, attrs: AttrArchive}
	extendedBackend = extFake

	r := attrResolver{mode: AttrAuto}
	got, err := r.Get("/some/file.txt", false)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != AttrArchive {
		t.Fatalf("Get = %#x, want AttrArchive", got)
	}
}

func TestAttrResolverAutoSynthesizesWhenNoBackendSupported(t *testing.T) {
	origNative, origExtended := nativeBackend, extendedBackend
	defer func() { nativeBackend, extendedBackend = origNative, origExtended }()
	nativeBackend = &fakeBackend{supported: false}
	extendedBackend = &fakeBackend{supported: false}

	r := attrResolver{mode: AttrAuto}
	got, err := r.Get("/some/file.txt", false)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != AttrArchive {
		t.Fatalf("Get = %#x, want AttrArchive", got)
	}
}

func TestAttrResolverSetMasksToPersistableBits(t *testing.T) {
	orig := nativeBackend
	defer func() { nativeBackend = orig }()
	fake := &fakeBackend{supported: true}
	nativeBackend = fake

	r := attrResolver{mode: AttrNative}
	if err := r.Set("/some/file.txt", AttrRO|AttrDevice|AttrDirectory); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if len(fake.setCalls) != 1 || fake.setCalls[0] != AttrRO {
		t.Fatalf("Set called backend with %v, want [AttrRO]", fake.setCalls)
	}
}

func TestUnsupportedBackendAlwaysFails(t *testing.T) {
	var b unsupportedBackend
	if b.Supported("/x") {
		t.Fatalf("unsupportedBackend.Supported should always be false")
	}
	if _, err := b.Get("/x"); err == nil {
		t.Fatalf("expected an error from unsupportedBackend.Get")
	}
	if err := b.Set("/x", 0); err == nil {
		t.Fatalf("expected an error from unsupportedBackend.Set")
	}
}
