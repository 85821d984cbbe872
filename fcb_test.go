package netmount

import "testing"

func TestFoldComponentBasic(t *testing.T) {
	n := FoldComponent("readme.txt")
	if got := n.String(); got != "README.TXT" {
		t.Fatalf("FoldComponent(readme.txt).String() = %q, want README.TXT", got)
	}
}

func TestFoldComponentDotEntries(t *testing.T) {
	for _, name := range []string{".", ".."} {
		n := FoldComponent(name)
		if got := n.String(); got != name {
			t.Fatalf("FoldComponent(%q).String() = %q, want %q", name, got, name)
		}
	}
}

func TestFoldComponentNoExtension(t *testing.T) {
	n := FoldComponent("config")
	if got := n.String(); got != "CONFIG" {
		t.Fatalf("FoldComponent(config).String() = %q, want CONFIG", got)
	}
}

func TestFoldComponentTruncatesLongParts(t *testing.T) {
	n := FoldComponent("verylongname.extension")
	base := n.Base()
	if string(base[:]) != "VERYLONG" {
		t.Fatalf("base = %q, want VERYLONG", string(base[:]))
	}
	ext := n.Ext()
	if string(ext[:]) != "EXT" {
		t.Fatalf("ext = %q, want EXT", string(ext[:]))
	}
}

func TestMaskMatch(t *testing.T) {
	name := FoldComponent("readme.txt")
	mask := FoldComponent("re??me.???").AsMask()
	if !mask.Match(name) {
		t.Fatalf("expected mask to match readme.txt")
	}

	noMatch := FoldComponent("other.txt").AsMask()
	if noMatch.Match(name) {
		t.Fatalf("expected exact mask for other.txt not to match readme.txt")
	}
}

func TestNameEqual(t *testing.T) {
	a := FoldComponent("FILE.TXT")
	b := FoldComponent("file.txt")
	if !a.Equal(b) {
		t.Fatalf("expected case-folded names to be equal")
	}
}
