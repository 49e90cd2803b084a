package ref_test

import (
	"testing"

	"github.com/hpcmsg/muscore/ref"
)

func TestParseAndString(t *testing.T) {
	cases := []string{
		"macro",
		"macro.out",
		"micro[3][7]",
		"micro[3][7].in[0]",
	}
	for _, s := range cases {
		r, err := ref.Parse(s)
		if err != nil {
			t.Fatalf("Parse(%q): %v", s, err)
		}
		if got := r.String(); got != s {
			t.Errorf("Parse(%q).String() = %q, want %q", s, got, s)
		}
	}
}

func TestHeadTail(t *testing.T) {
	r, err := ref.Parse("micro[3][7].in[0]")
	if err != nil {
		t.Fatal(err)
	}
	head := r.Head()
	if head.String() != "micro" {
		t.Errorf("Head() = %q, want %q", head.String(), "micro")
	}
	if got := r.Indices(); len(got) != 2 || got[0] != 3 || got[1] != 7 {
		t.Errorf("Indices() = %v, want [3 7]", got)
	}
}

func TestHasPrefix(t *testing.T) {
	r, _ := ref.Parse("micro[3][7].in[0]")
	p, _ := ref.Parse("micro[3][7]")
	if !r.HasPrefix(p) {
		t.Errorf("expected %q to have prefix %q", r, p)
	}
	other, _ := ref.Parse("micro[3][8]")
	if r.HasPrefix(other) {
		t.Errorf("did not expect %q to have prefix %q", r, other)
	}
}

func TestEqualAndConcat(t *testing.T) {
	a, _ := ref.Parse("macro")
	b := ref.New(ref.Ident("macro"))
	if !a.Equal(b) {
		t.Errorf("expected %q == %q", a, b)
	}
	c := a.Concat(ref.Ident("out"), ref.Index(0))
	if c.String() != "macro.out[0]" {
		t.Errorf("Concat result = %q, want %q", c, "macro.out[0]")
	}
}

func TestInvalidReference(t *testing.T) {
	if _, err := ref.Parse("[3].macro"); err == nil {
		t.Errorf("expected error for leading index")
	}
}

func TestIdentVsIndex(t *testing.T) {
	c := ref.Ident("macro")
	if !c.IsIdent() || c.IsIndex() {
		t.Errorf("expected Ident component")
	}
	i := ref.Index(5)
	if !i.IsIndex() || i.IsIdent() {
		t.Errorf("expected Index component")
	}
	if i.Int() != 5 {
		t.Errorf("Int() = %d, want 5", i.Int())
	}
}
