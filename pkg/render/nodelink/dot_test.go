package nodelink

import (
	"strings"
	"testing"

	"github.com/matzehuels/sensortree/pkg/layout"
	"github.com/matzehuels/sensortree/pkg/tree"
	"github.com/matzehuels/sensortree/pkg/visibility"
)

func sample(t *testing.T) *tree.Forest {
	t.Helper()
	f := tree.New()
	for _, n := range []tree.Node{
		{ID: "A", Name: "A", Type: tree.TypeManufacturer},
		{ID: "A/B", Name: "B", Type: tree.TypeSegment, ParentID: "A"},
		{ID: "A/B/s", Name: "s", Type: tree.TypeSensor, ParentID: "A/B", Status: "0"},
	} {
		if err := f.Add(n); err != nil {
			t.Fatal(err)
		}
	}
	return f
}

func TestToDOT(t *testing.T) {
	f := sample(t)
	st := visibility.New()
	st.Expand(f, "A")

	dot := ToDOT(f, st, Options{Mode: layout.Horizontal})
	if !strings.Contains(dot, "rankdir=LR;") {
		t.Error("horizontal mode should rank left to right")
	}
	if !strings.Contains(dot, `"A" -> "A/B";`) {
		t.Errorf("missing edge in:\n%s", dot)
	}
	if strings.Contains(dot, `"A/B/s"`) {
		t.Error("collapsed grandchild should be absent")
	}

	st.ExpandAll(f)
	dot = ToDOT(f, st, Options{Mode: layout.Vertical, Detailed: true})
	for _, want := range []string{"rankdir=TB;", `label="s\nsensor\nstatus: online"`, `fillcolor="#f0fff4"`} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT missing %q:\n%s", want, dot)
		}
	}
}

func TestNormalizeViewBox(t *testing.T) {
	in := []byte(`<svg width="10pt" height="5pt" viewBox="0.00 0.00 100.50 40.00" xmlns="x"><g/></svg>`)
	got := string(normalizeViewBox(in))
	want := `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100.50 40.00" width="100" height="40"><g/></svg>`
	if got != want {
		t.Errorf("normalizeViewBox() = %s", got)
	}
	if string(normalizeViewBox([]byte("<svg/>"))) != "<svg/>" {
		t.Error("documents without viewBox pass through")
	}
}
