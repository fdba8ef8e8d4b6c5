package tree

import (
	"errors"
	"slices"
	"testing"
)

func buildSample(t *testing.T) *Forest {
	t.Helper()
	f := New()
	nodes := []Node{
		{ID: "A", Name: "A", Type: TypeManufacturer},
		{ID: "A/B", Name: "B", Type: TypeSegment, ParentID: "A"},
		{ID: "A/B/C", Name: "C", Type: TypeSite, ParentID: "A/B"},
		{ID: "A/B/D", Name: "D", Type: TypeSite, ParentID: "A/B"},
		{ID: "X", Name: "X", Type: TypeManufacturer},
	}
	for _, n := range nodes {
		if err := f.Add(n); err != nil {
			t.Fatalf("Add(%s): %v", n.ID, err)
		}
	}
	return f
}

func TestForestAdd(t *testing.T) {
	f := buildSample(t)

	if got := f.Len(); got != 5 {
		t.Errorf("Len() = %d, want 5", got)
	}
	if got := f.Roots(); !slices.Equal(got, []string{"A", "X"}) {
		t.Errorf("Roots() = %v, want [A X]", got)
	}
	if got := f.Children("A/B"); !slices.Equal(got, []string{"A/B/C", "A/B/D"}) {
		t.Errorf("Children(A/B) = %v", got)
	}
	if !f.HasChildren("A") || f.HasChildren("A/B/C") {
		t.Error("HasChildren mismatch")
	}
}

func TestForestAddErrors(t *testing.T) {
	tests := []struct {
		name string
		node Node
		want error
	}{
		{"empty id", Node{Name: "x"}, ErrInvalidNodeID},
		{"duplicate", Node{ID: "A", Name: "A"}, ErrDuplicateNodeID},
		{"unknown parent", Node{ID: "Q/R", Name: "R", ParentID: "Q"}, ErrUnknownParent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := buildSample(t)
			if err := f.Add(tt.node); !errors.Is(err, tt.want) {
				t.Errorf("Add() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestForestQueries(t *testing.T) {
	f := buildSample(t)

	if got := f.Depth("A/B/D"); got != 2 {
		t.Errorf("Depth(A/B/D) = %d, want 2", got)
	}
	if got := f.Depth("missing"); got != -1 {
		t.Errorf("Depth(missing) = %d, want -1", got)
	}
	if got := f.Path("A/B/C"); !slices.Equal(got, []string{"A", "A/B", "A/B/C"}) {
		t.Errorf("Path() = %v", got)
	}
	if got := f.Descendants("A"); !slices.Equal(got, []string{"A/B", "A/B/C", "A/B/D"}) {
		t.Errorf("Descendants() = %v", got)
	}
	if p, ok := f.Parent("A/B"); !ok || p != "A" {
		t.Errorf("Parent(A/B) = %q, %v", p, ok)
	}
	if _, ok := f.Parent("A"); ok {
		t.Error("root should have no parent")
	}
	if got := f.MaxDepth(); got != 2 {
		t.Errorf("MaxDepth() = %d, want 2", got)
	}
	if got := New().MaxDepth(); got != -1 {
		t.Errorf("empty MaxDepth() = %d, want -1", got)
	}
}

func TestWalkSkipsSubtree(t *testing.T) {
	f := buildSample(t)
	var seen []string
	f.Walk(func(n *Node, _ int) bool {
		seen = append(seen, n.ID)
		return n.ID != "A/B"
	})
	want := []string{"A", "A/B", "X"}
	if !slices.Equal(seen, want) {
		t.Errorf("Walk visited %v, want %v", seen, want)
	}
}

func TestValidate(t *testing.T) {
	if err := buildSample(t).Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}

	f := New()
	_ = f.Add(Node{ID: "A", Name: "A"})
	_ = f.Add(Node{ID: "A/wrong", Name: "B", ParentID: "A"})
	if err := f.Validate(); !errors.Is(err, ErrIDMismatch) {
		t.Errorf("Validate() = %v, want ErrIDMismatch", err)
	}
}

func TestSlug(t *testing.T) {
	long := ""
	for range 100 {
		long += "a"
	}
	tests := []struct {
		in, want string
	}{
		{"GRFL", "GRFL"},
		{"  Main   Line 2 ", "Main_Line_2"},
		{"Pump #3 (east)", "Pump_3_east"},
		{"a-b_c", "a-b_c"},
		{"", "node"},
		{"###", "node"},
		{long, long[:MaxSlugLen]},
	}
	for _, tt := range tests {
		if got := Slug(tt.in); got != tt.want {
			t.Errorf("Slug(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLevelType(t *testing.T) {
	tests := []struct {
		depth int
		want  string
	}{
		{0, TypeManufacturer},
		{2, TypeSite},
		{8, TypeSensor},
		{9, "level9"},
		{12, "level12"},
	}
	for _, tt := range tests {
		if got := LevelType(tt.depth); got != tt.want {
			t.Errorf("LevelType(%d) = %q, want %q", tt.depth, got, tt.want)
		}
	}
}

func TestChildIDAndLastSegment(t *testing.T) {
	if got := ChildID("", "Plant 1"); got != "Plant_1" {
		t.Errorf("ChildID root = %q", got)
	}
	if got := ChildID("A/B", "c d"); got != "A/B/c_d" {
		t.Errorf("ChildID = %q", got)
	}
	if got := LastSegment("A/B/C"); got != "C" {
		t.Errorf("LastSegment = %q", got)
	}
	if got := LastSegment("solo"); got != "solo" {
		t.Errorf("LastSegment = %q", got)
	}
}

func TestNormalizeStatus(t *testing.T) {
	tests := map[string]string{
		"online":  StatusOnline,
		"OK":      StatusOnline,
		"0":       StatusOnline,
		"warn":    StatusWarning,
		"Warning": StatusWarning,
		"offline": StatusOffline,
		"broken":  StatusOffline,
		"":        StatusOffline,
	}
	for in, want := range tests {
		if got := NormalizeStatus(in); got != want {
			t.Errorf("NormalizeStatus(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestComputeStats(t *testing.T) {
	f := New()
	_ = f.Add(Node{ID: "A", Name: "A"})
	_ = f.Add(Node{ID: "A/s1", Name: "s1", Type: TypeSensor, ParentID: "A", Status: "online"})
	_ = f.Add(Node{ID: "A/s2", Name: "s2", Type: TypeSensor, ParentID: "A", Status: "warn"})
	_ = f.Add(Node{ID: "A/s3", Name: "s3", Type: TypeSensor, ParentID: "A", Status: "dead"})
	_ = f.Add(Node{ID: "A/s4", Name: "s4", Type: TypeSensor, ParentID: "A", Status: "ok"})

	s := ComputeStats(f)
	want := Stats{Nodes: 5, Roots: 1, Depth: 2, Sensors: 4, Online: 2, Warning: 1, Offline: 1}
	if s != want {
		t.Errorf("ComputeStats() = %+v, want %+v", s, want)
	}
}

func TestIsSensorType(t *testing.T) {
	tests := []struct {
		typ  string
		want bool
	}{
		{"sensor", true},
		{"Sensor", true},
		{"SENSOR", true},
		{"TempSensor", true},
		{"pressure_sensor", true},
		{"sensors", false},
		{"sensor-group", false},
		{TypeSite, false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsSensorType(tt.typ); got != tt.want {
			t.Errorf("IsSensorType(%q) = %v, want %v", tt.typ, got, tt.want)
		}
	}
}

func TestComputeStatsMixedCaseTypes(t *testing.T) {
	f := New()
	_ = f.Add(Node{ID: "A", Name: "A"})
	_ = f.Add(Node{ID: "A/s1", Name: "s1", Type: "Sensor", ParentID: "A", Status: "online"})
	_ = f.Add(Node{ID: "A/s2", Name: "s2", Type: "TempSensor", ParentID: "A", Status: "warning"})
	_ = f.Add(Node{ID: "A/g", Name: "g", Type: "Sensors", ParentID: "A", Status: "online"})

	s := ComputeStats(f)
	if s.Sensors != 2 || s.Online != 1 || s.Warning != 1 || s.Offline != 0 {
		t.Errorf("ComputeStats() = %+v, want 2 sensors (1 online, 1 warning)", s)
	}
}
