package normalize

import (
	"encoding/json"
	"slices"
	"testing"

	"github.com/matzehuels/sensortree/pkg/tree"
)

func mustParse(t *testing.T, s string) any {
	t.Helper()
	v, err := Parse([]byte(s))
	if err != nil {
		t.Fatalf("Parse(%s): %v", s, err)
	}
	return v
}

func TestNormalizeShapes(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		shape Shape
		ids   []string
	}{
		{
			name:  "paths",
			in:    `["A/B/C","A/B/D"]`,
			shape: ShapePaths,
			ids:   []string{"A", "A/B", "A/B/C", "A/B/D"},
		},
		{
			name:  "compact tags",
			in:    `["GRFLHITWALXYZ0123456789"]`,
			shape: ShapeTags,
			ids: []string{
				"GRFL", "GRFL/HIT", "GRFL/HIT/WAL", "GRFL/HIT/WAL/XYZ", "GRFL/HIT/WAL/XYZ/012",
				"GRFL/HIT/WAL/XYZ/012/345", "GRFL/HIT/WAL/XYZ/012/345/678", "GRFL/HIT/WAL/XYZ/012/345/678/9",
			},
		},
		{
			name:  "sentinel root",
			in:    `{"id":"root","name":"Root","children":[{"id":"P1","name":"Plant 1"},{"id":"P2","name":"Plant 2","children":[{"id":"m","name":"Mill"}]}]}`,
			shape: ShapeWrappedRoot,
			ids:   []string{"Plant_1", "Plant_2", "Plant_2/Mill"},
		},
		{
			name:  "wrapped root",
			in:    `{"id":"X","name":"Works","children":[{"id":"a","name":"Line A"}]}`,
			shape: ShapeWrappedRoot,
			ids:   []string{"Works", "Works/Line_A"},
		},
		{
			name:  "node map with placeholder parent",
			in:    `{"s1":{"id":"s1","name":"Temp","parentId":"M/Furnace"},"k":{"id":"k","name":"Kiln"}}`,
			shape: ShapeNodeMap,
			ids:   []string{"Kiln", "Furnace", "Furnace/Temp"},
		},
		{
			name:  "nested node map",
			in:    `{"A":{"id":"A","name":"A","children":{"A/B":{"id":"A/B","name":"B","children":["A/B/C"]}}}}`,
			shape: ShapeNodeMap,
			ids:   []string{"A", "A/B", "A/B/C"},
		},
		{
			name:  "iot records",
			in:    `[{"IOTPATH":"P/Q"},{"IOTTAG":"GRFLHITWALXYZ0123456789"},{"other":1}]`,
			shape: ShapeObjects,
			ids: []string{
				"P", "P/Q",
				"GRFL", "GRFL/HIT", "GRFL/HIT/WAL", "GRFL/HIT/WAL/XYZ", "GRFL/HIT/WAL/XYZ/012",
				"GRFL/HIT/WAL/XYZ/012/345", "GRFL/HIT/WAL/XYZ/012/345/678", "GRFL/HIT/WAL/XYZ/012/345/678/9",
			},
		},
		{
			name:  "records with a slash value",
			in:    `[{"b":"x","a":"L/M"}]`,
			shape: ShapeObjects,
			ids:   []string{"L", "L/M"},
		},
		{
			name:  "node list",
			in:    `[{"name":"Top","children":[{"name":"Kid"}]}]`,
			shape: ShapeNodeMap,
			ids:   []string{"Top", "Top/Kid"},
		},
		{
			name:  "bare path string",
			in:    `"A/B"`,
			shape: ShapeString,
			ids:   []string{"A", "A/B"},
		},
		{
			name:  "bare short string",
			in:    `"Standalone"`,
			shape: ShapeString,
			ids:   []string{"Standalone"},
		},
		{name: "number", in: `42`, shape: ShapeUnknown},
		{name: "empty array", in: `[]`, shape: ShapeUnknown},
		{name: "mixed array", in: `["A/B", 3]`, shape: ShapeUnknown},
		{name: "plain object", in: `{"a":1}`, shape: ShapeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, shape := NormalizeWithShape(mustParse(t, tt.in))
			if shape != tt.shape {
				t.Errorf("shape = %v, want %v", shape, tt.shape)
			}
			if got := f.IDs(); !slices.Equal(got, tt.ids) {
				t.Errorf("IDs() = %v, want %v", got, tt.ids)
			}
			if err := f.Validate(); err != nil {
				t.Errorf("Validate() = %v", err)
			}
		})
	}
}

func TestNormalizeTypesByDepth(t *testing.T) {
	f := Normalize([]string{"A/B/C"})
	for id, want := range map[string]string{
		"A":     tree.TypeManufacturer,
		"A/B":   tree.TypeSegment,
		"A/B/C": tree.TypeSite,
	} {
		n, _ := f.Node(id)
		if n.Type != want {
			t.Errorf("%s type = %q, want %q", id, n.Type, want)
		}
	}

	single := Normalize("Solo")
	n, _ := single.Node("Solo")
	if n.Type != tree.TypeRoot {
		t.Errorf("bare string root type = %q, want %q", n.Type, tree.TypeRoot)
	}
}

func TestNormalizeMergesDuplicates(t *testing.T) {
	f := Normalize([]string{"A/B", " A / B ", `A\C`, "A//D"})
	want := []string{"A", "A/B", "A/C", "A/D"}
	if got := f.IDs(); !slices.Equal(got, want) {
		t.Errorf("IDs() = %v, want %v", got, want)
	}
}

func TestNormalizeLeafAttributes(t *testing.T) {
	raw := mustParse(t, `{"A":{"id":"A","name":"A","children":[
		{"id":"t","name":"Temp","type":"sensor","status":"OK","value":42.5,"lastUpdate":"2024-05-01"},
		{"id":"p","name":"Pressure","type":"sensor","status":"warn","value":NaN},
		{"id":"c","name":"Count","value":7}]}}`)
	f := Normalize(raw)

	temp, ok := f.Node("A/Temp")
	if !ok {
		t.Fatalf("missing A/Temp in %v", f.IDs())
	}
	if temp.Status != tree.StatusOnline || temp.ValueString() != "42.5" || temp.LastUpdate != "2024-05-01" {
		t.Errorf("Temp = %+v", temp)
	}
	if p, _ := f.Node("A/Pressure"); p.Value != nil || p.Status != tree.StatusWarning {
		t.Errorf("Pressure value = %v status = %q", p.Value, p.Status)
	}
	if c, _ := f.Node("A/Count"); c.ValueString() != "7" {
		t.Errorf("Count value = %q, want 7", c.ValueString())
	}
}

func TestNormalizeMixedCaseSensorTypes(t *testing.T) {
	raw := mustParse(t, `{
		"line":{"id":"line","name":"Line"},
		"t":{"id":"t","name":"Temp","type":"Sensor","status":"ok","parentId":"line"},
		"p":{"id":"p","name":"Pressure","type":"PressureSensor","status":"warn","parentId":"line"}}`)
	f := Normalize(raw)

	temp, ok := f.Node("Line/Temp")
	if !ok {
		t.Fatalf("missing Line/Temp in %v", f.IDs())
	}
	if !temp.IsSensor() {
		t.Errorf("type %q not treated as a sensor", temp.Type)
	}
	s := tree.ComputeStats(f)
	if s.Sensors != 2 || s.Online != 1 || s.Warning != 1 {
		t.Errorf("ComputeStats() = %+v", s)
	}
}

func TestNormalizeBreaksCycles(t *testing.T) {
	raw := mustParse(t, `{"a":{"id":"a","name":"a","parentId":"b"},"b":{"id":"b","name":"b","parentId":"a"}}`)
	f := Normalize(raw)
	if got := f.IDs(); !slices.Equal(got, []string{"a", "a/b"}) {
		t.Errorf("IDs() = %v", got)
	}
	if err := f.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestNormalizeFirstParentWins(t *testing.T) {
	raw := mustParse(t, `{
		"p1":{"id":"p1","name":"P1","children":["s"]},
		"p2":{"id":"p2","name":"P2","children":["s"]},
		"s":{"id":"s","name":"Shared"}}`)
	f := Normalize(raw)
	if !f.Has("P1/Shared") || f.Has("P2/Shared") {
		t.Errorf("IDs() = %v, want Shared under P1 only", f.IDs())
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []any{
		[]string{"A/B/C", "A/B/D", "X/Y"},
		mustParse(t, `{"id":"root","name":"root","children":[{"id":"1","name":"One","children":[{"id":"2","name":"Two"}]}]}`),
		mustParse(t, `[{"IOTPATH":"P/Q/R"}]`),
	}
	for _, in := range inputs {
		first := Normalize(in)
		data, err := json.Marshal(first)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		second := Normalize(mustParse(t, string(data)))

		a, b := first.IDs(), second.IDs()
		slices.Sort(a)
		slices.Sort(b)
		if !slices.Equal(a, b) {
			t.Errorf("re-normalized IDs = %v, want %v", b, a)
		}
		for _, id := range a {
			n1, _ := first.Node(id)
			n2, _ := second.Node(id)
			if n1.Type != n2.Type || n1.Name != n2.Name {
				t.Errorf("%s changed: %+v -> %+v", id, n1, n2)
			}
		}
	}
}

func TestInsertSlashes(t *testing.T) {
	tests := []struct{ in, want string }{
		{"GRFLHITWALXYZ0123456789", "GRFL/HIT/WAL/XYZ/012/345/678/9"},
		{"ABCD", "ABCD"},
		{"ABCDE", "ABCD/E"},
		{"AAAABBBCCCDDDEEEFFFGGGHHHIII", "AAAA/BBB/CCC/DDD/EEE/FFF/GGG/HHH/III"},
	}
	for _, tt := range tests {
		if got := InsertSlashes(tt.in); got != tt.want {
			t.Errorf("InsertSlashes(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsCompactTag(t *testing.T) {
	if !IsCompactTag("GRFLHITWALXYZ0123456789") {
		t.Error("23-char tag should be compact")
	}
	if IsCompactTag("SHORT") || IsCompactTag("GRFL/HITWALXYZ0123456789") {
		t.Error("short or slashed strings are not compact tags")
	}
}

func TestShapeString(t *testing.T) {
	if ShapeNodeMap.String() != "node-map" || Shape(99).String() != "shape(99)" {
		t.Errorf("unexpected shape names %q %q", ShapeNodeMap, Shape(99))
	}
}
