package normalize

import (
	"errors"
	"slices"
	"strings"
	"testing"
)

func TestParseNaN(t *testing.T) {
	v, err := Parse([]byte(`{"value": NaN, "name": "NaNometer"}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	m := v.(map[string]any)
	if m["value"] != nil {
		t.Errorf("value = %v, want nil", m["value"])
	}
	if m["name"] != "NaNometer" {
		t.Errorf("name = %v, want untouched", m["name"])
	}
}

func TestParseNaNInsideStrings(t *testing.T) {
	data := []byte(`{"id":"root","name":"root","children":[
		{"id":"p","name":"NaN Filter","description":"say \"NaN\" NaN","children":[
			{"name":"Temp","type":"sensor","value":"NaN"},
			{"name":"Flow","type":"sensor","value":NaN}
		]}
	]}`)
	v, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	f := Normalize(v)

	if f.Len() != 3 || !f.Has("NaN_Filter/Temp") || !f.Has("NaN_Filter/Flow") {
		t.Fatalf("ids = %v", f.IDs())
	}
	p, _ := f.Node("NaN_Filter")
	if p.Name != "NaN Filter" {
		t.Errorf("name = %q, want %q", p.Name, "NaN Filter")
	}
	if p.Description != `say "NaN" NaN` {
		t.Errorf("description = %q", p.Description)
	}
	for _, id := range []string{"NaN_Filter/Temp", "NaN_Filter/Flow"} {
		n, _ := f.Node(id)
		if n.Value != nil {
			t.Errorf("%s value = %q, want nil", id, *n.Value)
		}
	}
}

func TestReplaceNaN(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`NaN`, `null`},
		{`[NaN,1,NaN]`, `[null,1,null]`},
		{`{"a":NaN}`, `{"a":null}`},
		{`{"a":"NaN"}`, `{"a":"NaN"}`},
		{`{"a":"x\"NaN"}`, `{"a":"x\"NaN"}`},
		{`{"a":"x\\","b":NaN}`, `{"a":"x\\","b":null}`},
		{`NaNx`, `NaNx`},
	}
	for _, tt := range tests {
		if got := string(replaceNaN([]byte(tt.in))); got != tt.want {
			t.Errorf("replaceNaN(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestParseInvalid(t *testing.T) {
	if _, err := Parse([]byte(`{"a":`)); !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("Parse() error = %v, want ErrInvalidPayload", err)
	}
}

func TestParseYAML(t *testing.T) {
	data := []byte(`
id: root
name: root
children:
  - id: P1
    name: Plant 1
    children:
      - name: Mill
`)
	v, err := ParseYAML(data)
	if err != nil {
		t.Fatalf("ParseYAML: %v", err)
	}
	f := Normalize(v)
	if got := f.IDs(); !slices.Equal(got, []string{"Plant_1", "Plant_1/Mill"}) {
		t.Errorf("IDs() = %v", got)
	}
}

func TestSelect(t *testing.T) {
	v, _ := Parse([]byte(`{"data":{"tree":["A/B"]},"items":[{"p":"X/Y"},{"p":"X/Z"}]}`))

	got, err := Select(v, "$.data.tree")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if ids := Normalize(got).IDs(); !slices.Equal(ids, []string{"A", "A/B"}) {
		t.Errorf("IDs() = %v", ids)
	}

	many, err := Select(v, "$.items[*].p")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if ids := Normalize(many).IDs(); !slices.Equal(ids, []string{"X", "X/Y", "X/Z"}) {
		t.Errorf("IDs() = %v", ids)
	}

	if _, err := Select(v, "$.missing"); !errors.Is(err, ErrNoMatch) {
		t.Errorf("Select(missing) error = %v, want ErrNoMatch", err)
	}
}

func TestReadTagSheet(t *testing.T) {
	sheet := "Plant,TagName,Unit\n" +
		"GR,GRFLHITWALXYZ0123456789,C\n" +
		"GR, GRFLHITWALXYZ0123456789 ,C\n" +
		"GR,,C\n" +
		"GR,GRFL/HIT/OTHER,bar\n"
	tags, err := ReadTagSheet(strings.NewReader(sheet))
	if err != nil {
		t.Fatalf("ReadTagSheet: %v", err)
	}
	want := []string{"GRFLHITWALXYZ0123456789", "GRFL/HIT/OTHER"}
	if !slices.Equal(tags, want) {
		t.Errorf("tags = %v, want %v", tags, want)
	}

	if _, err := ReadTagSheet(strings.NewReader("a,b\n1,2\n")); !errors.Is(err, ErrNoTagColumn) {
		t.Errorf("error = %v, want ErrNoTagColumn", err)
	}
}

func TestDecodeCSV(t *testing.T) {
	v, err := Decode([]byte("TagName\nGRFLHITWALXYZ0123456789\nGRFL/HIT/OTHER\n"), FormatCSV)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	f, shape := NormalizeWithShape(v)
	if shape != ShapeTags {
		t.Errorf("shape = %v, want tags", shape)
	}
	if !f.Has("GRFL/HIT/WAL") || !f.Has("GRFL/HIT/OTHER") {
		t.Errorf("IDs() = %v", f.IDs())
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := map[string]Format{
		"tree.json": FormatJSON,
		"tree.YML":  FormatYAML,
		"tags.csv":  FormatCSV,
		"noext":     FormatJSON,
	}
	for in, want := range tests {
		if got := FormatFromPath(in); got != want {
			t.Errorf("FormatFromPath(%q) = %q, want %q", in, got, want)
		}
	}
}
