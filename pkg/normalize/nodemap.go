package normalize

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/matzehuels/sensortree/pkg/tree"
)

// entry is one keyed declaration of a node map.
type entry struct {
	key string
	obj map[string]any
}

// fields are the recognized attributes of a node object. Numbers and
// booleans are accepted where strings are expected.
type fields struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	ParentID    string `json:"parentId"`
	Parent      string `json:"parent"`
	Status      string `json:"status"`
	LastUpdate  string `json:"lastUpdate"`
	Value       any    `json:"value"`
	Children    any    `json:"children"`
}

func decodeFields(obj map[string]any) fields {
	var fl fields
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		TagName:          "json",
		Result:           &fl,
	})
	if err != nil {
		return fl
	}
	// Fields that fail to decode (say, an object where a string belongs)
	// stay empty; the rest are still populated.
	_ = dec.Decode(obj)
	return fl
}

// fill copies attributes of other into empty attributes of fl.
func (fl *fields) fill(other fields) {
	if fl.Name == "" {
		fl.Name = other.Name
	}
	if fl.Type == "" {
		fl.Type = other.Type
	}
	if fl.Description == "" {
		fl.Description = other.Description
	}
	if fl.Status == "" {
		fl.Status = other.Status
	}
	if fl.LastUpdate == "" {
		fl.LastUpdate = other.LastUpdate
	}
	if fl.Value == nil {
		fl.Value = other.Value
	}
}

type mapNode struct {
	id       string
	fields   fields
	parent   string
	children []string
}

// nodeMap collects declarations keyed by declared id. Ownership is
// exclusive: the first declared parent of a node wins.
type nodeMap struct {
	nodes map[string]*mapNode
	order []string
}

func newNodeMap() *nodeMap {
	return &nodeMap{nodes: make(map[string]*mapNode)}
}

func nodeMapDrafts(entries []entry) []*draft {
	m := newNodeMap()
	for _, e := range entries {
		m.collect(e.key, e.obj, nil)
	}
	return m.drafts()
}

// collect registers obj under id and recurses into its declared children.
// A nil parent means the object names its own parent through parentId or
// parent.
func (m *nodeMap) collect(id string, obj map[string]any, parent *string) {
	fl := decodeFields(obj)
	declared := fl.ParentID
	if declared == "" {
		declared = fl.Parent
	}
	if parent != nil {
		declared = *parent
	}
	if declared == id {
		declared = ""
	}

	n, ok := m.nodes[id]
	if !ok {
		n = &mapNode{id: id, fields: fl, parent: declared}
		m.nodes[id] = n
		m.order = append(m.order, id)
	} else {
		n.fields.fill(fl)
		if n.parent == "" {
			n.parent = declared
		}
	}

	for _, c := range childEntries(id, fl.Children) {
		m.collect(c.key, c.obj, &id)
	}
}

// childEntries lists the declared children of the node id. Arrays may hold
// objects or id strings; objects are read in sorted key order.
func childEntries(id string, children any) []entry {
	var out []entry
	switch cs := children.(type) {
	case []any:
		for i, c := range cs {
			switch v := c.(type) {
			case map[string]any:
				key := fmt.Sprintf("%s/c%d", id, i)
				if truthy(v["id"]) {
					key = scalarString(v["id"])
				}
				out = append(out, entry{key: key, obj: v})
			case string:
				if strings.TrimSpace(v) != "" {
					out = append(out, entry{key: v, obj: map[string]any{}})
				}
			}
		}
	case map[string]any:
		for _, k := range sortedKeys(cs) {
			v, ok := cs[k].(map[string]any)
			if !ok {
				continue
			}
			key := k
			if truthy(v["id"]) {
				key = scalarString(v["id"])
			}
			out = append(out, entry{key: key, obj: v})
		}
	}
	return out
}

// link resolves declared parents into child lists. Unknown parents become
// placeholder roots named after the last id segment; a link that would close
// a cycle makes the node a root instead.
func (m *nodeMap) link() {
	for i := 0; i < len(m.order); i++ {
		n := m.nodes[m.order[i]]
		if n.parent == "" {
			continue
		}
		p, ok := m.nodes[n.parent]
		if !ok {
			p = &mapNode{id: n.parent, fields: fields{Name: tree.LastSegment(n.parent)}}
			m.nodes[p.id] = p
			m.order = append(m.order, p.id)
		}
		if m.reaches(p.id, n.id) {
			n.parent = ""
			continue
		}
		p.children = append(p.children, n.id)
	}
}

// reaches reports whether following parent links up from id passes target.
func (m *nodeMap) reaches(id, target string) bool {
	for steps := 0; id != "" && steps <= len(m.nodes); steps++ {
		if id == target {
			return true
		}
		n, ok := m.nodes[id]
		if !ok {
			return false
		}
		id = n.parent
	}
	return false
}

func (m *nodeMap) drafts() []*draft {
	m.link()
	seen := make(map[string]bool, len(m.nodes))
	var convert func(id string) *draft
	convert = func(id string) *draft {
		seen[id] = true
		n := m.nodes[id]
		d := &draft{
			name:        n.fields.Name,
			typ:         n.fields.Type,
			description: n.fields.Description,
			status:      n.fields.Status,
			value:       formatValue(n.fields.Value),
			lastUpdate:  n.fields.LastUpdate,
		}
		if d.name == "" {
			d.name = tree.LastSegment(n.id)
		}
		for _, c := range n.children {
			if !seen[c] {
				d.children = append(d.children, convert(c))
			}
		}
		return d
	}

	var roots []*draft
	for _, id := range m.order {
		if m.nodes[id].parent == "" && !seen[id] {
			roots = append(roots, convert(id))
		}
	}
	return roots
}

// isNodeMap reports whether every value of m is an object carrying an id,
// name or children.
func isNodeMap(m map[string]any) bool {
	if len(m) == 0 {
		return false
	}
	for _, v := range m {
		obj, ok := v.(map[string]any)
		if !ok {
			return false
		}
		if !truthy(obj["id"]) && !truthy(obj["name"]) && !truthy(obj["children"]) {
			return false
		}
	}
	return true
}

func mapEntries(m map[string]any) []entry {
	out := make([]entry, 0, len(m))
	for _, k := range sortedKeys(m) {
		if obj, ok := m[k].(map[string]any); ok {
			out = append(out, entry{key: k, obj: obj})
		}
	}
	return out
}

// isWrappedRoot reports whether m is a single node object with scalar id
// and name.
func isWrappedRoot(m map[string]any) bool {
	return isScalar(m["id"]) && truthy(m["id"]) && isScalar(m["name"]) && truthy(m["name"])
}

// isSentinel reports whether a wrapped root is the synthetic "root" wrapper.
func isSentinel(m map[string]any) bool {
	for _, k := range []string{"id", "name", "type"} {
		if s, ok := m[k].(string); ok && strings.EqualFold(strings.TrimSpace(s), tree.TypeRoot) {
			return true
		}
	}
	return false
}

func wrappedRootDrafts(m map[string]any) []*draft {
	nm := newNodeMap()
	root := ""
	id := scalarString(m["id"])
	if isSentinel(m) {
		for _, c := range childEntries(id, m["children"]) {
			nm.collect(c.key, c.obj, &root)
		}
	} else {
		nm.collect(id, m, &root)
	}
	return nm.drafts()
}
