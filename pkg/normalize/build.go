package normalize

import (
	"github.com/matzehuels/sensortree/pkg/tree"
)

// draft is an intermediate node before ids are assigned. Every shape rule
// produces drafts; build turns them into a forest with canonical ids.
type draft struct {
	name        string
	typ         string
	description string
	status      string
	value       *string
	lastUpdate  string
	children    []*draft
}

func build(roots []*draft) *tree.Forest {
	f := tree.New()
	for _, d := range roots {
		place(f, d, "", 0)
	}
	return f
}

func place(f *tree.Forest, d *draft, parent string, depth int) {
	id := tree.ChildID(parent, d.name)
	if n, ok := f.Node(id); ok {
		merge(n, d)
	} else {
		typ := d.typ
		if typ == "" {
			typ = tree.LevelType(depth)
		}
		status := d.status
		if status != "" {
			status = tree.NormalizeStatus(status)
		}
		// id is new and parent was placed before us, so Add cannot fail.
		_ = f.Add(tree.Node{
			ID:          id,
			Name:        d.name,
			Type:        typ,
			Description: d.description,
			ParentID:    parent,
			Status:      status,
			Value:       d.value,
			LastUpdate:  d.lastUpdate,
		})
	}
	for _, c := range d.children {
		place(f, c, id, depth+1)
	}
}

// merge fills empty attributes of n from d. The first non-empty value wins.
func merge(n *tree.Node, d *draft) {
	if n.Description == "" {
		n.Description = d.description
	}
	if n.Status == "" && d.status != "" {
		n.Status = tree.NormalizeStatus(d.status)
	}
	if n.Value == nil {
		n.Value = d.value
	}
	if n.LastUpdate == "" {
		n.LastUpdate = d.lastUpdate
	}
}
