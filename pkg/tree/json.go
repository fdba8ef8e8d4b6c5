package tree

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// jsonNode is the wire form of a node in the nested node-map encoding.
type jsonNode struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Description string   `json:"description"`
	ParentID    *string  `json:"parentId"`
	Status      string   `json:"status,omitempty"`
	Value       *string  `json:"value,omitempty"`
	LastUpdate  string   `json:"lastUpdate,omitempty"`
	Children    nodeList `json:"children,omitempty"`
}

// nodeList is an ordered set of nodes encoded as a JSON object keyed by id.
type nodeList []jsonNode

// MarshalJSON writes the list as an object, preserving order.
func (l nodeList) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, n := range l {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(n.ID)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		data, err := json.Marshal(n)
		if err != nil {
			return nil, err
		}
		buf.Write(data)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object keyed by id (in document order) or an array.
func (l *nodeList) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	switch tok {
	case nil:
		return nil
	case json.Delim('{'):
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return err
			}
			key, _ := keyTok.(string)
			var n jsonNode
			if err := dec.Decode(&n); err != nil {
				return fmt.Errorf("node %q: %w", key, err)
			}
			if n.ID == "" {
				n.ID = key
			}
			*l = append(*l, n)
		}
	case json.Delim('['):
		for dec.More() {
			var n jsonNode
			if err := dec.Decode(&n); err != nil {
				return err
			}
			*l = append(*l, n)
		}
	default:
		return fmt.Errorf("unexpected token %v in node list", tok)
	}
	return nil
}

// MarshalJSON encodes the forest as a nested node-map.
func (f *Forest) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.export(f.roots))
}

func (f *Forest) export(ids []string) nodeList {
	out := make(nodeList, 0, len(ids))
	for _, id := range ids {
		n := f.nodes[id]
		jn := jsonNode{
			ID:          n.ID,
			Name:        n.Name,
			Type:        n.Type,
			Description: n.Description,
			Status:      n.Status,
			Value:       n.Value,
			LastUpdate:  n.LastUpdate,
			Children:    f.export(n.Children),
		}
		if n.ParentID != "" {
			parent := n.ParentID
			jn.ParentID = &parent
		}
		out = append(out, jn)
	}
	return out
}

// UnmarshalJSON replaces the forest with the nested node-map in data.
// Containment is authoritative: a node's ParentID is set to the node that
// contains it regardless of the encoded parentId.
func (f *Forest) UnmarshalJSON(data []byte) error {
	var roots nodeList
	if err := json.Unmarshal(data, &roots); err != nil {
		return fmt.Errorf("decode forest: %w", err)
	}
	fresh := New()
	var add func(list nodeList, parent string) error
	add = func(list nodeList, parent string) error {
		for _, jn := range list {
			err := fresh.Add(Node{
				ID:          jn.ID,
				Name:        jn.Name,
				Type:        jn.Type,
				Description: jn.Description,
				ParentID:    parent,
				Status:      jn.Status,
				Value:       jn.Value,
				LastUpdate:  jn.LastUpdate,
			})
			if err != nil {
				return err
			}
			if err := add(jn.Children, jn.ID); err != nil {
				return err
			}
		}
		return nil
	}
	if err := add(roots, ""); err != nil {
		return err
	}
	*f = *fresh
	return nil
}

// ReadJSON decodes a forest from its nested node-map encoding.
func ReadJSON(data []byte) (*Forest, error) {
	f := New()
	if err := f.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return f, nil
}
