package jsnorm

import (
	"maps"
	"slices"
)

// Node is the compiled shape of one schema position. The concrete types are
// Leaf, *ObjectNode, *ArrayNode and *TupleNode.
type Node interface{ isNode() }

// Leaf passes values through untouched.
type Leaf struct{}

// ObjectNode applies per-field readOnly/default rules and recurses.
type ObjectNode struct {
	Fields []Field

	declared map[string]struct{}
}

// Field is one declared property of an ObjectNode.
type Field struct {
	Name       string
	ReadOnly   bool
	Default    any
	HasDefault bool
	Node       Node
}

// ArrayNode normalizes every element with the same item node.
type ArrayNode struct {
	Items Node
}

// TupleNode normalizes elements positionally. Elements past len(Items) use
// Additional, or stay untouched when Additional is nil.
type TupleNode struct {
	Items      []Node
	Additional Node
}

func (Leaf) isNode()        {}
func (*ObjectNode) isNode() {}
func (*ArrayNode) isNode()  {}
func (*TupleNode) isNode()  {}

// Plan is a compiled PropertyMap. A Plan is immutable and safe for concurrent use.
type Plan struct {
	root *ObjectNode
}

// Compile builds the node tree for props once so it can be reused across payloads.
func Compile(props PropertyMap) *Plan {
	c := compiler{active: map[*PropertySchema]bool{}}
	return &Plan{root: c.object(props)}
}

// Root exposes the compiled top-level object node.
func (p *Plan) Root() *ObjectNode { return p.root }

type compiler struct {
	// schemas on the current descent path; a revisit compiles as Leaf
	active map[*PropertySchema]bool
}

func (c compiler) object(props PropertyMap) *ObjectNode {
	n := &ObjectNode{Fields: make([]Field, 0, len(props)), declared: make(map[string]struct{}, len(props))}
	for _, name := range slices.Sorted(maps.Keys(props)) {
		ps := props[name]
		f := Field{Name: name, Node: Leaf{}}
		if ps != nil {
			f.ReadOnly = ps.ReadOnly
			f.Default = ps.Default
			f.HasDefault = ps.HasDefault
			f.Node = c.node(ps)
		}
		n.Fields = append(n.Fields, f)
		n.declared[name] = struct{}{}
	}
	return n
}

func (c compiler) node(ps *PropertySchema) Node {
	if ps == nil || c.active[ps] {
		return Leaf{}
	}
	c.active[ps] = true
	defer delete(c.active, ps)

	isArray := ps.Items != nil || ps.TupleItems != nil
	switch {
	case ps.Properties != nil && (ps.Type != "array" || !isArray):
		return c.object(ps.Properties)
	case ps.TupleItems != nil:
		t := &TupleNode{Items: make([]Node, len(ps.TupleItems))}
		for i, it := range ps.TupleItems {
			t.Items[i] = c.node(it)
		}
		if ps.AdditionalItems != nil {
			t.Additional = c.node(ps.AdditionalItems)
		}
		return t
	case ps.Items != nil:
		return &ArrayNode{Items: c.node(ps.Items)}
	default:
		return Leaf{}
	}
}
