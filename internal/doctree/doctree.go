// Package doctree models the rendered site hierarchy.
//
// The tree mirrors the nested output path structure and distinguishes real
// documents from synthetic placeholder nodes which exist only because of
// document descendants. Nodes live in an arena keyed by id, so the structure
// serializes without pointer chasing and can never go cyclic.
//
// A document's identifier is its output path, with one special rule: a final
// segment named "index" addresses the parent directory node rather than a
// leaf under it ("a/b/index.html" is the node for directory "a/b").
package doctree

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
)

// DefaultRootTitle is used for the root node until an index document claims it.
const DefaultRootTitle = "Home"

var titleCaser = cases.Title(language.English)

type nodeID int

const rootID nodeID = 0

type node struct {
	title      string
	isDocument bool
	parent     nodeID
	segment    string
	children   map[string]nodeID
}

// Tree is the hierarchical site model. The zero value is not usable; call New.
type Tree struct {
	nodes  map[nodeID]*node
	nextID nodeID
}

// New returns a tree holding only the root placeholder. The root always
// exists, even when it is not itself a document.
func New() *Tree {
	t := &Tree{nodes: make(map[nodeID]*node), nextID: rootID + 1}
	t.nodes[rootID] = &node{title: DefaultRootTitle, parent: -1, children: make(map[string]nodeID)}
	return t
}

// segmentsOf splits an output path into the segments addressing its node.
// The extension of the final segment is stripped, and an "index" stem
// addresses the parent directory.
func segmentsOf(p string) []string {
	p = strings.Trim(path.Clean(strings.ReplaceAll(p, "\\", "/")), "/")
	if p == "" || p == "." {
		return nil
	}
	segs := strings.Split(p, "/")
	last := segs[len(segs)-1]
	stem := strings.TrimSuffix(last, path.Ext(last))
	if stem == "index" {
		return segs[:len(segs)-1]
	}
	segs[len(segs)-1] = stem
	return segs
}

func (t *Tree) lookup(segs []string) (nodeID, bool) {
	id := rootID
	for _, seg := range segs {
		child, ok := t.nodes[id].children[seg]
		if !ok {
			return 0, false
		}
		id = child
	}
	return id, true
}

func (t *Tree) newNode(parent nodeID, segment, title string, isDocument bool) nodeID {
	id := t.nextID
	t.nextID++
	t.nodes[id] = &node{
		title:      title,
		isDocument: isDocument,
		parent:     parent,
		segment:    segment,
		children:   make(map[string]nodeID),
	}
	t.nodes[parent].children[segment] = id
	return id
}

// ensure walks segs from the root, creating title-cased placeholders for
// every ancestor segment not yet present, and returns the final node id.
func (t *Tree) ensure(segs []string) nodeID {
	id := rootID
	for _, seg := range segs {
		child, ok := t.nodes[id].children[seg]
		if !ok {
			child = t.newNode(id, seg, titleCaser.String(seg), false)
		}
		id = child
	}
	return id
}

// AddDocument records a rendered document at the given output path. An
// existing placeholder at that node is promoted; an existing document is
// overwritten with a warning (two sources mapped to one output path).
func (t *Tree) AddDocument(p, title string) {
	segs := segmentsOf(p)
	id := t.ensure(segs)
	n := t.nodes[id]
	if n.isDocument {
		slog.Warn("Document overwritten in site tree", logfields.Path(p))
	}
	n.isDocument = true
	if title != "" {
		n.title = title
	}
}

// EditDocument updates the title of an existing document node. If the node is
// missing (cache inconsistency), it falls back to AddDocument instead of
// failing.
func (t *Tree) EditDocument(p, title string) {
	segs := segmentsOf(p)
	id, ok := t.lookup(segs)
	if !ok {
		t.AddDocument(p, title)
		return
	}
	n := t.nodes[id]
	n.isDocument = true
	if title != "" {
		n.title = title
	}
}

// RemoveDocument removes the document at the given output path. A node with
// children is demoted to a placeholder so its subtree survives; a childless
// node is deleted, after which now-empty non-document ancestors are pruned
// recursively.
func (t *Tree) RemoveDocument(p string) {
	segs := segmentsOf(p)
	id, ok := t.lookup(segs)
	if !ok {
		return
	}

	if id == rootID {
		root := t.nodes[rootID]
		root.isDocument = false
		root.title = DefaultRootTitle
		return
	}

	n := t.nodes[id]
	if len(n.children) > 0 {
		n.isDocument = false
		n.title = titleCaser.String(n.segment)
		return
	}

	for id != rootID {
		n = t.nodes[id]
		parent := n.parent
		delete(t.nodes[parent].children, n.segment)
		delete(t.nodes, id)

		pn := t.nodes[parent]
		if parent == rootID || pn.isDocument || len(pn.children) > 0 {
			break
		}
		id = parent
	}
}

// Node is a read-only handle into the tree. Mutation happens only through the
// tree's Add/Edit/Remove operations.
type Node struct {
	tree *Tree
	id   nodeID
}

// Root returns a handle on the root node.
func (t *Tree) Root() Node { return Node{tree: t, id: rootID} }

// Node resolves an output path to a read handle. ok is false when no node
// exists at that path.
func (t *Tree) Node(p string) (Node, bool) {
	id, ok := t.lookup(segmentsOf(p))
	if !ok {
		return Node{}, false
	}
	return Node{tree: t, id: id}, true
}

// Title returns the node's display title.
func (n Node) Title() string { return n.tree.nodes[n.id].title }

// IsDocument reports whether the node is a rendered page rather than a
// placeholder.
func (n Node) IsDocument() bool { return n.tree.nodes[n.id].isDocument }

// Segment returns the path segment addressing this node under its parent.
// Empty for the root.
func (n Node) Segment() string { return n.tree.nodes[n.id].segment }

// Child returns the child addressed by segment.
func (n Node) Child(segment string) (Node, bool) {
	id, ok := n.tree.nodes[n.id].children[segment]
	if !ok {
		return Node{}, false
	}
	return Node{tree: n.tree, id: id}, true
}

// Children returns the node's children sorted by segment.
func (n Node) Children() []Node {
	raw := n.tree.nodes[n.id].children
	segs := make([]string, 0, len(raw))
	for seg := range raw {
		segs = append(segs, seg)
	}
	sort.Strings(segs)
	out := make([]Node, 0, len(segs))
	for _, seg := range segs {
		out = append(out, Node{tree: n.tree, id: raw[seg]})
	}
	return out
}

// jsonNode is the persisted shape: {title, is_document, children:{seg:...}}.
type jsonNode struct {
	Title      string              `json:"title"`
	IsDocument bool                `json:"is_document"`
	Children   map[string]jsonNode `json:"children"`
}

func (t *Tree) toJSON(id nodeID) jsonNode {
	n := t.nodes[id]
	out := jsonNode{Title: n.title, IsDocument: n.isDocument, Children: make(map[string]jsonNode, len(n.children))}
	for seg, child := range n.children {
		out.Children[seg] = t.toJSON(child)
	}
	return out
}

func (t *Tree) fromJSON(parent nodeID, segment string, jn jsonNode) nodeID {
	var id nodeID
	if parent < 0 {
		id = rootID
		t.nodes[rootID].title = jn.Title
		t.nodes[rootID].isDocument = jn.IsDocument
	} else {
		id = t.newNode(parent, segment, jn.Title, jn.IsDocument)
	}
	for seg, child := range jn.Children {
		t.fromJSON(id, seg, child)
	}
	return id
}

// MarshalJSON encodes the whole tree in the nested persisted shape.
func (t *Tree) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.toJSON(rootID))
}

// UnmarshalJSON replaces the tree's content with the persisted shape.
func (t *Tree) UnmarshalJSON(data []byte) error {
	var jn jsonNode
	if err := json.Unmarshal(data, &jn); err != nil {
		return err
	}
	t.nodes = map[nodeID]*node{rootID: {title: DefaultRootTitle, parent: -1, children: make(map[string]nodeID)}}
	t.nextID = rootID + 1
	t.fromJSON(-1, "", jn)
	return nil
}

// Crumb is one entry of a breadcrumb trail.
type Crumb struct {
	Title string
	// Href is the relative link from the document's own directory to the
	// crumb target, empty for non-linkable entries (placeholders, the leaf
	// itself, and the ellipsis placeholder).
	Href string
	// Linkable mirrors whether the underlying node is a document.
	Linkable bool
}

// TrailOptions tunes breadcrumb computation.
type TrailOptions struct {
	// MaxNodes truncates the trail to at most this many entries, replacing
	// the dropped prefix with a single "..." placeholder. Zero means no limit.
	MaxNodes int
	// IncludeLeaf keeps the addressed document itself as the last entry.
	IncludeLeaf bool
}

// Trail walks the ancestor chain from the root to the document at the given
// output path and returns the breadcrumb entries. An error means the path
// does not resolve in the tree (cache inconsistency).
func (t *Tree) Trail(p string, opts TrailOptions) ([]Crumb, error) {
	segs := segmentsOf(p)
	if _, ok := t.lookup(segs); !ok {
		return nil, fmt.Errorf("no site tree node for %s", p)
	}

	// Relative link depth per ancestor: the root sits len(segs) levels above
	// the document's directory when the document is a directory index, one
	// less otherwise. segmentsOf already folded the index rule in, so the
	// document's directory is exactly the parent of the last segment.
	depths := make([]string, 0, len(segs)+1)
	for d := len(segs); d >= 0; d-- {
		if d == 0 {
			depths = append(depths, ".")
		} else {
			depths = append(depths, strings.Repeat("../", d-1)+"..")
		}
	}
	isIndex := strings.TrimSuffix(path.Base(p), path.Ext(p)) == "index"
	if !isIndex {
		// Non-index documents live in their parent's directory; the last hop
		// is a sibling, not a level up.
		depths = depths[1:]
		depths = append(depths, ".")
	}

	crumbs := make([]Crumb, 0, len(segs)+1)
	cur := rootID
	appendCrumb := func(id nodeID, depth string) {
		n := t.nodes[id]
		c := Crumb{Title: n.title, Linkable: n.isDocument}
		if n.isDocument {
			c.Href = depth
		}
		crumbs = append(crumbs, c)
	}

	appendCrumb(cur, depths[0])
	for i, seg := range segs {
		cur = t.nodes[cur].children[seg]
		appendCrumb(cur, depths[i+1])
	}

	// The leaf never links to itself.
	crumbs[len(crumbs)-1].Href = ""

	if !opts.IncludeLeaf {
		crumbs = crumbs[:len(crumbs)-1]
	}

	if opts.MaxNodes > 0 && len(crumbs) > opts.MaxNodes {
		kept := crumbs[len(crumbs)-opts.MaxNodes:]
		out := make([]Crumb, 0, opts.MaxNodes+1)
		out = append(out, Crumb{Title: "..."})
		out = append(out, kept...)
		crumbs = out
	}

	return crumbs, nil
}
