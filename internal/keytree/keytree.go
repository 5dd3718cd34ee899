// Package keytree builds a hierarchical index over colon-delimited key
// namespaces. It is a pure package: a flat key set goes in, an ordered tree
// of folder and leaf entries comes out.
package keytree

import (
	"sort"
	"strings"
)

// Separator splits a key into its namespace segments.
const Separator = ":"

// TreeItem is one entry of the display tree. ID is the full colon-joined
// path, Label the last segment only.
type TreeItem struct {
	ID       string     `json:"id"`
	Label    string     `json:"label"`
	Children []TreeItem `json:"children,omitempty"`
}

// IsFolder reports whether the entry has at least one child. An entry can be
// a folder and still correspond to a real key when one key is a strict
// prefix of another.
func (t TreeItem) IsFolder() bool {
	return len(t.Children) > 0
}

// node is an internal trie node keyed by short segment name.
type node struct {
	fullPath string
	isKey    bool
	children map[string]*node
}

func newNode(fullPath string) *node {
	return &node{
		fullPath: fullPath,
		children: make(map[string]*node),
	}
}

// insert walks the remaining segments, creating children as needed. When the
// segments are exhausted the current node is marked as a real key, so
// inserting the same key twice only re-asserts the flag.
func (n *node) insert(parts []string) {
	if len(parts) == 0 {
		n.isKey = true
		return
	}

	name := parts[0]
	child, ok := n.children[name]
	if !ok {
		fullPath := name
		if n.fullPath != "" {
			fullPath = n.fullPath + Separator + name
		}
		child = newNode(fullPath)
		n.children[name] = child
	}

	child.insert(parts[1:])
}

// Build converts a flat key set into an ordered tree. At every level folders
// sort before leaves; within the same class entries are ordered by full path
// ascending, so the output is deterministic for a given key set.
func Build(keys []string) []TreeItem {
	root := newNode("")
	for _, key := range keys {
		root.insert(strings.Split(key, Separator))
	}

	return convert(root.children)
}

func convert(children map[string]*node) []TreeItem {
	items := make([]TreeItem, 0, len(children))
	for name, child := range children {
		items = append(items, TreeItem{
			ID:       child.fullPath,
			Label:    name,
			Children: convert(child.children),
		})
	}

	// Full paths are unique among siblings, so the order is total.
	sort.Slice(items, func(i, j int) bool {
		iFolder, jFolder := items[i].IsFolder(), items[j].IsFolder()
		if iFolder != jFolder {
			return iFolder
		}
		return items[i].ID < items[j].ID
	})

	return items
}

// CountLeaves returns the number of leaf entries in the tree, i.e. the
// number of keys that have no children of their own.
func CountLeaves(items []TreeItem) int {
	total := 0
	for _, item := range items {
		if item.IsFolder() {
			total += CountLeaves(item.Children)
		} else {
			total++
		}
	}
	return total
}
