package mailbox

import (
	"strings"
)

// ListEntry is a single LIST response line.
type ListEntry struct {
	Mailbox    string
	Delimiter  rune
	Attributes []string
}

// Folder is a node in a FolderTree.
type Folder struct {
	Name       string
	Mailbox    string
	Delimiter  string
	Attributes []string
	Children   FolderTree
}

// FolderTree is the hierarchical folder namespace of a mail store.
// Nodes keep the order in which the server reported them.
type FolderTree []*Folder

// NewFolderTree builds a tree from LIST entries, splitting each mailbox name
// on its delimiter. Missing intermediate nodes are created on the fly.
func NewFolderTree(entries []ListEntry) FolderTree {
	var root FolderTree

	for _, e := range entries {
		segments := []string{e.Mailbox}
		delim := ""
		if e.Delimiter != 0 {
			delim = string(e.Delimiter)
			segments = strings.Split(e.Mailbox, delim)
		}

		level := &root
		for i, seg := range segments {
			node := level.Get(seg)
			if node == nil {
				node = &Folder{
					Name:      seg,
					Mailbox:   strings.Join(segments[:i+1], delim),
					Delimiter: delim,
				}
				*level = append(*level, node)
			}
			if i == len(segments)-1 {
				node.Attributes = e.Attributes
			}
			level = &node.Children
		}
	}

	return root
}

// Get returns the direct child named name, or nil.
func (t FolderTree) Get(name string) *Folder {
	for _, f := range t {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Lookup walks path segment by segment through nested children.
func (t FolderTree) Lookup(segments ...string) *Folder {
	level := t
	var node *Folder
	for _, seg := range segments {
		node = level.Get(seg)
		if node == nil {
			return nil
		}
		level = node.Children
	}
	return node
}

// Flatten returns dotted folder paths, depth-first with parents before children.
func (t FolderTree) Flatten() []string {
	paths := make([]string, 0, len(t))
	t.flatten("", &paths)
	return paths
}

func (t FolderTree) flatten(prefix string, paths *[]string) {
	for _, f := range t {
		path := prefix + f.Name
		*paths = append(*paths, path)
		f.Children.flatten(path+".", paths)
	}
}
