package listing

import (
	"errors"
	"path"
	"strings"

	"github.com/pithecene-io/sdlink/types"
)

// SkipDir can be returned from a WalkFunc to skip a directory's children.
var SkipDir = errors.New("skip this directory") //nolint:revive,staticcheck // mirrors fs.SkipDir

// WalkFunc is called for every node with its absolute path.
type WalkFunc func(p string, node *types.FileNode) error

// Walk visits root and its descendants depth-first, parents first.
func Walk(root *types.FileNode, fn WalkFunc) error {
	if root == nil {
		return nil
	}
	err := walk(rootPath(root), root, fn)
	if errors.Is(err, SkipDir) {
		return nil
	}
	return err
}

func walk(p string, node *types.FileNode, fn WalkFunc) error {
	if err := fn(p, node); err != nil {
		return err
	}
	for _, child := range node.Children {
		err := walk(path.Join(p, child.Name), child, fn)
		if errors.Is(err, SkipDir) {
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// rootPath anchors the tree so that every node has an absolute path.
func rootPath(root *types.FileNode) string {
	if root.Name == "" {
		return "/"
	}
	return path.Clean("/" + root.Name)
}

// Find returns the node at absolute path p, or nil.
func Find(root *types.FileNode, p string) *types.FileNode {
	if root == nil {
		return nil
	}
	target := path.Clean("/" + p)
	base := rootPath(root)
	if target == base {
		return root
	}

	var rel string
	if base == "/" {
		rel = target[1:]
	} else {
		if !strings.HasPrefix(target, base+"/") {
			return nil
		}
		rel = target[len(base)+1:]
	}

	node := root
	for _, part := range strings.Split(rel, "/") {
		var next *types.FileNode
		for _, child := range node.Children {
			if child.Name == part {
				next = child
				break
			}
		}
		if next == nil {
			return nil
		}
		node = next
	}
	return node
}

// Entry is one flattened node.
type Entry struct {
	Path string         `json:"path" yaml:"path"`
	Type types.NodeType `json:"type" yaml:"type"`
	Size int64          `json:"size" yaml:"size"`
}

// Flatten lists every node below root in walk order. The root is omitted.
func Flatten(root *types.FileNode) []Entry {
	var out []Entry
	_ = Walk(root, func(p string, n *types.FileNode) error {
		if n == root {
			return nil
		}
		out = append(out, Entry{Path: p, Type: n.Type, Size: n.Size})
		return nil
	})
	return out
}

// Summary aggregates a tree.
type Summary struct {
	Files       int   `json:"files" yaml:"files"`
	Directories int   `json:"directories" yaml:"directories"`
	Bytes       int64 `json:"bytes" yaml:"bytes"`
}

// Stats counts the nodes below root. The root itself is not counted.
func Stats(root *types.FileNode) Summary {
	var s Summary
	_ = Walk(root, func(_ string, n *types.FileNode) error {
		if n == root {
			return nil
		}
		if n.IsDir() {
			s.Directories++
		} else {
			s.Files++
			s.Bytes += n.Size
		}
		return nil
	})
	return s
}
