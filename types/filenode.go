package types

// NodeType distinguishes files from directories in a listing.
type NodeType string

// Node types as written by the device.
const (
	NodeFile      NodeType = "file"
	NodeDirectory NodeType = "directory"
)

// FileNode is one entry of a parsed file listing.
type FileNode struct {
	Name string   `json:"name" yaml:"name"`
	Type NodeType `json:"type" yaml:"type"`
	// Size is the file size in bytes; zero for directories.
	Size int64 `json:"size,omitempty" yaml:"size,omitempty"`
	// Modified is a unix timestamp when the device reports one.
	Modified int64       `json:"ts,omitempty" yaml:"ts,omitempty"`
	Children []*FileNode `json:"children,omitempty" yaml:"children,omitempty"`
}

// IsDir returns true for directory nodes.
func (n *FileNode) IsDir() bool {
	return n.Type == NodeDirectory
}
