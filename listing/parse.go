// Package listing turns a reassembled directory listing into a file tree.
//
// Two forms are accepted: the nested tree the listing streamer emits
// ({"name","type","children"}) and the flat LIST response of the device
// command API ({"ok","c","d","ch":[{"f","t","sz","ts"}]}).
package listing

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pithecene-io/sdlink/types"
)

// Form identifies a listing shape.
type Form string

const (
	// FormTree is the nested name/type/children form.
	FormTree Form = "tree"
	// FormDevice is the flat LIST command response.
	FormDevice Form = "device"
)

// ErrUnknownForm is returned when a payload matches neither form.
var ErrUnknownForm = errors.New("unrecognized listing form")

// DeviceError is returned for a LIST response reporting failure (ok:0).
type DeviceError struct {
	Dir     string
	Message string
}

func (e *DeviceError) Error() string {
	if e.Dir == "" {
		return fmt.Sprintf("device error: %s", e.Message)
	}
	return fmt.Sprintf("device error listing %s: %s", e.Dir, e.Message)
}

// DetectForm reports which listing form data is in.
func DetectForm(data []byte) (Form, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return "", fmt.Errorf("listing is not a JSON object: %w", err)
	}
	if _, ok := keys["ok"]; ok {
		return FormDevice, nil
	}
	if _, ok := keys["ch"]; ok {
		return FormDevice, nil
	}
	if _, ok := keys["name"]; ok {
		return FormTree, nil
	}
	return "", ErrUnknownForm
}

// Parse validates and decodes a listing in either form.
func Parse(data []byte) (*types.FileNode, error) {
	form, err := DetectForm(data)
	if err != nil {
		return nil, err
	}
	if err := validate(form, data); err != nil {
		return nil, err
	}

	switch form {
	case FormDevice:
		return decodeDevice(data)
	default:
		return decodeTree(data)
	}
}

func decodeTree(data []byte) (*types.FileNode, error) {
	var root types.FileNode
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("decode tree listing: %w", err)
	}
	return &root, nil
}

type deviceEntry struct {
	F  string `json:"f"`
	T  string `json:"t"`
	Sz int64  `json:"sz"`
	Ts int64  `json:"ts"`
}

type deviceListing struct {
	OK  int           `json:"ok"`
	Dir string        `json:"d"`
	Err string        `json:"err"`
	Ch  []deviceEntry `json:"ch"`
}

func decodeDevice(data []byte) (*types.FileNode, error) {
	var resp deviceListing
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode device listing: %w", err)
	}
	if resp.OK != 1 {
		msg := resp.Err
		if msg == "" {
			msg = "listing failed"
		}
		return nil, &DeviceError{Dir: resp.Dir, Message: msg}
	}

	name := resp.Dir
	if name == "" {
		name = "/"
	}
	root := &types.FileNode{Name: name, Type: types.NodeDirectory}
	for _, e := range resp.Ch {
		node := &types.FileNode{Name: e.F, Type: types.NodeFile, Size: e.Sz, Modified: e.Ts}
		if e.T == "d" {
			node.Type = types.NodeDirectory
			node.Size = 0
		}
		root.Children = append(root.Children, node)
	}
	return root, nil
}
