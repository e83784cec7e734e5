package listing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pithecene-io/sdlink/types"
)

func sampleTree() *types.FileNode {
	return &types.FileNode{
		Name: "/",
		Type: types.NodeDirectory,
		Children: []*types.FileNode{
			{Name: "data.txt", Type: types.NodeFile, Size: 391},
			{
				Name: "logs",
				Type: types.NodeDirectory,
				Children: []*types.FileNode{
					{Name: "boot.log", Type: types.NodeFile, Size: 88},
					{Name: "old", Type: types.NodeDirectory, Children: []*types.FileNode{
						{Name: "x.log", Type: types.NodeFile, Size: 1},
					}},
				},
			},
		},
	}
}

func TestWalk_Order(t *testing.T) {
	var paths []string
	err := Walk(sampleTree(), func(p string, _ *types.FileNode) error {
		paths = append(paths, p)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"/", "/data.txt", "/logs", "/logs/boot.log", "/logs/old", "/logs/old/x.log"}, paths)
}

func TestWalk_SkipDirAndStop(t *testing.T) {
	var paths []string
	err := Walk(sampleTree(), func(p string, n *types.FileNode) error {
		paths = append(paths, p)
		if p == "/logs" {
			return SkipDir
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"/", "/data.txt", "/logs"}, paths)

	stop := errors.New("stop")
	err = Walk(sampleTree(), func(p string, _ *types.FileNode) error {
		if p == "/logs/boot.log" {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
}

func TestFind(t *testing.T) {
	root := sampleTree()

	tests := []struct {
		path string
		want string
	}{
		{"/", "/"},
		{"", "/"},
		{"/data.txt", "data.txt"},
		{"logs/old/x.log", "x.log"},
		{"/logs/old/", "old"},
		{"/logs/missing", ""},
		{"/data.txt/child", ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := Find(root, tt.path)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Name)
		})
	}
}

func TestFind_NonRootBase(t *testing.T) {
	root := &types.FileNode{Name: "/logs", Type: types.NodeDirectory, Children: []*types.FileNode{
		{Name: "boot.log", Type: types.NodeFile},
	}}
	assert.NotNil(t, Find(root, "/logs/boot.log"))
	assert.Nil(t, Find(root, "/boot.log"))
	assert.Nil(t, Find(root, "/logsx/boot.log"))
}

func TestFlattenAndStats(t *testing.T) {
	root := sampleTree()

	entries := Flatten(root)
	require.Len(t, entries, 5)
	assert.Equal(t, Entry{Path: "/logs/boot.log", Type: types.NodeFile, Size: 88}, entries[2])

	assert.Equal(t, Summary{Files: 3, Directories: 2, Bytes: 480}, Stats(root))
	assert.Equal(t, Summary{}, Stats(nil))
	assert.Nil(t, Flatten(nil))
}
