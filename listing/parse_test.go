package listing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pithecene-io/sdlink/reassembly"
	"github.com/pithecene-io/sdlink/types"
)

// sdCardChunks is a four-chunk FILE_LIST capture of an SD card root.
var sdCardChunks = []string{
	`{"name":"/","type":"directory","children":[{"name":".Spotlight-V100","type":"directory"},{"name":".fseventsd","type":"di`,
	`rectory"},{"name":"._.Spotlight-V100","type":"file","size":4096},{"name":"data.txt","type":"file","size":391},{"name":".`,
	`_data.txt","type":"file","size":4096},{"name":"sample.txt","type":"file","size":3},{"name":"logs","type":"directory"},{"`,
	`name":"data2.txt","type":"file","size":391}]}`,
}

func reassembleListing(t *testing.T, order []int) []byte {
	t.Helper()
	r := reassembly.New()
	var done *reassembly.Assembled
	for _, idx := range order {
		var err error
		done, err = r.AddChunk(&types.ChunkEnvelope{
			Type:    types.KindFileList,
			Seq:     idx + 1,
			Total:   len(sdCardChunks),
			Payload: []byte(sdCardChunks[idx]),
			IsFinal: idx == len(sdCardChunks)-1,
		})
		require.NoError(t, err)
	}
	require.NotNil(t, done, "listing did not complete")
	return done.Payload
}

func TestParse_ReassembledTree(t *testing.T) {
	payload := reassembleListing(t, []int{1, 3, 0, 2})

	form, err := DetectForm(payload)
	require.NoError(t, err)
	assert.Equal(t, FormTree, form)

	root, err := Parse(payload)
	require.NoError(t, err)

	assert.Equal(t, "/", root.Name)
	assert.True(t, root.IsDir())
	require.Len(t, root.Children, 8)
	assert.Equal(t, ".Spotlight-V100", root.Children[0].Name)
	assert.Equal(t, "data2.txt", root.Children[7].Name)
	assert.Equal(t, int64(391), root.Children[7].Size)

	s := Stats(root)
	assert.Equal(t, Summary{Files: 5, Directories: 3, Bytes: 8977}, s)
}

func TestParse_DeviceList(t *testing.T) {
	payload := []byte(`{"ok":1,"c":"LIST","d":"/logs","t":"d","ch":[` +
		`{"f":"2024-01.csv","t":"f","sz":1200,"ts":0},` +
		`{"f":"archive","t":"d","sz":0,"ts":0},` +
		`{"f":"boot.log","t":"f","sz":88,"ts":1700000000}],"ts":0}`)

	form, err := DetectForm(payload)
	require.NoError(t, err)
	assert.Equal(t, FormDevice, form)

	root, err := Parse(payload)
	require.NoError(t, err)

	assert.Equal(t, "/logs", root.Name)
	require.Len(t, root.Children, 3)
	assert.Equal(t, types.NodeFile, root.Children[0].Type)
	assert.Equal(t, int64(1200), root.Children[0].Size)
	assert.Equal(t, types.NodeDirectory, root.Children[1].Type)
	assert.Equal(t, int64(1700000000), root.Children[2].Modified)

	assert.Equal(t, "/logs/boot.log", Flatten(root)[2].Path)
}

func TestParse_DeviceFailure(t *testing.T) {
	_, err := Parse([]byte(`{"ok":0,"c":"LIST","d":"/nope","t":"d","ch":[],"err":"Failed to list directory","ts":0}`))
	require.Error(t, err)

	var devErr *DeviceError
	require.ErrorAs(t, err, &devErr)
	assert.Equal(t, "/nope", devErr.Dir)
	assert.Equal(t, "Failed to list directory", devErr.Message)
}

func TestParse_SchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		form Form
		data string
	}{
		{"tree bad type", FormTree, `{"name":"/","type":"folder"}`},
		{"tree missing type", FormTree, `{"name":"/"}`},
		{"tree negative size", FormTree, `{"name":"/","type":"directory","children":[{"name":"a","type":"file","size":-1}]}`},
		{"tree nested violation", FormTree, `{"name":"/","type":"directory","children":[{"name":"a","type":"directory","children":[{"type":"file"}]}]}`},
		{"device bad entry type", FormDevice, `{"ok":1,"ch":[{"f":"a","t":"x"}]}`},
		{"device missing name", FormDevice, `{"ok":1,"ch":[{"t":"f"}]}`},
		{"device ok out of range", FormDevice, `{"ok":2,"ch":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			require.Error(t, err)

			var schemaErr *SchemaError
			require.ErrorAs(t, err, &schemaErr)
			assert.Equal(t, tt.form, schemaErr.Form)
			assert.NotEmpty(t, schemaErr.Violations)
		})
	}
}

func TestParse_NotAListing(t *testing.T) {
	_, err := Parse([]byte(`{"hello":"world"}`))
	assert.ErrorIs(t, err, ErrUnknownForm)

	_, err = Parse([]byte(`[1,2,3]`))
	assert.Error(t, err)

	_, err = Parse([]byte(`{"name":"/","type":"directory","children":[`))
	assert.Error(t, err)
}
