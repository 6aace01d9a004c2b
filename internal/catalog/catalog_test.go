package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSeededCatalog(t *testing.T) {
	c := NewSeededCatalog(9)

	assert.Equal(t, 9, c.Len())

	label, ok := c.FindLabel("QWER0001")
	require.True(t, ok)
	assert.Equal(t, "QWER0001", label)

	imei, ok := c.FindImeiByLabel("QWER0009")
	require.True(t, ok)
	assert.Equal(t, "imei-0000000009", imei)

	_, ok = c.FindLabel("QWER0010")
	assert.False(t, ok)
}

func TestStaticCatalog_EmptyImeiIsAbsent(t *testing.T) {
	c := NewStaticCatalog([]Station{{Label: "ABCD1234"}})

	_, ok := c.FindLabel("ABCD1234")
	assert.True(t, ok)

	_, ok = c.FindImeiByLabel("ABCD1234")
	assert.False(t, ok)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	content := `
stations:
  - label: ZXCV0001
    imei: imei-9000000001
  - label: ZXCV0002
    imei: imei-9000000002
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	c, err := LoadFile(path)
	require.NoError(t, err)

	stations := c.Stations()
	require.Len(t, stations, 2)
	assert.Equal(t, "ZXCV0001", stations[0].Label)

	imei, ok := c.FindImeiByLabel("ZXCV0002")
	require.True(t, ok)
	assert.Equal(t, "imei-9000000002", imei)
}

func TestLoadFile_Errors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
	}{
		{"duplicate label", "stations:\n  - label: A\n  - label: A\n"},
		{"missing label", "stations:\n  - imei: x\n"},
		{"bad yaml", "stations: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))
			_, err := LoadFile(path)
			assert.Error(t, err)
		})
	}

	_, err := LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
