package genicam

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseDoc = `<?xml version="1.0"?>
<RegisterDescription ModelName="Test" VendorName="Acme">
  <Category Name="Root">
    <pFeature>DeviceVendorName</pFeature>
  </Category>
  <StringReg Name="DeviceVendorName">
    <Address>0x48</Address>
    <Length>32</Length>
  </StringReg>
</RegisterDescription>
`

func TestParse(t *testing.T) {
	d, err := Parse([]byte(baseDoc))
	require.NoError(t, err)

	assert.True(t, d.HasNode("DeviceVendorName"))
	assert.True(t, d.HasNode("Root"))
	assert.False(t, d.HasNode("SensorWidth"))
}

func TestParseMalformed(t *testing.T) {
	_, err := Parse([]byte("<RegisterDescription><unclosed></RegisterDescription>"))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = Parse([]byte("   "))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestXMLWithoutDefaults(t *testing.T) {
	d, err := Parse([]byte(baseDoc))
	require.NoError(t, err)

	out, err := d.XML()
	require.NoError(t, err)
	assert.Equal(t, baseDoc, string(out))
}

func TestDefaultNodeInjection(t *testing.T) {
	d, err := Parse([]byte(baseDoc))
	require.NoError(t, err)

	d.SetDefaultNode("SensorWidth", `<Integer Name="SensorWidth"><Value>1280</Value></Integer>`)
	d.SetDefaultNode("SensorHeight", `<Integer Name="SensorHeight"><Value>720</Value></Integer>`)

	out, err := d.XML()
	require.NoError(t, err)

	// The rendered document stays well-formed and gains the new nodes.
	patched, err := Parse(out)
	require.NoError(t, err)
	assert.True(t, patched.HasNode("SensorWidth"))
	assert.True(t, patched.HasNode("SensorHeight"))
	assert.True(t, patched.HasNode("DeviceVendorName"))
}

func TestDefaultNodeSkippedWhenDefined(t *testing.T) {
	d, err := Parse([]byte(baseDoc))
	require.NoError(t, err)

	d.SetDefaultNode("DeviceVendorName", `<StringReg Name="DeviceVendorName"><Address>0x0</Address></StringReg>`)

	out, err := d.XML()
	require.NoError(t, err)
	assert.Equal(t, baseDoc, string(out))
}

func TestDefaultNodeReplaced(t *testing.T) {
	d, err := Parse([]byte(baseDoc))
	require.NoError(t, err)

	d.SetDefaultNode("SensorWidth", `<Integer Name="SensorWidth"><Value>640</Value></Integer>`)
	d.SetDefaultNode("SensorWidth", `<Integer Name="SensorWidth"><Value>1920</Value></Integer>`)

	out, err := d.XML()
	require.NoError(t, err)
	assert.Contains(t, string(out), "<Value>1920</Value>")
	assert.NotContains(t, string(out), "<Value>640</Value>")
}
