package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magicbird9803/Unsimplifier-master/pkg/datatype"
	"github.com/magicbird9803/Unsimplifier-master/pkg/elf"
	"github.com/magicbird9803/Unsimplifier-master/pkg/elf/elftest"
	"github.com/magicbird9803/Unsimplifier-master/pkg/schema"
)

func newCodec(t *testing.T) *Codec {
	t.Helper()
	reg, err := schema.Load()
	require.NoError(t, err)
	return New(reg)
}

func TestVerify(t *testing.T) {
	c := newCodec(t)
	data := elftest.MapIds().MustBytes()

	report, err := c.Verify(datatype.MapId, data)
	require.NoError(t, err)
	assert.True(t, report.Identical)
	assert.Equal(t, len(data), report.Size)
	assert.Equal(t, 2, report.Records)

	// synthesized model symbols make the first write differ
	report, err = c.Verify(datatype.DataNpcModel, elftest.NpcModels().MustBytes())
	require.NoError(t, err)
	assert.False(t, report.Identical)
}

func TestDumpAndBuild(t *testing.T) {
	c := newCodec(t)
	c.VerifyRoundTrip = true
	base := elftest.ItemTables().MustBytes()

	doc, err := c.Dump(datatype.ItemList, base)
	require.NoError(t, err)

	out, err := c.Build(datatype.ItemList, base, doc)
	require.NoError(t, err)
	assert.Equal(t, base, out)
}

func TestBuildModelTree(t *testing.T) {
	c := newCodec(t)
	c.VerifyRoundTrip = true
	base := elftest.NpcModels().MustBytes()

	doc, err := c.Dump(datatype.DataNpcModel, base)
	require.NoError(t, err)

	_, err = c.Build(datatype.DataNpcModel, base, doc)
	require.NoError(t, err)
}

func TestErrorsKeepTheirType(t *testing.T) {
	c := newCodec(t)
	b := elftest.New()
	b.OmitData = true

	_, err := c.Dump(datatype.Npc, b.MustBytes())

	var empty *elf.EmptyFileError
	assert.ErrorAs(t, err, &empty)
	assert.Contains(t, err.Error(), "parse Npc")
}
