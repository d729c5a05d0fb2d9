package linker

import (
	"bytes"
	"testing"

	"github.com/magicbird9803/Unsimplifier-master/pkg/elf"
	"github.com/magicbird9803/Unsimplifier-master/pkg/elf/elftest"
	"github.com/magicbird9803/Unsimplifier-master/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

func sampleObject(t *testing.T) *elf.ELF64 {
	t.Helper()

	file, err := elftest.New().
		Data(make([]byte, 48)).
		Object("items", ".data", 0, 32, false).
		Object("wld::btl::data::s_Data", ".data", 32, 16, true).
		StringReloc(".data", 0, "old").
		AddrReloc(".data", 40, "items").
		File()
	require.NoError(t, err)

	return file
}

func TestStringPool(t *testing.T) {
	pool := NewStringPool()

	assert.Equal(t, elf.Pointer(0), pool.Add("abc"))
	assert.Equal(t, elf.Pointer(4), pool.Add("de"))
	assert.Equal(t, elf.Pointer(0), pool.Add("abc"))
	assert.Equal(t, elf.Pointer(7), pool.Add(""))

	off, ok := pool.Offset("de")
	assert.True(t, ok)
	assert.Equal(t, elf.Pointer(4), off)
	assert.Equal(t, 3, pool.Len())
	assert.Equal(t, []byte("abc\x00de\x00\x00"), pool.Bytes())
}

func TestBind(t *testing.T) {
	file := sampleObject(t)
	linker := New(file)
	require.Same(t, file, linker.File)

	key, err := linker.Bind("items", "renamed", ".data")
	require.NoError(t, err)
	assert.Equal(t, "items", key)
	assert.Equal(t, "renamed", linker.Names["items"])

	key, err = linker.Bind("items", "", ".data")
	require.NoError(t, err)
	assert.Equal(t, "items", key)

	before := len(file.Symbols)
	key, err = linker.Bind("", "fresh", ".data")
	require.NoError(t, err)
	assert.Equal(t, "fresh", key)
	require.Len(t, file.Symbols, before+1)

	idx, sym := file.FindSymbol("fresh")
	require.NotNil(t, sym)
	assert.Equal(t, byte(elf.STB_LOCAL), sym.GetBinding())
	assert.Equal(t, byte(elf.STT_OBJECT), sym.GetType())
	assert.Less(t, idx, int(file.Section(".symtab").ShInfo))

	_, err = linker.Bind("", "", ".data")
	assert.Error(t, err)

	_, err = linker.Bind("missing", "", ".bss")
	assert.ErrorIs(t, err, elf.ErrNoSection)
}

func TestLink(t *testing.T) {
	file := sampleObject(t)
	linker := New(file)

	unit := linker.Unit(".data")
	assert.Same(t, unit, linker.Unit(".data"))

	// items array: one string record and padding
	linker.Place("items", unit.Location())
	linker.Resize("items", 32)
	unit.Strings[unit.Location()] = "new"
	linker.Strings.Add("new")
	unit.Zero(32)

	linker.Place("wld::btl::data::s_Data", unit.Location())
	linker.Rename("items", "wld::btl::data::items")
	unit.Zero(8)
	unit.SymbolAddrs[unit.Location()] = "wld::btl::data::items"
	unit.Zero(8)

	require.NoError(t, linker.Link())

	assert.Len(t, file.Section(".data").Content, 48)
	assert.Equal(t, []byte("new\x00"), file.Section(elftest.StringSection).Content)

	_, sym := file.FindSymbol("wld::btl::data::items")
	require.NotNil(t, sym)
	assert.Equal(t, uint64(32), sym.StSize)
	assert.Equal(t, elf.Pointer(0), sym.Location())

	relocations := file.Relocations[".data"]
	require.Len(t, relocations, 2)
	assert.Equal(t, elf.Pointer(0), relocations[0].Location)
	assert.Equal(t, elf.Pointer(40), relocations[1].Location)
	assert.Equal(t, uint32(file.SectionSymbol(file.SectionIndex(".data"))), relocations[1].SymbolIndex)
	assert.Equal(t, elf.Pointer(0), relocations[1].Target)

	// the rebuilt tables decode back to the same model
	reparsed, err := elf.Parse(file.Assemble())
	require.NoError(t, err)
	_, sym = reparsed.FindSymbol("wld::btl::data::items")
	require.NotNil(t, sym)
	assert.Equal(t, relocations, reparsed.Relocations[".data"])
}

func TestLinkReportsUnusedOverrides(t *testing.T) {
	var out bytes.Buffer
	log.Configure(&out, slog.LevelInfo, "text")
	t.Cleanup(func() { log.Configure(&bytes.Buffer{}, slog.LevelInfo, "text") })

	file := sampleObject(t)
	linker := New(file)
	linker.Place("nothing", 8)
	linker.Unit(".data").Zero(48)

	require.NoError(t, linker.Link())
	assert.Contains(t, out.String(), "Unused location entries: [nothing]")
}

func TestLinkUnknownSymbol(t *testing.T) {
	file := sampleObject(t)
	linker := New(file)

	unit := linker.Unit(".data")
	unit.Symbols[0] = "ghost"
	unit.Zero(8)

	var formatErr *elf.FormatError
	require.ErrorAs(t, linker.Link(), &formatErr)
	assert.Contains(t, formatErr.Reason, "ghost")
}

func TestLinkWithoutRelocationSection(t *testing.T) {
	file, err := elftest.New().Data(make([]byte, 8)).File()
	require.NoError(t, err)

	linker := New(file)
	unit := linker.Unit(".data")
	unit.Strings[0] = "x"
	linker.Strings.Add("x")
	unit.Zero(8)

	assert.ErrorIs(t, linker.Link(), elf.ErrNoSection)
}
