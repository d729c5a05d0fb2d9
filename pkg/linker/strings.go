package linker

import "github.com/magicbird9803/Unsimplifier-master/pkg/elf"

// StringPool is the content of .rodata.str1.1: every distinct string
// once, null-terminated, in the order it was first added.
type StringPool struct {
	offsets map[string]elf.Pointer
	data    []byte
}

func NewStringPool() *StringPool {
	return &StringPool{offsets: make(map[string]elf.Pointer)}
}

func (p *StringPool) Add(s string) elf.Pointer {
	if off, ok := p.offsets[s]; ok {
		return off
	}
	off := elf.Pointer(len(p.data))
	p.data = append(p.data, s...)
	p.data = append(p.data, 0)
	p.offsets[s] = off
	return off
}

func (p *StringPool) Offset(s string) (elf.Pointer, bool) {
	off, ok := p.offsets[s]
	return off, ok
}

func (p *StringPool) Len() int {
	return len(p.offsets)
}

func (p *StringPool) Bytes() []byte {
	return p.data
}
