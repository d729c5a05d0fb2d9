package elf

import (
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// MappedFile is a read-only view of a container on disk.
type MappedFile struct {
	Data    []byte
	mmapped bool
}

// Open maps a file read-only, falling back to ReadAt when mmap is not
// available. The mapping must be released with Close; parsed containers
// do not reference it.
func Open(path string) (*MappedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	size := int(stat.Size())
	if size < EhdrSize {
		return nil, &FormatError{Offset: uint64(size), Reason: "file is smaller than the ELF header"}
	}

	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err == nil {
		return &MappedFile{Data: data, mmapped: true}, nil
	}

	data = make([]byte, size)
	if _, err := f.ReadAt(data, 0); err != nil && err != io.EOF {
		return nil, err
	}
	return &MappedFile{Data: data}, nil
}

func (m *MappedFile) Close() error {
	if m.mmapped && m.Data != nil {
		err := unix.Munmap(m.Data)
		m.Data = nil
		return err
	}
	m.Data = nil
	return nil
}
