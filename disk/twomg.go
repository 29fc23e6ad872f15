package disk

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
)

/*
	2MG (2IMG) container: a 64 byte little endian header in front of a
	DOS or ProDOS ordered image.
*/

const (
	PREAMBLE_2MG_SIZE   = 0x40
	TWOMG_FORMAT_DOS    = 0
	TWOMG_FORMAT_PRODOS = 1
	TWOMG_FORMAT_NIB    = 2
	TWOMG_FLAG_LOCKED   = 0x80000000
	TWOMG_CREATOR       = "DBAS"
)

var MAGIC_2MG = []byte("2IMG")

type Header2MG struct {
	Magic      [4]byte
	Creator    [4]byte
	HeaderSize uint16
	Version    uint16
	Format     uint32
	Flags      uint32
	Blocks     uint32
	DataStart  uint32
	DataLength uint32
	_          [32]byte
}

func (h *Header2MG) Locked() bool {
	return h.Flags&TWOMG_FLAG_LOCKED != 0
}

func parse2MG(data []byte) (*Header2MG, []byte, error) {

	if len(data) < PREAMBLE_2MG_SIZE || !bytes.Equal(data[:4], MAGIC_2MG) {
		return nil, nil, fmt.Errorf("%w: no 2IMG magic", ErrBadImage)
	}
	h := &Header2MG{}
	if err := binary.Read(bytes.NewReader(data[:PREAMBLE_2MG_SIZE]), binary.LittleEndian, h); err != nil {
		return nil, nil, err
	}

	start, size := int(h.DataStart), int(h.DataLength)
	if start < PREAMBLE_2MG_SIZE || start > len(data) {
		return nil, nil, fmt.Errorf("%w: 2IMG data offset %d", ErrBadImage, start)
	}
	if size == 0 || start+size > len(data) {
		size = len(data) - start
	}
	return h, data[start : start+size], nil
}

// From2MG unwraps a 2MG image held in memory.
func From2MG(name string, data []byte) (*Disk, error) {

	h, body, err := parse2MG(data)
	if err != nil {
		return nil, err
	}

	var d *Disk
	switch {
	case h.Format == TWOMG_FORMAT_NIB:
		return nil, fmt.Errorf("%w: nibble 2IMG images are not supported", ErrBadImage)
	case len(body) == GeometryApple140K.Size() && h.Format == TWOMG_FORMAT_PRODOS:
		d, err = FromBytes(name, body, GeometryApple140K, SectorOrderProDOS.Order())
	case len(body) == GeometryApple140K.Size():
		d, err = FromBytes(name, body, GeometryApple140K, SectorOrderDOS33.Order())
	case len(body) == GeometryApple800K.Size():
		d, err = FromBytes(name, body, GeometryApple800K, nil)
	default:
		return nil, fmt.Errorf("%w: 2IMG with %d bytes of data", ErrBadImage, len(body))
	}
	if err != nil {
		return nil, err
	}
	d.SetWriteProtect(h.Locked())
	return d, nil
}

func Load2MG(fs afero.Fs, path string) (*Disk, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, err
	}
	d, err := From2MG(filepath.Base(path), data)
	if err != nil {
		return nil, err
	}
	d.Filename = path
	return d, nil
}

// Save2MG writes d with a fresh header. 140K images are stored in ProDOS
// order.
func Save2MG(fs afero.Fs, path string, d *Disk) error {

	size := d.Geometry().Size()
	h := Header2MG{
		HeaderSize: PREAMBLE_2MG_SIZE,
		Version:    1,
		Format:     TWOMG_FORMAT_PRODOS,
		Blocks:     uint32(size / 512),
		DataStart:  PREAMBLE_2MG_SIZE,
		DataLength: uint32(size),
	}
	copy(h.Magic[:], MAGIC_2MG)
	copy(h.Creator[:], TWOMG_CREATOR)
	if d.WriteProtect() {
		h.Flags |= TWOMG_FLAG_LOCKED
	}

	order := []int(nil)
	if size == STD_DISK_BYTES {
		order = SectorOrderProDOS.Order()
	}

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, &h); err != nil {
		return err
	}
	buf.Write(d.Bytes(order))
	if err := afero.WriteFile(fs, path, buf.Bytes(), 0644); err != nil {
		return err
	}
	d.ClearModify()
	return nil
}
