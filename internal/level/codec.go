package level

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/klauspost/compress/zstd"

	"github.com/annel0/mmo-levelgen/internal/spatial"
	"github.com/annel0/mmo-levelgen/internal/vec"
)

// Бинарный формат уровня: плоская little-endian структура, сжатая zstd.
// Индексы (terrain, adjacency) не сериализуются и перестраиваются
// при декодировании.

const (
	codecMagic   = uint32(0x4C564C47) // "LVLG"
	codecVersion = uint16(1)
)

// EncodeLevel сериализует уровень в сжатый бинарный формат
func EncodeLevel(l *Level) ([]byte, error) {
	var buf bytes.Buffer
	w := func(v any) {
		binary.Write(&buf, binary.LittleEndian, v) //nolint:errcheck // bytes.Buffer не возвращает ошибок
	}

	w(codecMagic)
	w(codecVersion)

	w(l.bounds.Min.X)
	w(l.bounds.Min.Y)
	w(l.bounds.Max.X)
	w(l.bounds.Max.Y)
	w(l.scale)

	w(uint32(len(l.points)))
	for _, p := range l.points {
		w(p.X)
		w(p.Y)
	}

	w(uint32(len(l.edges)))
	for _, e := range l.edges {
		w(uint32(e.A))
		w(uint32(e.B))
		w(e.Weight)
	}

	w(uint32(l.height.w))
	w(uint32(l.height.h))
	w(uint16(len(l.biomes)))
	for _, v := range l.height.cells {
		w(v)
	}
	for _, b := range l.biomes {
		for _, v := range b.cells {
			w(v)
		}
	}
	for _, v := range l.radius.cells {
		w(v)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("level: init zstd encoder: %w", err)
	}
	defer enc.Close()

	return enc.EncodeAll(buf.Bytes(), nil), nil
}

// DecodeLevel восстанавливает уровень из сжатого бинарного формата.
// Пространственный индекс и списки смежности перестраиваются заново.
func DecodeLevel(data []byte) (*Level, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("level: init zstd decoder: %w", err)
	}
	defer dec.Close()

	raw, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("level: decompress: %w", err)
	}

	r := bytes.NewReader(raw)
	read := func(v any) error {
		return binary.Read(r, binary.LittleEndian, v)
	}

	var magic uint32
	var version uint16
	if err := read(&magic); err != nil {
		return nil, fmt.Errorf("level: read header: %w", err)
	}
	if magic != codecMagic {
		return nil, fmt.Errorf("level: bad magic 0x%08X", magic)
	}
	if err := read(&version); err != nil {
		return nil, fmt.Errorf("level: read header: %w", err)
	}
	if version != codecVersion {
		return nil, fmt.Errorf("level: unsupported format version %d", version)
	}

	l := &Level{}
	if err := read(&l.bounds.Min.X); err != nil {
		return nil, fmt.Errorf("level: read bounds: %w", err)
	}
	if err := read(&l.bounds.Min.Y); err != nil {
		return nil, fmt.Errorf("level: read bounds: %w", err)
	}
	if err := read(&l.bounds.Max.X); err != nil {
		return nil, fmt.Errorf("level: read bounds: %w", err)
	}
	if err := read(&l.bounds.Max.Y); err != nil {
		return nil, fmt.Errorf("level: read bounds: %w", err)
	}
	if err := read(&l.scale); err != nil {
		return nil, fmt.Errorf("level: read scale: %w", err)
	}
	if l.scale <= 0 || math.IsNaN(l.scale) {
		return nil, fmt.Errorf("level: corrupt scale %g", l.scale)
	}

	var pointCount uint32
	if err := read(&pointCount); err != nil {
		return nil, fmt.Errorf("level: read point count: %w", err)
	}
	l.points = make([]vec.Vec2Float, pointCount)
	for i := range l.points {
		if err := read(&l.points[i].X); err != nil {
			return nil, fmt.Errorf("level: read point %d: %w", i, err)
		}
		if err := read(&l.points[i].Y); err != nil {
			return nil, fmt.Errorf("level: read point %d: %w", i, err)
		}
	}

	var edgeCount uint32
	if err := read(&edgeCount); err != nil {
		return nil, fmt.Errorf("level: read edge count: %w", err)
	}
	l.edges = make([]graphEdge, edgeCount)
	for i := range l.edges {
		var a, b uint32
		if err := read(&a); err != nil {
			return nil, fmt.Errorf("level: read edge %d: %w", i, err)
		}
		if err := read(&b); err != nil {
			return nil, fmt.Errorf("level: read edge %d: %w", i, err)
		}
		if err := read(&l.edges[i].Weight); err != nil {
			return nil, fmt.Errorf("level: read edge %d: %w", i, err)
		}
		if a >= pointCount || b >= pointCount {
			return nil, fmt.Errorf("level: edge %d references node out of range", i)
		}
		l.edges[i].A = int(a)
		l.edges[i].B = int(b)
	}

	var gw, gh uint32
	var channels uint16
	if err := read(&gw); err != nil {
		return nil, fmt.Errorf("level: read grid size: %w", err)
	}
	if err := read(&gh); err != nil {
		return nil, fmt.Errorf("level: read grid size: %w", err)
	}
	if err := read(&channels); err != nil {
		return nil, fmt.Errorf("level: read biome channel count: %w", err)
	}
	if channels != uint16(BiomeCount) {
		return nil, fmt.Errorf("level: biome channel count %d does not match build (%d)", channels, BiomeCount)
	}

	readGrid := func(name string) (grid, error) {
		g := newGrid(int(gw), int(gh), 0)
		if err := read(&g.cells); err != nil {
			return grid{}, fmt.Errorf("level: read %s field: %w", name, err)
		}
		return g, nil
	}

	if l.height, err = readGrid("height"); err != nil {
		return nil, err
	}
	l.biomes = make([]grid, channels)
	for i := range l.biomes {
		if l.biomes[i], err = readGrid(Biome(i).String()); err != nil {
			return nil, err
		}
	}
	if l.radius, err = readGrid("radius"); err != nil {
		return nil, err
	}

	l.terrain = spatial.NewPointIndex(16.0)
	for i, p := range l.points {
		l.terrain.Insert(uint64(i), p)
	}
	l.creatures = spatial.NewPointIndex(16.0)

	l.adjacency = make([][]int, pointCount)
	for _, e := range l.edges {
		l.adjacency[e.A] = append(l.adjacency[e.A], e.B)
		l.adjacency[e.B] = append(l.adjacency[e.B], e.A)
	}

	return l, nil
}
