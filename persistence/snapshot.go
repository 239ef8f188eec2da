package persistence

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/vexdb/vexdb/distance"
	"github.com/vexdb/vexdb/internal/hnsw"
	"github.com/vexdb/vexdb/internal/vectorstore"
)

// Metadata describes an index well enough to reconstruct an empty one
// before restoring state into it. It is the source of truth on load; any
// caller-supplied hints are overridden by it.
type Metadata struct {
	Dimension      int
	Metric         distance.Metric
	VectorStorage  bool
	M              int
	EFConstruction int
	MaxLayers      int
	Seed           int64
}

// Snapshot is the complete serializable state of an index.
type Snapshot struct {
	Meta     Metadata
	Graph    *hnsw.Dump
	IDToSlot map[uint64]uint32
	NextSlot uint32

	// Vectors is nil for fast-insert indexes.
	Vectors []vectorstore.SlotVector

	// QuantizerMins/Maxs are nil when the quantizer was untrained.
	QuantizerMins []float32
	QuantizerMaxs []float32
	Codes         map[uint32][]int8
}

// Options configure Save.
type Options struct {
	// Codec compresses payloads. Defaults to CodecZstd.
	Codec Codec
}

// Save writes the snapshot into dir, creating it if needed. Each file is
// written atomically; a failed Save may leave a mix of old and new files,
// which Load will reject via checksums only if individually corrupt, so
// callers should save into a fresh directory and swap when that matters.
func Save(dir string, snap *Snapshot, optFns ...func(o *Options)) error {
	opts := Options{Codec: CodecZstd}
	for _, fn := range optFns {
		fn(&opts)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("persistence: mkdir: %w", err)
	}

	if err := writeFile(filepath.Join(dir, metaFile), CodecNone, encodeMeta(snap.Meta)); err != nil {
		return err
	}
	if err := writeFile(filepath.Join(dir, mappingFile), opts.Codec, encodeMapping(snap.IDToSlot, snap.NextSlot)); err != nil {
		return err
	}

	graphPayload, err := encodeGraph(snap.Graph)
	if err != nil {
		return err
	}
	if err := writeFile(filepath.Join(dir, graphFile), opts.Codec, graphPayload); err != nil {
		return err
	}

	if snap.Vectors != nil {
		if err := writeFile(filepath.Join(dir, vectorsFile), opts.Codec, encodeVectors(snap.Vectors)); err != nil {
			return err
		}
	}
	if snap.QuantizerMins != nil {
		if err := writeFile(filepath.Join(dir, quantizerFile), opts.Codec, encodeQuantizer(snap)); err != nil {
			return err
		}
	}

	return nil
}

// Load reads a snapshot from dir. The vectors and quantizer files are
// optional; their absence yields nil fields.
func Load(dir string) (*Snapshot, error) {
	snap := &Snapshot{}

	metaPayload, err := readFile(filepath.Join(dir, metaFile))
	if err != nil {
		return nil, err
	}
	if snap.Meta, err = decodeMeta(metaPayload); err != nil {
		return nil, err
	}

	mappingPayload, err := readFile(filepath.Join(dir, mappingFile))
	if err != nil {
		return nil, err
	}
	if snap.IDToSlot, snap.NextSlot, err = decodeMapping(mappingPayload); err != nil {
		return nil, err
	}

	graphPayload, err := readFile(filepath.Join(dir, graphFile))
	if err != nil {
		return nil, err
	}
	if snap.Graph, err = decodeGraph(graphPayload); err != nil {
		return nil, err
	}

	vectorsPayload, err := readFile(filepath.Join(dir, vectorsFile))
	switch {
	case err == nil:
		if snap.Vectors, err = decodeVectors(vectorsPayload, snap.Meta.Dimension); err != nil {
			return nil, err
		}
	case os.IsNotExist(err):
	default:
		return nil, err
	}

	quantPayload, err := readFile(filepath.Join(dir, quantizerFile))
	switch {
	case err == nil:
		if err = decodeQuantizer(quantPayload, snap); err != nil {
			return nil, err
		}
	case os.IsNotExist(err):
	default:
		return nil, err
	}

	return snap, nil
}

func encodeMeta(m Metadata) []byte {
	w := newWriter(64)
	w.u32(uint32(m.Dimension))
	w.u8(uint8(m.Metric))
	w.bool(m.VectorStorage)
	w.u32(uint32(m.M))
	w.u32(uint32(m.EFConstruction))
	w.u32(uint32(m.MaxLayers))
	w.i64(m.Seed)
	return w.bytes()
}

func decodeMeta(payload []byte) (Metadata, error) {
	r := newReader(payload)

	var m Metadata
	m.Dimension = int(r.u32())

	metric, err := distance.MetricFromByte(r.u8())
	if err != nil {
		return Metadata{}, err
	}
	m.Metric = metric

	m.VectorStorage = r.bool()
	m.M = int(r.u32())
	m.EFConstruction = int(r.u32())
	m.MaxLayers = int(r.u32())
	m.Seed = r.i64()

	return m, r.err()
}

// encodeMapping writes the forward map, the derived reverse map and the
// next-slot counter. The reverse map is redundant on disk but keeps the
// format self-describing for external readers.
func encodeMapping(idToSlot map[uint64]uint32, nextSlot uint32) []byte {
	w := newWriter(16 + len(idToSlot)*24)

	w.u64(uint64(len(idToSlot)))
	for id, slot := range idToSlot {
		w.u64(id)
		w.u32(slot)
	}

	w.u64(uint64(len(idToSlot)))
	for id, slot := range idToSlot {
		w.u32(slot)
		w.u64(id)
	}

	w.u32(nextSlot)
	return w.bytes()
}

func decodeMapping(payload []byte) (map[uint64]uint32, uint32, error) {
	r := newReader(payload)

	n := r.u64()
	idToSlot := make(map[uint64]uint32, n)
	for i := uint64(0); i < n && r.err() == nil; i++ {
		id := r.u64()
		idToSlot[id] = r.u32()
	}

	// Reverse section is derivable; read past it.
	rn := r.u64()
	for i := uint64(0); i < rn && r.err() == nil; i++ {
		r.u32()
		r.u64()
	}

	nextSlot := r.u32()
	return idToSlot, nextSlot, r.err()
}

func encodeGraph(d *hnsw.Dump) ([]byte, error) {
	w := newWriter(1024)

	w.u32(d.EntryPoint)
	w.i32(int32(d.MaxLevel))

	w.u64(uint64(len(d.Nodes)))
	for _, n := range d.Nodes {
		w.u32(n.Slot)
		w.u32(uint32(len(n.Vector)))
		for _, f := range n.Vector {
			w.f32(f)
		}
		w.u32(uint32(len(n.Conns)))
		for _, layer := range n.Conns {
			w.u32(uint32(len(layer)))
			for _, c := range layer {
				w.u32(c)
			}
		}
	}

	tomb, err := d.Tombstones.ToBytes()
	if err != nil {
		return nil, fmt.Errorf("persistence: serialize tombstones: %w", err)
	}
	w.u64(uint64(len(tomb)))
	w.raw(tomb)

	return w.bytes(), nil
}

func decodeGraph(payload []byte) (*hnsw.Dump, error) {
	r := newReader(payload)

	d := &hnsw.Dump{}
	d.EntryPoint = r.u32()
	d.MaxLevel = int(r.i32())

	n := r.u64()
	d.Nodes = make([]hnsw.NodeDump, 0, n)
	for i := uint64(0); i < n && r.err() == nil; i++ {
		var nd hnsw.NodeDump
		nd.Slot = r.u32()

		vl := r.u32()
		nd.Vector = make([]float32, vl)
		for j := range nd.Vector {
			nd.Vector[j] = r.f32()
		}

		layers := r.u32()
		nd.Conns = make([][]uint32, layers)
		for l := range nd.Conns {
			cl := r.u32()
			nd.Conns[l] = make([]uint32, cl)
			for c := range nd.Conns[l] {
				nd.Conns[l][c] = r.u32()
			}
		}
		d.Nodes = append(d.Nodes, nd)
	}

	tombLen := r.u64()
	tomb := r.raw(int(tombLen))
	if r.err() != nil {
		return nil, r.err()
	}

	d.Tombstones = roaring.New()
	if len(tomb) > 0 {
		if err := d.Tombstones.UnmarshalBinary(tomb); err != nil {
			return nil, fmt.Errorf("persistence: tombstones: %w", err)
		}
	}

	return d, nil
}

func encodeVectors(vecs []vectorstore.SlotVector) []byte {
	dim := 0
	if len(vecs) > 0 {
		dim = len(vecs[0].Vector)
	}
	w := newWriter(8 + len(vecs)*(4+dim*4))

	w.u64(uint64(len(vecs)))
	for _, sv := range vecs {
		w.u32(sv.Slot)
		for _, f := range sv.Vector {
			w.f32(f)
		}
	}
	return w.bytes()
}

func decodeVectors(payload []byte, dimension int) ([]vectorstore.SlotVector, error) {
	r := newReader(payload)

	n := r.u64()
	vecs := make([]vectorstore.SlotVector, 0, n)
	for i := uint64(0); i < n && r.err() == nil; i++ {
		sv := vectorstore.SlotVector{
			Slot:   r.u32(),
			Vector: make([]float32, dimension),
		}
		for j := range sv.Vector {
			sv.Vector[j] = r.f32()
		}
		vecs = append(vecs, sv)
	}
	return vecs, r.err()
}

func encodeQuantizer(snap *Snapshot) []byte {
	dim := len(snap.QuantizerMins)
	w := newWriter(8 + dim*8 + len(snap.Codes)*(4+dim))

	w.u32(uint32(dim))
	for _, f := range snap.QuantizerMins {
		w.f32(f)
	}
	for _, f := range snap.QuantizerMaxs {
		w.f32(f)
	}

	w.u64(uint64(len(snap.Codes)))
	for slot, code := range snap.Codes {
		w.u32(slot)
		for _, c := range code {
			w.u8(uint8(c))
		}
	}
	return w.bytes()
}

func decodeQuantizer(payload []byte, snap *Snapshot) error {
	r := newReader(payload)

	dim := int(r.u32())
	snap.QuantizerMins = make([]float32, dim)
	for i := range snap.QuantizerMins {
		snap.QuantizerMins[i] = r.f32()
	}
	snap.QuantizerMaxs = make([]float32, dim)
	for i := range snap.QuantizerMaxs {
		snap.QuantizerMaxs[i] = r.f32()
	}

	n := r.u64()
	snap.Codes = make(map[uint32][]int8, n)
	for i := uint64(0); i < n && r.err() == nil; i++ {
		slot := r.u32()
		code := make([]int8, dim)
		for j := range code {
			code[j] = int8(r.u8())
		}
		snap.Codes[slot] = code
	}

	return r.err()
}
