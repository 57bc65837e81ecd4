package mesh

import (
	"errors"
	"fmt"
	"sort"
)

var ErrUnknownField = errors.New("unknown field")

type EntityRank uint8

const (
	NodeRank EntityRank = iota
	ElementRank
	SideRank
)

var EntityRankNames = map[EntityRank]string{
	NodeRank:    "node",
	ElementRank: "element",
	SideRank:    "side",
}

func (er EntityRank) String() string { return EntityRankNames[er] }

// Field is a flat array of NComp values per entity.
type Field struct {
	Name  string
	Rank  EntityRank
	NComp int
	Data  []float64
}

func (f *Field) Entity(i int) []float64 {
	return f.Data[i*f.NComp : (i+1)*f.NComp]
}

// GatherNodes copies the values at nodes into dst, node major.
func (f *Field) GatherNodes(nodes []int, dst []float64) {
	if len(dst) != len(nodes)*f.NComp {
		panic(fmt.Errorf("gather of %s: dst has %d values, need %d", f.Name, len(dst), len(nodes)*f.NComp))
	}
	for i, n := range nodes {
		copy(dst[i*f.NComp:(i+1)*f.NComp], f.Entity(n))
	}
}

func (f *Field) Fill(val float64) {
	for i := range f.Data {
		f.Data[i] = val
	}
}

type FieldStore struct {
	counts map[EntityRank]int
	fields map[string]*Field
}

func NewFieldStore(numNodes, numElements, numSides int) (fs *FieldStore) {
	fs = &FieldStore{
		counts: map[EntityRank]int{
			NodeRank:    numNodes,
			ElementRank: numElements,
			SideRank:    numSides,
		},
		fields: make(map[string]*Field),
	}
	return
}

func NewMeshFieldStore(m *Mesh) *FieldStore {
	return NewFieldStore(m.NumNodes(), m.NumElements(), m.NumFaces())
}

// Register returns the named field, creating it zero filled. Registering an
// existing name with a different shape panics.
func (fs *FieldStore) Register(name string, rank EntityRank, nComp int) (f *Field) {
	var ok bool
	if f, ok = fs.fields[name]; ok {
		if f.Rank != rank || f.NComp != nComp {
			panic(fmt.Errorf("field %s is registered as %s x %d, requested %s x %d",
				name, f.Rank, f.NComp, rank, nComp))
		}
		return
	}
	f = &Field{
		Name:  name,
		Rank:  rank,
		NComp: nComp,
		Data:  make([]float64, fs.counts[rank]*nComp),
	}
	fs.fields[name] = f
	return
}

func (fs *FieldStore) Get(name string) (f *Field, err error) {
	var ok bool
	if f, ok = fs.fields[name]; !ok {
		err = fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	return
}

func (fs *FieldStore) MustGet(name string) (f *Field) {
	var err error
	if f, err = fs.Get(name); err != nil {
		panic(err)
	}
	return
}

func (fs *FieldStore) Names() (names []string) {
	for name := range fs.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return
}
