package mesh

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

var ErrMalformedGambit = errors.New("malformed gambit neutral file")

// ReadGambit2D reads a Gambit neutral file holding 4-node quadrilaterals. Each
// boundary condition set becomes a part named after its lower cased label.
func ReadGambit2D(r io.Reader) (m *Mesh, err error) {
	var (
		reader = bufio.NewReader(r)
	)
	defer func() {
		if rec := recover(); rec != nil {
			if e, ok := rec.(error); ok {
				err = fmt.Errorf("%w: %w", ErrMalformedGambit, e)
			} else {
				err = fmt.Errorf("%w: %v", ErrMalformedGambit, rec)
			}
			m = nil
		}
	}()
	// Skip first six lines
	skipLines(6, reader)

	Nv, K, Nmats, Nbcs, Nsd := readHeader(reader)
	skipLines(2, reader)
	if Nsd != 2 {
		panic(fmt.Errorf("space dimensions %d, only 2D quads are read", Nsd))
	}
	m = &Mesh{
		NDim:   2,
		Coords: make([]float64, 2*Nv),
		Parts:  make(map[string][]int),
	}
	read2DVertices(Nv, reader, m.Coords)
	skipLines(2, reader)

	m.Elements = readQuads(K, Nv, reader)
	skipLines(1, reader)

	// Material groups are not used, each is a section header, the group
	// header, title, flags, then ten element numbers per line
	for i := 0; i < Nmats; i++ {
		skipLines(1, reader)
		_, elnum, _, _ := readMaterialHeader(reader)
		skipLines((elnum+9)/10, reader)
		skipLines(1, reader)
	}

	readBCS(Nbcs, reader, m)
	if err = m.Validate(); err != nil {
		panic(err)
	}
	return
}

func readHeader(reader *bufio.Reader) (Nv, K, Nmats, Nbcs, Nsd int) {
	/*
		Nv      // num nodes in mesh
		K       // num elements
		Nmats   // num material groups
		Nbcs    // num boundary groups
		Nsd;    // num space dimensions
	*/
	var (
		line   = getLine(reader)
		n, dum int
		err    error
	)
	nargs := 6
	if n, err = fmt.Sscanf(line, "%d %d %d %d %d %d", &Nv, &K, &Nmats, &Nbcs, &Nsd, &dum); err != nil || n < nargs {
		if err == nil && n < nargs {
			err = fmt.Errorf("read fewer than %d dimensions, read %d, line: %s", nargs, n, line)
		}
		panic(err)
	}
	return
}

func read2DVertices(Nv int, reader *bufio.Reader, coords []float64) {
	var (
		line   string
		err    error
		n, ind int
		x, y   float64
	)
	nargs := 3
	for i := 0; i < Nv; i++ {
		line = getLine(reader)
		if n, err = fmt.Sscanf(line, "%d %f %f", &ind, &x, &y); err != nil || n < nargs {
			if err == nil && n < nargs {
				err = fmt.Errorf("read fewer than required dimensions, read %d, need %d\n, line: %s", n, nargs, line)
			}
			panic(err)
		}
		if ind < 1 || ind > Nv {
			panic(fmt.Errorf("node index %d out of range, line: %s", ind, line))
		}
		coords[2*(ind-1)], coords[2*(ind-1)+1] = x, y
	}
}

func readQuads(K, Nv int, reader *bufio.Reader) (EToV [][4]int) {
	//-------------------------------------
	// Quadrilaterals in 2D:
	//-------------------------------------
	// ENDOFSECTION
	//    ELEMENTS/CELLS 2.4.6
	//      1  2  4        1       2       5       4
	var (
		line                       string
		err                        error
		n, ind, typ, nverts, nargs int
	)
	EToV = make([][4]int, K)
	for i := 0; i < K; i++ {
		line = getLine(reader)
		nargs = 7
		var nv [4]int
		if n, err = fmt.Sscanf(line, "%d %d %d %d %d %d %d", &ind, &typ, &nverts,
			&nv[0], &nv[1], &nv[2], &nv[3]); err != nil || n < nargs {
			if err == nil && n < nargs {
				err = fmt.Errorf("read fewer than required dimensions, read %d, need %d\n, line: %s", n, nargs, line)
			}
			panic(err)
		}
		if nverts != 4 || ind < 1 || ind > K {
			panic(fmt.Errorf("element %d with %d vertices is not a quad, line: %s", ind, nverts, line))
		}
		for j := 0; j < 4; j++ {
			if nv[j] < 1 || nv[j] > Nv {
				panic(fmt.Errorf("element %d references node %d, line: %s", ind, nv[j], line))
			}
			EToV[ind-1][j] = nv[j] - 1
		}
	}
	return
}

func readMaterialHeader(reader *bufio.Reader) (gn, elnum int, matval float64, title string) {
	/*
	   GROUP:           1 ELEMENTS:        977 MATERIAL:      1.000 NFLAGS:          0
	                     epsilon: 1.000
	          0
	*/
	var (
		line = getLine(reader)
		n    int
		err  error
	)
	nargs := 3
	if n, err = fmt.Sscanf(line, "GROUP: %d ELEMENTS: %d MATERIAL: %f", &gn, &elnum, &matval); err != nil || n < nargs {
		if err == nil && n < nargs {
			err = fmt.Errorf("read fewer than %d dimensions, read %d, line: %s", nargs, n, line)
		}
		panic(err)
	}
	title = strings.TrimSpace(getLine(reader))
	skipLines(1, reader)
	return
}

func readBCS(Nbcs int, reader *bufio.Reader, m *Mesh) {
	var (
		line, bctyp string
		err         error
		n           int
		bcid        int
		numfaces    int
	)
	for i := 0; i < Nbcs; i++ {
		skipLines(1, reader)
		line = getLine(reader)
		if n, err = fmt.Sscanf(line, "%s %d %d", &bctyp, &bcid, &numfaces); err != nil || n < 3 {
			if err == nil {
				err = fmt.Errorf("boundary header needs 3 fields, line: %s", line)
			}
			panic(err)
		}
		bctyp = strings.ToLower(strings.TrimSpace(bctyp))
		for f := 0; f < numfaces; f++ {
			line = getLine(reader)
			var kp1, typ, faceNumberp1 int
			if n, err = fmt.Sscanf(line, "%d %d %d", &kp1, &typ, &faceNumberp1); err != nil || n < 3 {
				if err == nil {
					err = fmt.Errorf("read fewer than 3 values, line: %s", line)
				}
				panic(err)
			}
			if kp1 < 1 || kp1 > len(m.Elements) || faceNumberp1 < 1 || faceNumberp1 > 4 {
				panic(fmt.Errorf("boundary face %d of element %d out of range", faceNumberp1, kp1))
			}
			m.AddFace(kp1-1, faceNumberp1-1, bctyp)
		}
		skipLines(1, reader)
	}
}

// WriteGambit2D writes the mesh in the layout ReadGambit2D reads, with all
// elements in one material group.
func WriteGambit2D(w io.Writer, m *Mesh, title string) (err error) {
	var (
		bw = bufio.NewWriter(w)
		p  = func(format string, a ...interface{}) {
			if err == nil {
				_, err = fmt.Fprintf(bw, format, a...)
			}
		}
		parts = m.PartNames()
	)
	p("        CONTROL INFO 2.4.6\n** GAMBIT NEUTRAL FILE\n%s\n", title)
	p("PROGRAM:                gocvfem     VERSION:  2.4.6\n\n")
	p("     NUMNP     NELEM     NGRPS    NBSETS     NDFCD     NDFVL\n")
	p("%10d%10d%10d%10d%10d%10d\n", m.NumNodes(), m.NumElements(), 1, len(parts), 2, 2)
	p("ENDOFSECTION\n   NODAL COORDINATES 2.4.6\n")
	for i := 0; i < m.NumNodes(); i++ {
		p("%10d%20.11e%20.11e\n", i+1, m.Coords[2*i], m.Coords[2*i+1])
	}
	p("ENDOFSECTION\n      ELEMENTS/CELLS 2.4.6\n")
	for k, conn := range m.Elements {
		p("%8d %2d %2d %8d%8d%8d%8d\n", k+1, 2, 4, conn[0]+1, conn[1]+1, conn[2]+1, conn[3]+1)
	}
	p("ENDOFSECTION\n       ELEMENT GROUP 2.4.6\n")
	p("GROUP:%11d ELEMENTS:%11d MATERIAL:%11d NFLAGS:%11d\n", 1, m.NumElements(), 2, 1)
	p("%32s\n%8d\n", "fluid", 0)
	for k := 0; k < m.NumElements(); k++ {
		p("%8d", k+1)
		if (k+1)%10 == 0 || k == m.NumElements()-1 {
			p("\n")
		}
	}
	p("ENDOFSECTION\n")
	sort.Strings(parts)
	for _, part := range parts {
		faces := m.Parts[part]
		p(" BOUNDARY CONDITIONS 2.4.6\n")
		p("%32s%8d%8d%8d%8d\n", part, 1, len(faces), 0, 6)
		for _, fi := range faces {
			f := m.Faces[fi]
			p("%10d%5d%5d\n", f.Element+1, 2, f.Ordinal+1)
		}
		p("ENDOFSECTION\n")
	}
	if err == nil {
		err = bw.Flush()
	}
	return
}

func getLine(reader *bufio.Reader) (line string) {
	var (
		err error
	)
	line, err = reader.ReadString('\n')
	if err != nil {
		if err == io.EOF {
			err = fmt.Errorf("early end of file")
		}
		panic(err)
	}
	line = strings.TrimRight(line, "\r\n")
	return
}

func skipLines(n int, reader *bufio.Reader) {
	for i := 0; i < n; i++ {
		getLine(reader)
	}
}
