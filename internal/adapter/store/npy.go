package store

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// The embedding matrix is kept in NumPy's .npy format (version 1.0) as a
// C-ordered little-endian float32 array of shape (N, D).

var npyMagic = []byte("\x93NUMPY")

var (
	reDescr   = regexp.MustCompile(`'descr':\s*'([^']*)'`)
	reFortran = regexp.MustCompile(`'fortran_order':\s*(True|False)`)
	reShape   = regexp.MustCompile(`'shape':\s*\(([^)]*)\)`)
)

func writeMatrix(w io.Writer, rows [][]float32) error {
	dim := 0
	if len(rows) > 0 {
		dim = len(rows[0])
	}

	header := fmt.Sprintf("{'descr': '<f4', 'fortran_order': False, 'shape': (%d, %d), }", len(rows), dim)
	// magic(6) + version(2) + header length(2) + header, padded to 64 bytes
	// and terminated by a newline.
	total := len(npyMagic) + 4 + len(header) + 1
	if pad := total % 64; pad != 0 {
		header += strings.Repeat(" ", 64-pad)
	}
	header += "\n"

	bw := bufio.NewWriter(w)
	bw.Write(npyMagic)
	bw.Write([]byte{1, 0})
	binary.Write(bw, binary.LittleEndian, uint16(len(header)))
	bw.WriteString(header)

	buf := make([]byte, 4*dim)
	for i, row := range rows {
		if len(row) != dim {
			return fmt.Errorf("row %d has dimension %d, expected %d", i, len(row), dim)
		}
		for j, v := range row {
			binary.LittleEndian.PutUint32(buf[j*4:], math.Float32bits(v))
		}
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// readMatrix decodes an npy stream of size bytes. The declared shape must
// fit in the bytes that follow the header.
func readMatrix(r io.Reader, size int64) ([][]float32, error) {
	br := bufio.NewReader(r)
	remaining := size - int64(len(npyMagic)+2)

	prefix := make([]byte, len(npyMagic)+2)
	if _, err := io.ReadFull(br, prefix); err != nil {
		return nil, fmt.Errorf("read npy magic: %w", err)
	}
	if string(prefix[:len(npyMagic)]) != string(npyMagic) {
		return nil, errors.New("not an npy file")
	}

	var headerLen int
	switch major := prefix[len(npyMagic)]; major {
	case 1:
		var n uint16
		if err := binary.Read(br, binary.LittleEndian, &n); err != nil {
			return nil, err
		}
		headerLen = int(n)
		remaining -= 2
	case 2, 3:
		var n uint32
		if err := binary.Read(br, binary.LittleEndian, &n); err != nil {
			return nil, err
		}
		headerLen = int(n)
		remaining -= 4
	default:
		return nil, fmt.Errorf("unsupported npy version %d", major)
	}

	if int64(headerLen) > remaining {
		return nil, fmt.Errorf("npy header length %d exceeds file size", headerLen)
	}
	remaining -= int64(headerLen)

	header := make([]byte, headerLen)
	if _, err := io.ReadFull(br, header); err != nil {
		return nil, fmt.Errorf("read npy header: %w", err)
	}
	rows, dim, wide, err := parseHeader(string(header))
	if err != nil {
		return nil, err
	}

	width := 4
	if wide {
		width = 8
	}
	if rows > 0 && dim == 0 {
		return nil, fmt.Errorf("npy shape (%d, 0) has empty rows", rows)
	}
	if dim > 0 && int64(rows) > remaining/(int64(dim)*int64(width)) {
		return nil, fmt.Errorf("npy shape (%d, %d) needs more data than the %d bytes present", rows, dim, remaining)
	}
	buf := make([]byte, width*dim)
	matrix := make([][]float32, rows)
	for i := range matrix {
		if _, err := io.ReadFull(br, buf); err != nil {
			return nil, fmt.Errorf("read npy row %d: %w", i, err)
		}
		row := make([]float32, dim)
		for j := range row {
			if wide {
				row[j] = float32(math.Float64frombits(binary.LittleEndian.Uint64(buf[j*8:])))
			} else {
				row[j] = math.Float32frombits(binary.LittleEndian.Uint32(buf[j*4:]))
			}
		}
		for j, v := range row {
			if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
				return nil, fmt.Errorf("npy row %d column %d is not finite", i, j)
			}
		}
		matrix[i] = row
	}
	return matrix, nil
}

// parseHeader accepts '<f4' and '<f8' C-ordered arrays of rank 1 or 2.
// A rank-1 array is only valid when empty.
func parseHeader(header string) (rows, dim int, wide bool, err error) {
	m := reDescr.FindStringSubmatch(header)
	if m == nil {
		return 0, 0, false, errors.New("npy header has no descr")
	}
	switch m[1] {
	case "<f4":
	case "<f8":
		wide = true
	default:
		return 0, 0, false, fmt.Errorf("unsupported npy dtype %s", m[1])
	}

	if m := reFortran.FindStringSubmatch(header); m == nil || m[1] != "False" {
		return 0, 0, false, errors.New("fortran-ordered npy arrays are not supported")
	}

	m = reShape.FindStringSubmatch(header)
	if m == nil {
		return 0, 0, false, errors.New("npy header has no shape")
	}
	var dims []int
	for _, part := range strings.Split(m[1], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return 0, 0, false, fmt.Errorf("bad npy shape %q", m[1])
		}
		dims = append(dims, n)
	}

	switch {
	case len(dims) == 2:
		return dims[0], dims[1], wide, nil
	case len(dims) == 1 && dims[0] == 0:
		return 0, 0, wide, nil
	default:
		return 0, 0, false, fmt.Errorf("expected a 2-d npy array, got shape (%s)", m[1])
	}
}
