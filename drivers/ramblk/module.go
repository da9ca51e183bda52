package ramblk

import "bytes"

const (
	pageSize = 65536
	maxPages = 65536

	sectionMemory = 0x05
	sectionExport = 0x07

	limitsMinMax = 0x01
	externMemory = 0x02

	memoryExport = "memory"
)

var wasmHeader = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

// pagesFor returns the number of wasm pages needed to hold n bytes.
func pagesFor(n uint64) uint32 {
	return uint32((n + pageSize - 1) / pageSize)
}

// memoryModule encodes a module with one fixed-size memory of the given
// page count, exported as "memory". It has no code.
func memoryModule(pages uint32) []byte {
	var mem bytes.Buffer
	writeLEB128u(&mem, 1)
	mem.WriteByte(limitsMinMax)
	writeLEB128u(&mem, pages)
	writeLEB128u(&mem, pages)

	var exp bytes.Buffer
	writeLEB128u(&exp, 1)
	writeLEB128u(&exp, uint32(len(memoryExport)))
	exp.WriteString(memoryExport)
	exp.WriteByte(externMemory)
	writeLEB128u(&exp, 0)

	var out bytes.Buffer
	out.Write(wasmHeader)
	writeSection(&out, sectionMemory, mem.Bytes())
	writeSection(&out, sectionExport, exp.Bytes())
	return out.Bytes()
}

func writeSection(w *bytes.Buffer, id byte, body []byte) {
	w.WriteByte(id)
	writeLEB128u(w, uint32(len(body)))
	w.Write(body)
}

// writeLEB128u writes an unsigned LEB128 value
func writeLEB128u(w *bytes.Buffer, v uint32) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		w.WriteByte(b)
		if v == 0 {
			break
		}
	}
}
