package mjpeg

import (
	"bytes"
	"time"
)

var (
	// SOI e EOI são os marcadores de início e fim de uma imagem JPEG.
	SOI = []byte{0xFF, 0xD8}
	EOI = []byte{0xFF, 0xD9}
)

// Frame representa um frame JPEG completo extraído do stream upstream.
// Data é sempre uma cópia independente do buffer de leitura.
type Frame struct {
	Seq       uint64
	Data      []byte
	Timestamp time.Time
}

// Valid verifica os marcadores SOI/EOI do frame.
func (f Frame) Valid() bool {
	return len(f.Data) >= 4 &&
		bytes.HasPrefix(f.Data, SOI) &&
		bytes.HasSuffix(f.Data, EOI)
}

// Size retorna o tamanho do frame em bytes.
func (f Frame) Size() int {
	return len(f.Data)
}

// Clone retorna uma cópia profunda do frame.
func (f Frame) Clone() Frame {
	data := make([]byte, len(f.Data))
	copy(data, f.Data)
	return Frame{Seq: f.Seq, Data: data, Timestamp: f.Timestamp}
}
