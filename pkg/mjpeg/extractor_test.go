package mjpeg

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func jpegFrame(payload string) []byte {
	var b bytes.Buffer
	b.Write(SOI)
	b.WriteString(payload)
	b.Write(EOI)
	return b.Bytes()
}

func TestExtractSingleFrame(t *testing.T) {
	input := jpegFrame("abc")

	frames, rest := Extract(input)

	assert.Len(t, frames, 1)
	assert.Equal(t, input, frames[0])
	assert.Empty(t, rest)
}

func TestExtractBackToBackFrames(t *testing.T) {
	f1 := jpegFrame("primeiro")
	f2 := jpegFrame("segundo")
	input := append(append([]byte{}, f1...), f2...)

	frames, rest := Extract(input)

	assert.Len(t, frames, 2)
	assert.Equal(t, f1, frames[0])
	assert.Equal(t, f2, frames[1])
	assert.Empty(t, rest)
}

func TestExtractIncompleteFrame(t *testing.T) {
	input := append(append([]byte("lixo"), SOI...), []byte("parcial")...)

	frames, rest := Extract(input)

	assert.Empty(t, frames)
	assert.Equal(t, append(append([]byte{}, SOI...), []byte("parcial")...), rest)
}

func TestExtractNoiseOnly(t *testing.T) {
	input := []byte{0x01, 0x02, 0x03, 0xFF, 0x00}

	frames, rest := Extract(input)

	assert.Empty(t, frames)
	assert.Equal(t, input, rest)
}

func TestExtractEOIBeforeSOIIgnored(t *testing.T) {
	f := jpegFrame("dados")
	input := append(append([]byte{}, EOI...), f...)

	frames, rest := Extract(input)

	assert.Len(t, frames, 1)
	assert.Equal(t, f, frames[0])
	assert.Empty(t, rest)
}

func TestExtractFrameSurroundedByNoise(t *testing.T) {
	f := jpegFrame("x")
	input := append([]byte("antes"), f...)
	input = append(input, []byte("depois")...)

	frames, rest := Extract(input)

	assert.Len(t, frames, 1)
	assert.Equal(t, f, frames[0])
	assert.Equal(t, []byte("depois"), rest)
}

func TestExtractReturnsIndependentCopies(t *testing.T) {
	input := jpegFrame("mutavel")

	frames, _ := Extract(input)
	assert.Len(t, frames, 1)

	// Corrompe o buffer de origem: o frame extraído não pode mudar
	for i := range input {
		input[i] = 0x00
	}

	assert.Equal(t, jpegFrame("mutavel"), frames[0])
}

// TestExtractChunkBoundaryInvariance verifica que fatiar o stream em qualquer
// fronteira de chunk produz o mesmo conjunto de frames que a extração inteira.
func TestExtractChunkBoundaryInvariance(t *testing.T) {
	var full []byte
	full = append(full, []byte("ruido-inicial")...)
	full = append(full, jpegFrame("frame-um")...)
	full = append(full, jpegFrame("frame-dois")...)
	full = append(full, 0xFF)
	full = append(full, jpegFrame("frame-tres")...)

	wantFrames, wantRest := Extract(append([]byte{}, full...))
	assert.Len(t, wantFrames, 3)

	for chunkSize := 1; chunkSize <= len(full); chunkSize++ {
		var got [][]byte
		var carry []byte

		for off := 0; off < len(full); off += chunkSize {
			end := off + chunkSize
			if end > len(full) {
				end = len(full)
			}
			carry = append(carry, full[off:end]...)

			frames, rest := Extract(carry)
			got = append(got, frames...)
			carry = append([]byte{}, rest...)
		}

		assert.Equal(t, wantFrames, got, "chunk_size=%d", chunkSize)
		assert.Equal(t, wantRest, carry, "chunk_size=%d", chunkSize)
	}
}

func TestFrameValid(t *testing.T) {
	valid := Frame{Data: jpegFrame("ok")}
	assert.True(t, valid.Valid())

	assert.False(t, Frame{Data: []byte("sem marcadores")}.Valid())
	assert.False(t, Frame{Data: SOI}.Valid())
	assert.False(t, Frame{}.Valid())
}

func TestFrameClone(t *testing.T) {
	original := Frame{Seq: 7, Data: jpegFrame("clone")}
	clone := original.Clone()

	assert.Equal(t, original.Seq, clone.Seq)
	assert.Equal(t, original.Data, clone.Data)

	original.Data[2] = 0x00
	assert.NotEqual(t, original.Data, clone.Data)
}

func BenchmarkExtract(b *testing.B) {
	payload := make([]byte, 64*1024)
	var input []byte
	input = append(input, SOI...)
	input = append(input, payload...)
	input = append(input, EOI...)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Extract(input)
	}
}
