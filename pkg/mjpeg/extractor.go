package mjpeg

import "bytes"

// Extract varre o buffer acumulado em busca de frames JPEG completos.
//
// Retorna zero ou mais frames (cópias independentes, em ordem de chegada) e o
// restante não consumido do buffer. Um frame partido na fronteira de chunks
// nunca é perdido: o restante começa no último SOI sem EOI correspondente.
// Um EOI antes de qualquer SOI é ignorado.
func Extract(buf []byte) (frames [][]byte, rest []byte) {
	for {
		start := bytes.Index(buf, SOI)
		if start == -1 {
			// Nenhum início de frame: tudo é restante (ruído ou cauda de chunk)
			return frames, buf
		}

		end := bytes.Index(buf[start+len(SOI):], EOI)
		if end == -1 {
			// Frame incompleto: preserva do SOI em diante para o próximo chunk
			return frames, buf[start:]
		}
		end += start + len(SOI) + len(EOI)

		frame := make([]byte, end-start)
		copy(frame, buf[start:end])
		frames = append(frames, frame)

		buf = buf[end:]
	}
}
