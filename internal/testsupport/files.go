package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// mp4Header is the smallest prefix content sniffers recognise as video/mp4.
var mp4Header = []byte{
	0x00, 0x00, 0x00, 0x20, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm',
	0x00, 0x00, 0x02, 0x00, 'i', 's', 'o', 'm', 'i', 's', 'o', '2',
	'a', 'v', 'c', '1', 'm', 'p', '4', '1',
}

// WriteFile fills path with size bytes of filler. A size <= 0 writes one byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()
	if size <= 0 {
		size = 1
	}
	writeWithPrefix(t, path, nil, size)
}

// WriteVideo writes a file that starts with an MP4 signature and is padded to size.
func WriteVideo(t testing.TB, path string, size int64) {
	t.Helper()
	if size < int64(len(mp4Header)) {
		size = int64(len(mp4Header))
	}
	writeWithPrefix(t, path, mp4Header, size)
}

// MP4Bytes returns an in-memory MP4-looking payload of at least size bytes.
func MP4Bytes(size int) []byte {
	if size < len(mp4Header) {
		size = len(mp4Header)
	}
	out := make([]byte, size)
	copy(out, mp4Header)
	for i := len(mp4Header); i < size; i++ {
		out[i] = 0x42
	}
	return out
}

func writeWithPrefix(t testing.TB, path string, prefix []byte, size int64) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	if len(prefix) > 0 {
		if _, err := f.Write(prefix); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	const chunkSize = 32 * 1024
	buf := make([]byte, chunkSize)
	for i := range buf {
		buf[i] = 0x42
	}
	remaining := size - int64(len(prefix))
	for remaining > 0 {
		n := min(int64(chunkSize), remaining)
		if _, err := f.Write(buf[:n]); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		remaining -= n
	}
}
