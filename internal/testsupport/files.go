package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// FakeFFprobeScript reports one video and one audio stream at 800 kb/s.
// Inputs whose name contains "hevc" report hevc, everything else h264.
const FakeFFprobeScript = `#!/bin/sh
if [ "$1" = "-version" ]; then echo "ffprobe version fake"; exit 0; fi
for last; do :; done
case "$last" in
  *hevc*) codec=hevc ;;
  *) codec=h264 ;;
esac
printf '{"streams":[{"index":0,"codec_type":"video","codec_name":"%s","nb_frames":"10"},{"index":1,"codec_type":"audio","codec_name":"aac"}],"format":{"duration":"1.0","bit_rate":"800000"}}\n' "$codec"
`

// FakeFFmpegScript writes "enc" to the last argument. Inputs whose name
// contains "broken" fail with status 1. "-version" prints a version line.
const FakeFFmpegScript = `#!/bin/sh
if [ "$1" = "-version" ]; then echo "ffmpeg version fake"; exit 0; fi
for last; do :; done
input=""
prev=""
for arg; do
  if [ "$prev" = "-i" ]; then input="$arg"; fi
  prev="$arg"
done
echo "Input #0, from '$input':" >&2
case "$input" in
  *broken*) echo "Invalid data found when processing input" >&2; exit 1 ;;
esac
printf 'enc' > "$last"
printf 'frame=10\nprogress=end\n'
exit 0
`

// FakeEncodedSize is the number of bytes FakeFFmpegScript writes.
const FakeEncodedSize = 3

// WriteExecutable writes script to dir/name with mode 0755 and returns the path.
func WriteExecutable(t testing.TB, dir, name, script string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	target := filepath.Join(dir, name)
	if err := os.WriteFile(target, []byte(script), 0o755); err != nil {
		t.Fatalf("write %s: %v", target, err)
	}
	return target
}

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 creates an empty file.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	const chunkSize = 32 * 1024
	buf := make([]byte, chunkSize)
	for i := range buf {
		buf[i] = 0x42
	}

	remaining := size
	for remaining > 0 {
		toWrite := min(int64(chunkSize), remaining)
		if _, err := f.Write(buf[:toWrite]); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		remaining -= toWrite
	}
}
