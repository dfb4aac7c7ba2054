package archive

import (
	"fmt"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// zstdEncoder and zstdDecoder are reused across calls to avoid
// repeated initialization overhead. Both are safe for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
	)
	if err != nil {
		panic("archive: zstd encoder initialization failed: " + err.Error())
	}

	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("archive: zstd decoder initialization failed: " + err.Error())
	}
}

// CompressJournal replaces a journal segment with a zstd-compressed
// copy at path+".zst", removing the original. A missing segment is not
// an error; the session simply journaled nothing. Returns the path of
// the compressed file, or "" when there was nothing to compress.
func CompressJournal(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read journal segment: %w", err)
	}

	out := path + ".zst"
	compressed := zstdEncoder.EncodeAll(data, nil)
	if err := os.WriteFile(out, compressed, 0o644); err != nil {
		return "", fmt.Errorf("write compressed segment: %w", err)
	}
	if err := os.Remove(path); err != nil {
		return "", fmt.Errorf("remove journal segment: %w", err)
	}
	return out, nil
}

// ReadJournal reads a journal segment, decompressing it when the path
// points at a compressed archive.
func ReadJournal(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read journal segment: %w", err)
	}
	if !strings.HasSuffix(path, ".zst") {
		return data, nil
	}
	out, err := zstdDecoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	return out, nil
}
