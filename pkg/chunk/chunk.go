// Package chunk implements the adaptive block-size chunker: it picks a
// block size for a file based on its total size, and splits a file's
// bytes into an ordered list of fixed-size blocks.
//
// Small files are chunked from an in-memory buffer; large files are
// read from a stream one block at a time and sent in batches of
// UploadBufferSize bytes, so memory use stays bounded regardless of
// file size.
package chunk

// sizeTier maps a file-size upper bound to the block size used for files
// up to that size.
type sizeTier struct {
	maxFileSize int64 // exclusive upper bound, or -1 for "no upper bound"
	blockSize   int
}

// adaptiveTable is the size->block-size table. Smaller files get smaller
// blocks (dedup granularity matters more relative to their size); very
// large files get large blocks (per-block overhead matters more than
// granularity).
var adaptiveTable = []sizeTier{
	{32 * 1024, 512},
	{256 * 1024, 2048},
	{1 * 1024 * 1024, 8192},
	{8 * 1024 * 1024, 16384},
	{64 * 1024 * 1024, 65536},
	{128 * 1024 * 1024, 131072},
	{-1, 262144},
}

// DefaultBlockSize is used when adaptive sizing is disabled in
// configuration.
const DefaultBlockSize = 16384

// BigFileThreshold is the file size at or above which the streaming
// big-file path is used instead of loading the whole file into memory.
const BigFileThreshold = 128 * 1024 * 1024

// BlockSizeFor returns the adaptive block size for a file of the given
// size. If adaptive is false, fixedSize is returned (falling back to
// DefaultBlockSize when fixedSize is unset).
func BlockSizeFor(fileSize int64, adaptive bool, fixedSize int) int {
	if !adaptive {
		if fixedSize > 0 {
			return fixedSize
		}
		return DefaultBlockSize
	}
	for _, tier := range adaptiveTable {
		if tier.maxFileSize < 0 || fileSize < tier.maxFileSize {
			return tier.blockSize
		}
	}
	return DefaultBlockSize
}

// UploadBufferSize returns the batching buffer size used to accumulate
// needed blocks before a bulk POST. It is the client-configured default
// for every file under 64MiB; at 64MiB it doubles, and at 128MiB it
// quadruples, so the batching threshold keeps pace with the much larger
// blocks the adaptive table picks for those files.
func UploadBufferSize(defaultSize int, fileSize int64) int {
	switch {
	case fileSize >= 128*1024*1024:
		return defaultSize * 4
	case fileSize >= 64*1024*1024:
		return defaultSize * 2
	default:
		return defaultSize
	}
}

// BlockCount returns the number of blocks a file of size fileSize splits
// into at the given block size: ceil(fileSize / blockSize).
func BlockCount(fileSize int64, blockSize int) int {
	if blockSize <= 0 {
		return 0
	}
	if fileSize <= 0 {
		return 0
	}
	return int((fileSize + int64(blockSize) - 1) / int64(blockSize))
}

// Range describes one block's position within a file: its index in the
// block-list, its byte offset, and its length (the last block in a file
// is typically shorter than blockSize).
type Range struct {
	Index  int
	Offset int64
	Length int
}

// Ranges returns an iterator (Go 1.23 range-over-func) over the block
// ranges of a file of size fileSize, chunked at blockSize.
//
// Usage:
//
//	for r := range chunk.Ranges(fileSize, blockSize) {
//	    block := data[r.Offset : r.Offset+int64(r.Length)]
//	}
func Ranges(fileSize int64, blockSize int) func(yield func(Range) bool) {
	return func(yield func(Range) bool) {
		if fileSize <= 0 || blockSize <= 0 {
			return
		}

		var offset int64
		index := 0
		for offset < fileSize {
			remaining := fileSize - offset
			length := int64(blockSize)
			if remaining < length {
				length = remaining
			}

			if !yield(Range{Index: index, Offset: offset, Length: int(length)}) {
				return
			}

			offset += length
			index++
		}
	}
}

// SplitBuffer splits an in-memory buffer into blocks at blockSize,
// returning the raw byte slices (sub-slices of data, no copy). Used on
// the small-file path where the whole file is already resident.
func SplitBuffer(data []byte, blockSize int) [][]byte {
	if blockSize <= 0 {
		return nil
	}
	blocks := make([][]byte, 0, BlockCount(int64(len(data)), blockSize))
	for r := range Ranges(int64(len(data)), blockSize) {
		blocks = append(blocks, data[r.Offset:r.Offset+int64(r.Length)])
	}
	return blocks
}
