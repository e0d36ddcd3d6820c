package chunk

import "testing"

func TestBlockSizeForAdaptive(t *testing.T) {
	cases := []struct {
		size int64
		want int
	}{
		{1024, 512},
		{32*1024 - 1, 512},
		{32 * 1024, 2048},
		{256*1024 - 1, 2048},
		{256 * 1024, 8192},
		{1024*1024 - 1, 8192},
		{1024 * 1024, 16384},
		{8*1024*1024 - 1, 16384},
		{8 * 1024 * 1024, 65536},
		{64*1024*1024 - 1, 65536},
		{64 * 1024 * 1024, 131072},
		{128*1024*1024 - 1, 131072},
		{128 * 1024 * 1024, 262144},
		{200 * 1024 * 1024, 262144},
	}
	for _, c := range cases {
		if got := BlockSizeFor(c.size, true, 0); got != c.want {
			t.Errorf("BlockSizeFor(%d, true, 0) = %d, want %d", c.size, got, c.want)
		}
	}
}

func TestBlockSizeForNonAdaptive(t *testing.T) {
	if got := BlockSizeFor(200*1024*1024, false, 0); got != DefaultBlockSize {
		t.Errorf("BlockSizeFor non-adaptive with no fixed size = %d, want %d", got, DefaultBlockSize)
	}
	if got := BlockSizeFor(200*1024*1024, false, 4096); got != 4096 {
		t.Errorf("BlockSizeFor non-adaptive with fixed size = %d, want 4096", got)
	}
}

func TestBlockCountCeilDivision(t *testing.T) {
	if got := BlockCount(1000, 512); got != 2 {
		t.Errorf("BlockCount(1000, 512) = %d, want 2", got)
	}
	if got := BlockCount(1024, 512); got != 2 {
		t.Errorf("BlockCount(1024, 512) = %d, want 2", got)
	}
	if got := BlockCount(0, 512); got != 0 {
		t.Errorf("BlockCount(0, 512) = %d, want 0", got)
	}
}

func TestRangesCoverWholeFile(t *testing.T) {
	fileSize := int64(1000)
	blockSize := 300

	var total int64
	var lastIndex = -1
	for r := range Ranges(fileSize, blockSize) {
		if r.Index != lastIndex+1 {
			t.Fatalf("expected contiguous indices, got %d after %d", r.Index, lastIndex)
		}
		lastIndex = r.Index
		total += int64(r.Length)
	}
	if total != fileSize {
		t.Errorf("ranges covered %d bytes, want %d", total, fileSize)
	}
	if lastIndex+1 != BlockCount(fileSize, blockSize) {
		t.Errorf("yielded %d ranges, want %d", lastIndex+1, BlockCount(fileSize, blockSize))
	}
}

func TestRangesStopsEarlyWhenYieldReturnsFalse(t *testing.T) {
	count := 0
	for range Ranges(10000, 100) {
		count++
		if count == 3 {
			break
		}
	}
	if count != 3 {
		t.Errorf("expected early stop at 3, got %d", count)
	}
}

func TestSplitBufferMatchesRanges(t *testing.T) {
	data := make([]byte, 1000)
	for i := range data {
		data[i] = byte(i)
	}
	blocks := SplitBuffer(data, 300)
	if len(blocks) != BlockCount(1000, 300) {
		t.Fatalf("got %d blocks, want %d", len(blocks), BlockCount(1000, 300))
	}
	var total int
	for _, b := range blocks {
		total += len(b)
	}
	if total != len(data) {
		t.Errorf("blocks cover %d bytes, want %d", total, len(data))
	}
}

func TestUploadBufferSizeScalesForBigFiles(t *testing.T) {
	const defaultSize = 1 << 20

	if got := UploadBufferSize(defaultSize, 1024*1024); got != defaultSize {
		t.Errorf("UploadBufferSize under 64MiB = %d, want the unscaled default %d", got, defaultSize)
	}
	if got := UploadBufferSize(defaultSize, 100*1024*1024); got != defaultSize*2 {
		t.Errorf("UploadBufferSize in [64MiB,128MiB) = %d, want 2x default %d", got, defaultSize*2)
	}
	if got := UploadBufferSize(defaultSize, 200*1024*1024); got != defaultSize*4 {
		t.Errorf("UploadBufferSize >= 128MiB = %d, want 4x default %d", got, defaultSize*4)
	}
}
