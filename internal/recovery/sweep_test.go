package recovery

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitNULSplitsEntries(t *testing.T) {
	data := []byte("FOO=bar\x00BAZ=qux\x00")
	var got [][]byte
	rest := data
	for len(rest) > 0 {
		advance, token, err := splitNUL(rest, false)
		assert.NoError(t, err)
		if advance == 0 {
			break
		}
		got = append(got, token)
		rest = rest[advance:]
	}
	assert.Len(t, got, 2)
	assert.True(t, bytes.Equal(got[0], []byte("FOO=bar")))
	assert.True(t, bytes.Equal(got[1], []byte("BAZ=qux")))
}

func TestSplitNULHandlesTrailingDataAtEOF(t *testing.T) {
	advance, token, err := splitNUL([]byte("TAIL"), true)
	assert.NoError(t, err)
	assert.Equal(t, 4, advance)
	assert.Equal(t, "TAIL", string(token))
}

func TestSplitNULRequestsMoreDataWithoutNUL(t *testing.T) {
	advance, token, err := splitNUL([]byte("PARTIAL"), false)
	assert.NoError(t, err)
	assert.Zero(t, advance)
	assert.Nil(t, token)
}

func TestReadRecordIDMissingProcessReturnsFalse(t *testing.T) {
	procDir = t.TempDir()
	_, ok := readRecordID(999999)
	assert.False(t, ok)
}
