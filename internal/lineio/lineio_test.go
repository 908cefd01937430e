package lineio

import (
	"errors"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, input string, limit int) ([]string, int) {
	t.Helper()
	var got []string
	oversized, err := Each(strings.NewReader(input), limit, func(line []byte) {
		got = append(got, string(line))
	})
	require.NoError(t, err)
	return got, oversized
}

func TestEachSplitsLines(t *testing.T) {
	got, oversized := collect(t, "first\r\nsecond\n\nthird", 0)
	assert.Equal(t, []string{"first", "second", "", "third"}, got)
	assert.Zero(t, oversized)
}

func TestEachEmptyInput(t *testing.T) {
	got, oversized := collect(t, "", 0)
	assert.Empty(t, got)
	assert.Zero(t, oversized)
}

func TestEachSkipsOversizedLine(t *testing.T) {
	// Larger than the internal read buffer so the line spans several reads
	long := strings.Repeat("x", 200*1024)
	input := "before\n" + long + "\nafter\n"

	got, oversized := collect(t, input, 100*1024)
	assert.Equal(t, []string{"before", "after"}, got)
	assert.Equal(t, 1, oversized)
}

func TestEachOversizedFinalLine(t *testing.T) {
	got, oversized := collect(t, "ok\n"+strings.Repeat("y", 50), 10)
	assert.Equal(t, []string{"ok"}, got)
	assert.Equal(t, 1, oversized)
}

func TestEachLineAtLimit(t *testing.T) {
	line := strings.Repeat("z", 10)
	got, oversized := collect(t, line+"\n", 10)
	assert.Equal(t, []string{line}, got)
	assert.Zero(t, oversized)
}

func TestEachReadError(t *testing.T) {
	boom := errors.New("boom")
	_, err := Each(iotest.ErrReader(boom), 0, func([]byte) {})
	assert.ErrorIs(t, err, boom)
}
