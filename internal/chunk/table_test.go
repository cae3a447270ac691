package chunk

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuilderAddSegmentComputesLengthsByOffsetDelta(t *testing.T) {
	b := NewBuilder()
	// Three chunks at relative offsets 0, 100, 250; sectionEnd closes the last.
	err := b.AddSegment(1, []int64{0, 100, 250}, []bool{false, true, false}, 300)
	require.NoError(t, err)

	table := b.Build()
	require.Equal(t, 3, table.Len())

	d0, ok := table.Get(0)
	require.True(t, ok)
	require.Equal(t, uint32(100), d0.Length)
	require.False(t, d0.Compressed())

	d1, ok := table.Get(1)
	require.True(t, ok)
	require.Equal(t, uint32(150), d1.Length)
	require.True(t, d1.Compressed())

	d2, ok := table.Get(2)
	require.True(t, ok)
	require.Equal(t, uint32(50), d2.Length)
}

func TestBuilderAddSegmentRejectsNonPositiveLength(t *testing.T) {
	b := NewBuilder()
	// Two entries claiming the same offset collapse to a zero-length chunk.
	err := b.AddSegment(1, []int64{0, 0}, []bool{false, false}, 100)
	require.Error(t, err)
}

func TestBuilderMirrorMustMatchPrimaryCount(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.AddSegment(1, []int64{0, 100}, []bool{false, false}, 200))

	err := b.AddMirrorSegment(1, []int64{0, 100, 150}, []bool{false, false, false}, 200, 2)
	require.Error(t, err, "table2 entry count disagreeing with table must be rejected")

	table := b.Build()
	_, ok := table.GetMirror(0)
	require.False(t, ok, "a rejected mirror must not be recorded")
}

func TestBuilderMirrorFlagsFromTable2(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.AddSegment(1, []int64{0, 100}, []bool{false, true}, 200))
	require.NoError(t, b.AddMirrorSegment(1, []int64{0, 100}, []bool{false, true}, 200, 2))

	table := b.Build()
	mirror, ok := table.GetMirror(1)
	require.True(t, ok)
	require.True(t, mirror.Flags&FromTable2 != 0)
	require.Equal(t, uint32(100), mirror.Length)
}

func TestBuilderMultiSegmentKeepsMirrorsAligned(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.AddSegment(1, []int64{0, 50}, []bool{false, false}, 100))
	require.NoError(t, b.AddMirrorSegment(1, []int64{0, 50}, []bool{false, false}, 100, 2))

	// Segment 2 carries only a table, no table2 (AddMirrorSegment skipped).
	require.NoError(t, b.AddSegment(2, []int64{0}, []bool{false}, 60))

	require.NoError(t, b.AddSegment(3, []int64{0, 20}, []bool{true, false}, 80))
	require.NoError(t, b.AddMirrorSegment(3, []int64{0, 20}, []bool{true, false}, 80, 2))

	table := b.Build()
	require.Equal(t, 5, table.Len())

	_, ok := table.GetMirror(0)
	require.True(t, ok)
	_, ok = table.GetMirror(1)
	require.True(t, ok)
	_, ok = table.GetMirror(2) // segment 2's single chunk has no mirror
	require.False(t, ok)
	_, ok = table.GetMirror(3)
	require.True(t, ok)
	_, ok = table.GetMirror(4)
	require.True(t, ok)
}

func TestTableGetOutOfRange(t *testing.T) {
	table := NewBuilder().Build()
	_, ok := table.Get(0)
	require.False(t, ok)
	_, ok = table.GetMirror(-1)
	require.False(t, ok)
}
