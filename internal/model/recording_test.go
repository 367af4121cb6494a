package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStream_SortByTime_Stable(t *testing.T) {
	s := &Stream{
		Channels: []string{"v"},
		Time:     []Timestamp{300, 100, 200, 100},
		Values:   [][]float64{{3}, {1}, {2}, {1.5}},
	}
	s.SortByTime()

	assert.Equal(t, []Timestamp{100, 100, 200, 300}, s.Time)
	assert.Equal(t, [][]float64{{1}, {1.5}, {2}, {3}}, s.Values)
}

func TestStream_ChannelIndex(t *testing.T) {
	s := &Stream{Channels: []string{"acc_x", "acc_y", "acc_z"}}
	i, ok := s.ChannelIndex("acc_y")
	assert.True(t, ok)
	assert.Equal(t, 1, i)

	_, ok = s.ChannelIndex("acc_w")
	assert.False(t, ok)
}

func TestStream_Bounds(t *testing.T) {
	var empty *Stream
	_, _, ok := empty.Bounds()
	assert.False(t, ok)

	s := &Stream{Time: []Timestamp{5, 9}, Values: [][]float64{{0}, {0}}}
	first, last, ok := s.Bounds()
	assert.True(t, ok)
	assert.Equal(t, Timestamp(5), first)
	assert.Equal(t, Timestamp(9), last)
}

func TestSegmentID(t *testing.T) {
	assert.Equal(t, "side_1_drilling", SegmentID("side_1", "drilling"))
	assert.Equal(t, "cutting", SegmentID("", "cutting"))
}

func TestParseDocType(t *testing.T) {
	dt, ok := ParseDocType("process")
	assert.True(t, ok)
	assert.Equal(t, DocTypeProcess, dt)

	dt, ok = ParseDocType("data_qh")
	assert.True(t, ok)
	assert.Equal(t, DocTypeData, dt)

	_, ok = ParseDocType("other")
	assert.False(t, ok)
}
