package frame

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(t *testing.T) *Frame {
	t.Helper()
	f := New(Sequential(2))
	require.NoError(t, f.AddText("brand", []string{"Hyundai", "Maruti"}))
	require.NoError(t, f.AddFloat("engine_displacement", []float64{1200, math.NaN()}))
	require.NoError(t, f.AddInt("seats", []int64{5, 7}))
	return f
}

func TestFrame_AddRejectsBadColumns(t *testing.T) {
	f := sample(t)

	err := f.AddInt("seats", []int64{1, 2})
	assert.ErrorIs(t, err, ErrDuplicateColumn)

	err = f.AddText("owner", []string{"First Owner"})
	assert.ErrorIs(t, err, ErrLength)
}

func TestColumn_Label(t *testing.T) {
	f := sample(t)

	disp, ok := f.Column("engine_displacement")
	require.True(t, ok)
	assert.Equal(t, "1200.0", disp.Label(0))
	assert.Equal(t, "nan", disp.Label(1))
	assert.True(t, disp.HasNaN())

	seats, _ := f.Column("seats")
	assert.Equal(t, "7", seats.Label(1))
	assert.Equal(t, 7.0, seats.Float(1))
	assert.False(t, seats.HasNaN())
}

func TestFrame_Select(t *testing.T) {
	f := sample(t)

	sel, err := f.Select("seats", "brand")
	require.NoError(t, err)
	assert.Equal(t, []string{"seats", "brand"}, sel.Names())
	assert.Equal(t, f.Index(), sel.Index())

	_, err = f.Select("brand", "trim", "series")
	require.ErrorIs(t, err, ErrMissingColumn)
	var mc *MissingColumnsError
	require.ErrorAs(t, err, &mc)
	assert.Equal(t, []string{"trim", "series"}, mc.Columns)
}

func TestConcat(t *testing.T) {
	left := sample(t)
	right := New(Sequential(2))
	require.NoError(t, right.AddInt("FS_owner", []int64{1, 0}))

	joined, err := Concat(left, right)
	require.NoError(t, err)
	assert.Equal(t, []string{"brand", "engine_displacement", "seats", "FS_owner"}, joined.Names())

	shifted := New([]int{1, 0})
	require.NoError(t, shifted.AddInt("TF_owner", []int64{0, 1}))
	_, err = Concat(left, shifted)
	assert.ErrorIs(t, err, ErrIndexMismatch)

	_, err = Concat(left, left)
	assert.ErrorIs(t, err, ErrDuplicateColumn)
}

func TestFrame_SliceAndRows(t *testing.T) {
	f := sample(t)

	tail := f.Slice(1, 2)
	assert.Equal(t, []int{1}, tail.Index())

	rows := tail.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, "Maruti", rows[0]["brand"])
	assert.Nil(t, rows[0]["engine_displacement"])
	assert.Equal(t, int64(7), rows[0]["seats"])
}
