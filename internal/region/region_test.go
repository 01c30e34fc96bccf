package region

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(base uintptr, numPages int) Config {
	return Config{
		BaseAddress: base,
		NumPages:    numPages,
		PageSize:    os.Getpagesize(),
	}
}

func TestReserveAndClose(t *testing.T) {
	r, err := Reserve(testConfig(0x20000000, 4))
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, uintptr(0x20000000), r.BaseAddress())
	assert.Equal(t, 4, r.NumPages())
	assert.Equal(t, os.Getpagesize(), r.PageSize())
}

func TestPageOf(t *testing.T) {
	r, err := Reserve(testConfig(0x20100000, 4))
	require.NoError(t, err)
	defer r.Close()

	page, ok := r.PageOf(r.BaseAddress())
	require.True(t, ok)
	assert.Equal(t, 0, page)

	page, ok = r.PageOf(r.BaseAddress() + uintptr(r.PageSize()))
	require.True(t, ok)
	assert.Equal(t, 1, page)

	_, ok = r.PageOf(r.BaseAddress() - 1)
	assert.False(t, ok)

	_, ok = r.PageOf(r.BaseAddress() + uintptr(4*r.PageSize()))
	assert.False(t, ok)
}

func TestReadWritePageRoundTrip(t *testing.T) {
	r, err := Reserve(testConfig(0x20200000, 2))
	require.NoError(t, err)
	defer r.Close()

	data := make([]byte, r.PageSize())
	for i := range data {
		data[i] = byte(i)
	}

	require.NoError(t, r.WritePage(1, data))

	got, err := r.ReadPage(1)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestWritePageWrongSize(t *testing.T) {
	r, err := Reserve(testConfig(0x20300000, 1))
	require.NoError(t, err)
	defer r.Close()

	err = r.WritePage(0, []byte{1, 2, 3})
	assert.Error(t, err)
}

func TestReadWritePageOutOfRange(t *testing.T) {
	r, err := Reserve(testConfig(0x20400000, 1))
	require.NoError(t, err)
	defer r.Close()

	_, err = r.ReadPage(1)
	assert.Error(t, err)

	err = r.WritePage(-1, make([]byte, r.PageSize()))
	assert.Error(t, err)
}

func TestProtectOutOfRange(t *testing.T) {
	r, err := Reserve(testConfig(0x20500000, 1))
	require.NoError(t, err)
	defer r.Close()

	assert.Error(t, r.Protect(1, ProtNone))
}

func TestProtectRangeNoop(t *testing.T) {
	r, err := Reserve(testConfig(0x20600000, 2))
	require.NoError(t, err)
	defer r.Close()

	assert.NoError(t, r.ProtectRange(0, 0, ProtNone))
}

func TestProtectRangeOutOfBounds(t *testing.T) {
	r, err := Reserve(testConfig(0x20700000, 2))
	require.NoError(t, err)
	defer r.Close()

	assert.Error(t, r.ProtectRange(1, 2, ProtNone))
}

func TestReserveRejectsInvalidConfig(t *testing.T) {
	_, err := Reserve(Config{BaseAddress: 0x20800000, NumPages: 0, PageSize: os.Getpagesize()})
	assert.Error(t, err)

	_, err = Reserve(Config{BaseAddress: 0x20900000, NumPages: 1, PageSize: 0})
	assert.Error(t, err)
}
