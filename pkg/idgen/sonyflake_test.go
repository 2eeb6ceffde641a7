package idgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSonyflake_GenerateIncreasing(t *testing.T) {
	sf, err := NewSonyflake("node-a")
	require.NoError(t, err)

	var last uint64
	for i := 0; i < 100; i++ {
		id, err := sf.GenerateID()
		require.NoError(t, err)
		assert.Greater(t, id, last)
		last = id
	}
}

func TestSonyflake_GenerateBase62(t *testing.T) {
	sf, err := NewSonyflake("node-a")
	require.NoError(t, err)

	seen := make(map[string]struct{})
	var last string
	for i := 0; i < 100; i++ {
		id, err := sf.GenerateBase62()
		require.NoError(t, err)
		require.NotEmpty(t, id)
		_, dup := seen[id]
		require.False(t, dup)
		seen[id] = struct{}{}
		// 长度相同的情况下字典序递增
		if len(id) == len(last) {
			assert.Greater(t, id, last)
		}
		last = id
	}
}

func TestSonyflake_GenerateIDString(t *testing.T) {
	sf := MustHostSonyflake()
	a, err := sf.GenerateIDString()
	require.NoError(t, err)
	b, err := sf.GenerateIDString()
	require.NoError(t, err)
	assert.Len(t, a, 11)
	assert.NotEqual(t, a, b)
}

func TestMachineIDFrom(t *testing.T) {
	assert.Equal(t, machineIDFrom("host-1"), machineIDFrom("host-1"))
	assert.NotEqual(t, machineIDFrom("host-1"), machineIDFrom("host-2"))
}
