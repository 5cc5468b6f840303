package perf

import (
	"testing"

	"github.com/mscrnt/thermalctl/pkg/ec/ectest"
	"github.com/mscrnt/thermalctl/pkg/regmap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	for _, m := range Modes() {
		got, err := ParseMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}

	got, err := ParseMode(" Performance ")
	require.NoError(t, err)
	assert.Equal(t, Performance, got)

	_, err = ParseMode("turbo")
	assert.Error(t, err)
}

func TestSetModeEncodings(t *testing.T) {
	tests := []struct {
		mode Mode
		regs regmap.Map
		want byte
	}{
		{Default, regmap.Legacy, 0xC1},
		{Balanced, regmap.Legacy, 0xC1},
		{Performance, regmap.Legacy, 0xC4},
		{Cool, regmap.Legacy, 0xC2},
		{Performance, regmap.Gen2, 0x01},
		{Cool, regmap.Gen2, 0x02},
	}

	for _, tt := range tests {
		t.Run(tt.regs.Generation+"/"+tt.mode.String(), func(t *testing.T) {
			mem := ectest.New()
			c := NewController(mem, tt.regs, nil)

			require.True(t, c.SetMode(tt.mode))
			assert.Equal(t, tt.want, mem.Get(tt.regs.PerfMode.Addr))
		})
	}
}

func TestModeDecoding(t *testing.T) {
	mem := ectest.New()
	c := NewController(mem, regmap.Legacy, nil)

	mem.Set(regmap.Legacy.PerfMode.Addr, 0xC4)
	assert.Equal(t, Performance, c.Mode())

	mem.Set(regmap.Legacy.PerfMode.Addr, 0xC2)
	assert.Equal(t, Cool, c.Mode())

	mem.Set(regmap.Legacy.PerfMode.Addr, 0xC1)
	assert.Equal(t, Default, c.Mode())

	// unknown bytes fall back to Balanced
	mem.Set(regmap.Legacy.PerfMode.Addr, 0x7F)
	assert.Equal(t, Balanced, c.Mode())
}

func TestModeRoundTrip(t *testing.T) {
	for _, regs := range []regmap.Map{regmap.Legacy, regmap.Gen2} {
		for _, m := range []Mode{Default, Performance, Cool} {
			t.Run(regs.Generation+"/"+m.String(), func(t *testing.T) {
				mem := ectest.New()
				c := NewController(mem, regs, nil)

				require.True(t, c.SetMode(m))
				assert.Equal(t, m, c.Mode())
			})
		}
	}

	// Balanced is written as the default encoding and reads back as Default
	mem := ectest.New()
	c := NewController(mem, regmap.Gen2, nil)
	require.True(t, c.SetMode(Balanced))
	assert.Equal(t, Default, c.Mode())
}

func TestSetModeUnknown(t *testing.T) {
	mem := ectest.New()
	c := NewController(mem, regmap.Legacy, nil)

	assert.False(t, c.SetMode(Mode(42)))
	assert.Empty(t, mem.Writes())
}

func TestThermalPowerLimit(t *testing.T) {
	mem := ectest.New()
	c := NewController(mem, regmap.Legacy, nil)

	for n := 0; n <= regmap.MaxThermalPowerLimit; n++ {
		require.True(t, c.SetThermalPowerLimit(n))
		got, ok := c.ThermalPowerLimit()
		require.True(t, ok)
		assert.Equal(t, n, got)
	}

	mem.Reset()
	assert.False(t, c.SetThermalPowerLimit(6))
	assert.False(t, c.SetThermalPowerLimit(-1))
	assert.Empty(t, mem.Writes())

	mem.Set(regmap.Legacy.ThermalPowerLimit.Addr, 9)
	_, ok := c.ThermalPowerLimit()
	assert.False(t, ok)
}

func TestTCCOffset(t *testing.T) {
	c := NewController(ectest.New(), regmap.Legacy, nil)

	assert.ErrorIs(t, c.SetTCCOffset(10), ErrUnsupported)

	st := c.TCCOffset()
	assert.False(t, st.Supported)
	assert.Equal(t, 0, st.Offset)
	assert.Equal(t, DefaultTjMax, st.TjMax)
	assert.Equal(t, 100, st.EffectiveLimit())

	c.TjMax = 105
	assert.Equal(t, 105, c.TCCOffset().EffectiveLimit())

	assert.Equal(t, 90, TCCOffsetStatus{Supported: true, Offset: 15, TjMax: 105}.EffectiveLimit())
}

func TestUnavailableEC(t *testing.T) {
	c := NewController(ectest.NewUnavailable(), regmap.Legacy, nil)

	assert.False(t, c.SetMode(Performance))
	assert.Equal(t, Balanced, c.Mode())
	assert.False(t, c.SetThermalPowerLimit(3))
	_, ok := c.ThermalPowerLimit()
	assert.False(t, ok)
}
