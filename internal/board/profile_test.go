package board

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smazurov/audiocard/internal/audioerr"
	"github.com/smazurov/audiocard/internal/dai"
	"github.com/smazurov/audiocard/internal/routing"
)

func TestShuttle_IsValid(t *testing.T) {
	p := Shuttle()
	require.NoError(t, p.Validate())

	policies, err := p.LinkPolicies()
	require.NoError(t, err)
	require.Len(t, policies, 3)

	assert.Equal(t, dai.KindHiFi, policies[0].Kind)
	assert.Equal(t, dai.FormatI2S|dai.CodecSlave, policies[0].Framing())
	assert.Equal(t, &dai.Path{DAC: 1, DAP: 1}, policies[0].Path)

	assert.Equal(t, dai.KindBTSCO, policies[1].Kind)
	assert.Equal(t, dai.FormatDSPA|dai.CodecMaster, policies[1].Framing())
	assert.Equal(t, &dai.Path{DAC: 2, DAP: 4}, policies[1].Path)

	assert.Equal(t, dai.KindSPDIF, policies[2].Kind)
	assert.Nil(t, policies[2].Path)
}

func TestShuttle_RoutingGraphBuilds(t *testing.T) {
	p := Shuttle()
	table, err := routing.NewTable(p.Routing.Widgets, p.Routing.Routes, nil)
	require.NoError(t, err)
	require.NoError(t, table.ApplyDefaults(p.RoutingDefaults()))

	bias, ok := table.Pin(routing.PinMicBias2)
	require.True(t, ok)
	assert.True(t, bias.Forced)
	assert.True(t, bias.Powered)

	mono, ok := table.Pin("MONO")
	require.True(t, ok)
	assert.True(t, mono.NotConnected)
	assert.False(t, mono.Powered)

	assert.ElementsMatch(t, []string{"HPL", "HPR"}, table.Sources(routing.PinHeadphoneJack))
}

func TestShuttle_JackConfig(t *testing.T) {
	p := Shuttle()
	cfg := p.JackDetector()
	assert.False(t, cfg.Invert)
	assert.Equal(t, 150*time.Millisecond, cfg.Debounce)
	assert.False(t, p.NotifyJack())
}

func TestProfile_RoundTripYAML(t *testing.T) {
	data, err := Shuttle().Marshal()
	require.NoError(t, err)

	p, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, Shuttle(), p)
}

func TestParse_CustomProfile(t *testing.T) {
	doc := `
name: devboard
jack:
  pin: GPIO17
  invert: true
  reporter: notify
  switch: h2w
links:
  - name: main
    kind: hifi
    format: i2s
    master: true
clock_table:
  - {mclk: 12288000, rate: 48000}
routing:
  widgets:
    - {name: Headphone Jack, kind: headphone}
    - {name: Internal Speaker, kind: speaker}
  enabled: [Internal Speaker]
`
	p, err := Parse([]byte(doc))
	require.NoError(t, err)

	assert.True(t, p.NotifyJack())
	assert.True(t, p.JackDetector().Invert)
	assert.Equal(t, []int{12288000}, p.Table().Candidates(48000))
	assert.Empty(t, p.Table().Candidates(44100))
	assert.Equal(t, []string{routing.PinInternalSpeaker}, p.RoutingDefaults().Enabled)
}

func TestParse_MissingPlatformData(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"no sense pin", "name: x\nlinks: [{name: a, kind: spdif}]\n"},
		{"no links", "name: x\njack: {pin: P}\n"},
		{"unknown kind", "jack: {pin: P}\nlinks: [{name: a, kind: pcm}]\n"},
		{"missing format", "jack: {pin: P}\nlinks: [{name: a, kind: hifi}]\n"},
		{"bad format", "jack: {pin: P}\nlinks: [{name: a, kind: hifi, format: left_j}]\n"},
		{"duplicate link", "jack: {pin: P}\nlinks: [{name: a, kind: spdif}, {name: a, kind: spdif}]\n"},
		{"bad reporter", "jack: {pin: P, reporter: uevent}\nlinks: [{name: a, kind: spdif}]\n"},
		{"bad clock entry", "jack: {pin: P}\nlinks: [{name: a, kind: spdif}]\nclock_table: [{mclk: 0, rate: 8000}]\n"},
		{"not yaml", "jack: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.True(t, audioerr.Is(err, audioerr.ErrMissingPlatformData), "got %v", err)
		})
	}
}

func TestLoad(t *testing.T) {
	p, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "shuttle", p.Name)

	path := filepath.Join(t.TempDir(), "board.yaml")
	data, err := Shuttle().Marshal()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	p, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "shuttle", p.Name)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, audioerr.Is(err, audioerr.ErrMissingPlatformData))
}
