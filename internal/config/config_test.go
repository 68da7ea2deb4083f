package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestReadOverridesOnlyNamedFields(t *testing.T) {
	src := `
sampleRate: 44100
tempo: 96
channels:
  - frequency: 220
    lpg:
      mode: vcf
  - {}
  - fold:
      amount: 0.8
      curve: sine
playheads:
  - division: 8n
    timeMultiplier: 2
`
	c, err := Read(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	if c.SampleRate != 44100 || c.Tempo != 96 {
		t.Fatalf("top level = %d / %v", c.SampleRate, c.Tempo)
	}
	ch0 := c.Channels[0]
	if ch0.Frequency != 220 || ch0.LPG.Mode != "vcf" {
		t.Fatalf("channel 0 = %+v", ch0)
	}
	// untouched fields keep their defaults
	def := Default().Channels[0]
	if ch0.LPG.Level != def.LPG.Level || ch0.Envelope != def.Envelope || ch0.Position != def.Position {
		t.Fatalf("channel 0 lost defaults: %+v", ch0)
	}
	if c.Channels[1] != Default().Channels[1] {
		t.Fatal("empty channel entry changed defaults")
	}
	if c.Channels[2].Fold.Curve != "sine" || c.Channels[2].Fold.Drive != def.Fold.Drive {
		t.Fatalf("channel 2 fold = %+v", c.Channels[2].Fold)
	}
	if c.Playheads[0].Division != "8n" || c.Playheads[0].TimeMultiplier != 2 || c.Playheads[1].TimeMultiplier != 1 {
		t.Fatalf("playheads = %+v", c.Playheads)
	}
}

func TestReadEmpty(t *testing.T) {
	c, err := Read(strings.NewReader(""))
	if err != nil {
		t.Fatal(err)
	}
	if c.SampleRate != Default().SampleRate {
		t.Fatal("empty file did not yield defaults")
	}
}

func TestReadRejects(t *testing.T) {
	cases := []struct {
		name, src, want string
	}{
		{"unknown key", "tempoo: 100\n", "tempoo"},
		{"too many channels", "channels: [{}, {}, {}, {}, {}]\n", "at most 4 channels"},
		{"bad tempo", "tempo: 500\n", "tempo 500"},
		{"bad mode", "channels: [{lpg: {mode: vcx}}]\n", `unknown mode "vcx"`},
		{"bad model", "channels: [{filter: {model: 292}}]\n", "unknown model 292"},
		{"bad scale", "quantizer: {scale: klingon}\n", "klingon"},
		{"bad grid", "matrix: {grid: [[1, 0], [0, 1]]}\n", "4 rows"},
		{"bad backend", "backend: jack\n", "jack"},
		{"bad division", "playheads: [{division: 3n}]\n", "3n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tc.src))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want mention of %q", err, tc.want)
			}
		})
	}
}

func TestValidateJoinsProblems(t *testing.T) {
	c := Default()
	c.SampleRate = 10
	c.Channels[3].Envelope.Sustain = 2
	err := c.Validate()
	if err == nil {
		t.Fatal("invalid config accepted")
	}
	for _, want := range []string{"sampleRate 10", "channel 3: envelope"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("%q missing %q", err, want)
		}
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	c := Default()
	c.Channels[2].Frequency = 330
	c.Playheads[1].Division = "4n"
	data, err := c.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "rack.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	back, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if back.Channels != c.Channels || back.Playheads != c.Playheads {
		t.Fatal("round trip changed the rack")
	}
}

func TestCloneDetachesGrid(t *testing.T) {
	c := Default()
	c.Matrix.Grid = [][]float64{{1, 0, 0, 0}, {0, 1, 0, 0}, {0, 0, 1, 0}, {0, 0, 0, 1}}
	cp := c.Clone()
	c.Matrix.Grid[0][1] = 5
	c.Channels[0].Frequency = 1
	if cp.Matrix.Grid[0][1] != 0 || cp.Channels[0].Frequency == 1 {
		t.Fatal("clone shares state with the original")
	}
	if err := cp.Validate(); err != nil {
		t.Fatalf("clone invalid: %v", err)
	}
}

func TestLevel(t *testing.T) {
	c := Default()
	c.LogLevel = "debug"
	if c.Level() != slog.LevelDebug {
		t.Fatalf("level = %v", c.Level())
	}
	c.LogLevel = "nope"
	if c.Level() != slog.LevelInfo {
		t.Fatalf("fallback level = %v", c.Level())
	}
}
