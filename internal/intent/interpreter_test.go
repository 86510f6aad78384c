package intent

import (
	"errors"
	"testing"

	"github.com/voxahq/voxa/pkg/types"
)

func TestInterpret_PlayWithArtist(t *testing.T) {
	t.Parallel()

	it := New()

	in, err := it.Interpret("play Thriller by Michael Jackson")
	if err != nil {
		t.Fatalf("Interpret: unexpected error: %v", err)
	}
	play, ok := in.(Play)
	if !ok {
		t.Fatalf("intent = %T, want Play", in)
	}
	if len(play.Entities) != 2 {
		t.Fatalf("entities = %+v, want song + artist", play.Entities)
	}
	if play.Entities[0].Kind != types.EntitySong || play.Entities[0].RawText != "thriller" {
		t.Errorf("song entity = %+v", play.Entities[0])
	}
	if play.Entities[1].Kind != types.EntityArtist || play.Entities[1].RawText != "michael jackson" {
		t.Errorf("artist entity = %+v", play.Entities[1])
	}
}

func TestInterpret_PlayWithArtistAndPlaylist(t *testing.T) {
	t.Parallel()

	it := New()

	in, err := it.Interpret("play Beat It by Michael Jackson from eighties hits")
	if err != nil {
		t.Fatalf("Interpret: unexpected error: %v", err)
	}
	play := in.(Play)

	var kinds []types.EntityKind
	for _, e := range play.Entities {
		kinds = append(kinds, e.Kind)
	}
	want := []types.EntityKind{types.EntitySong, types.EntityArtist, types.EntityPlaylist}
	if len(kinds) != len(want) {
		t.Fatalf("entity kinds = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("entity[%d].Kind = %v, want %v", i, kinds[i], want[i])
		}
	}
	if play.Entities[2].RawText != "eighties hits" {
		t.Errorf("playlist = %q, want %q", play.Entities[2].RawText, "eighties hits")
	}
}

func TestInterpret_Controls(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text string
		want string
	}{
		{"pause", "pause"},
		{"pause the music", "pause"},
		{"stop", "pause"},
		{"resume", "resume"},
		{"continue playback", "resume"},
		{"skip", "skip"},
		{"next song", "skip"},
		{"shuffle on", "set_shuffle"},
		{"turn shuffle off", "set_shuffle"},
	}

	it := New()
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			in, err := it.Interpret(tt.text)
			if err != nil {
				t.Fatalf("Interpret(%q): %v", tt.text, err)
			}
			if got := Name(in); got != tt.want {
				t.Errorf("Interpret(%q) = %s, want %s", tt.text, got, tt.want)
			}
		})
	}
}

func TestInterpret_SetVolumeAbsolute(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text  string
		level int
	}{
		{"set volume to 30", 30},
		{"set the volume to 85", 85},
		{"volume 50", 50},
		{"set volume to thirty five", 35},
		{"set volume to seventy percent", 70},
	}

	it := New()
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			in, err := it.Interpret(tt.text)
			if err != nil {
				t.Fatalf("Interpret(%q): %v", tt.text, err)
			}
			sv, ok := in.(SetVolume)
			if !ok {
				t.Fatalf("intent = %T, want SetVolume", in)
			}
			if sv.Relative {
				t.Error("Relative = true, want absolute")
			}
			if sv.Level != tt.level {
				t.Errorf("Level = %d, want %d", sv.Level, tt.level)
			}
		})
	}
}

func TestInterpret_VolumeDelta(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text string
		step int
	}{
		{"turn up the volume", volumeStep},
		{"turn down the volume", -volumeStep},
		{"louder", volumeStep},
		{"quieter", -volumeStep},
	}

	it := New()
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			in, err := it.Interpret(tt.text)
			if err != nil {
				t.Fatalf("Interpret(%q): %v", tt.text, err)
			}
			sv := in.(SetVolume)
			if !sv.Relative {
				t.Fatal("Relative = false, want delta")
			}
			if sv.Level != tt.step {
				t.Errorf("Level = %d, want %d", sv.Level, tt.step)
			}
		})
	}
}

func TestInterpret_VolumeOutOfRange(t *testing.T) {
	t.Parallel()

	it := New()
	if _, err := it.Interpret("set volume to 250"); !errors.Is(err, ErrUnrecognizedIntent) {
		t.Fatalf("err = %v, want ErrUnrecognizedIntent", err)
	}
}

func TestInterpret_CreatePlaylist(t *testing.T) {
	t.Parallel()

	it := New()

	in, err := it.Interpret("create a playlist called workout jams with Eye of the Tiger by Survivor")
	if err != nil {
		t.Fatalf("Interpret: %v", err)
	}
	pl, ok := in.(CreatePlaylist)
	if !ok {
		t.Fatalf("intent = %T, want CreatePlaylist", in)
	}
	if pl.Name != "workout jams" {
		t.Errorf("Name = %q, want %q", pl.Name, "workout jams")
	}
	if len(pl.Seeds) != 2 {
		t.Fatalf("Seeds = %+v, want song + artist", pl.Seeds)
	}
	if pl.Seeds[0].RawText != "eye of the tiger" {
		t.Errorf("seed song = %q", pl.Seeds[0].RawText)
	}
}

func TestInterpret_PairDevice(t *testing.T) {
	t.Parallel()

	it := New()

	in, err := it.Interpret("pair with the kitchen speaker")
	if err != nil {
		t.Fatalf("Interpret: %v", err)
	}
	pd, ok := in.(PairDevice)
	if !ok {
		t.Fatalf("intent = %T, want PairDevice", in)
	}
	if pd.Device != "kitchen" {
		t.Errorf("Device = %q, want %q", pd.Device, "kitchen")
	}
}

func TestInterpret_SetEqualizer(t *testing.T) {
	t.Parallel()

	it := New()

	in, err := it.Interpret("set the equalizer to bass boost")
	if err != nil {
		t.Fatalf("Interpret: %v", err)
	}
	eq, ok := in.(SetEqualizer)
	if !ok {
		t.Fatalf("intent = %T, want SetEqualizer", in)
	}
	if eq.Preset != "bass boost" {
		t.Errorf("Preset = %q, want %q", eq.Preset, "bass boost")
	}
	if len(eq.Bands) != 10 {
		t.Errorf("Bands length = %d, want 10", len(eq.Bands))
	}
}

func TestInterpret_VerbRepair(t *testing.T) {
	t.Parallel()

	it := New()

	// STT damage on the leading verb must still parse.
	in, err := it.Interpret("pley Thriller by Michael Jackson")
	if err != nil {
		t.Fatalf("Interpret: %v", err)
	}
	if _, ok := in.(Play); !ok {
		t.Fatalf("intent = %T, want Play after verb repair", in)
	}
}

func TestInterpret_Unrecognized(t *testing.T) {
	t.Parallel()

	it := New()

	tests := []string{
		"",
		"what is the weather tomorrow",
		"open the pod bay doors",
	}
	for _, text := range tests {
		if _, err := it.Interpret(text); !errors.Is(err, ErrUnrecognizedIntent) {
			t.Errorf("Interpret(%q): err = %v, want ErrUnrecognizedIntent", text, err)
		}
	}
}

func TestInterpret_SequenceIDsIncrease(t *testing.T) {
	t.Parallel()

	it := New()

	a, err := it.Interpret("pause")
	if err != nil {
		t.Fatal(err)
	}
	b, err := it.Interpret("resume")
	if err != nil {
		t.Fatal(err)
	}
	if b.Seq() <= a.Seq() {
		t.Errorf("sequence ids not increasing: %d then %d", a.Seq(), b.Seq())
	}
}

func TestFromKeyword(t *testing.T) {
	t.Parallel()

	it := New()

	tests := []struct {
		token string
		want  string
	}{
		{"pause", "pause"},
		{"stop", "pause"},
		{"resume", "resume"},
		{"play", "resume"},
		{"skip", "skip"},
		{"next", "skip"},
		{"shuffle on", "set_shuffle"},
		{"louder", "set_volume"},
		{"mute", "set_volume"},
	}
	for _, tt := range tests {
		in, err := it.FromKeyword(tt.token)
		if err != nil {
			t.Errorf("FromKeyword(%q): %v", tt.token, err)
			continue
		}
		if got := Name(in); got != tt.want {
			t.Errorf("FromKeyword(%q) = %s, want %s", tt.token, got, tt.want)
		}
	}

	if _, err := it.FromKeyword("frobnicate"); !errors.Is(err, ErrUnrecognizedIntent) {
		t.Errorf("FromKeyword(unknown): err = %v, want ErrUnrecognizedIntent", err)
	}
}
