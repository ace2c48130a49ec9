package tonal

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
)

func TestSolveKeyRoundTrip(t *testing.T) {
	for _, family := range Families() {
		bank, err := NewProfileBank([]ProfileFamily{family}, true)
		if err != nil {
			t.Fatalf("NewProfileBank(%s): %v", family, err)
		}
		for _, mode := range []Mode{Major, Minor, Dorian} {
			profile, ok := family.Profile(mode)
			if !ok {
				continue
			}
			for tonic := range 12 {
				chroma := rotate(profile.Weights, tonic)
				got, err := SolveKey(chroma, bank)
				if err != nil {
					t.Fatalf("%s %s %d: %v", family, mode, tonic, err)
				}
				want := Key{Tonic: PitchClass(tonic), Mode: mode}
				if got.Key != want {
					t.Errorf("%s: rotation %d of %s profile solved as %s, want %s", family, tonic, mode, got.Key, want)
				}
				if math.Abs(got.Score-1) > 1e-9 {
					t.Errorf("%s %s: score = %v, want 1", family, want, got.Score)
				}
				if got.Family != family {
					t.Errorf("family = %s, want %s", got.Family, family)
				}
			}
		}
	}
}

func TestSolveKeyInvalidChroma(t *testing.T) {
	tests := []struct {
		name   string
		chroma []float64
	}{
		{"short", make([]float64, 11)},
		{"long", make([]float64, 13)},
		{"nil", nil},
		{"nan", []float64{1, 0, 0, 0, math.NaN(), 0, 0, 1, 0, 0, 0, 0}},
		{"inf", []float64{1, 0, 0, 0, 1, 0, 0, math.Inf(1), 0, 0, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := SolveKey(tt.chroma, nil); !errors.Is(err, ErrInvalidChroma) {
				t.Errorf("SolveKey error = %v, want ErrInvalidChroma", err)
			}
			if _, err := RankKeys(tt.chroma, nil); !errors.Is(err, ErrInvalidChroma) {
				t.Errorf("RankKeys error = %v, want ErrInvalidChroma", err)
			}
		})
	}
}

func TestSolveKeyConstantChroma(t *testing.T) {
	chroma := make([]float64, 12)
	for i := range chroma {
		chroma[i] = 0.4
	}
	got, err := SolveKey(chroma, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got.Score != 0 {
		t.Errorf("score = %v, want 0", got.Score)
	}
	if got.Key != (Key{Tonic: 0, Mode: Major}) {
		t.Errorf("key = %s, want first candidate C Major", got.Key)
	}
}

func TestSolveKeyTriads(t *testing.T) {
	tests := []struct {
		notes []int
		want  Key
	}{
		{[]int{0, 4, 7}, Key{Tonic: 0, Mode: Major}},
		{[]int{9, 0, 4}, Key{Tonic: 9, Mode: Minor}},
		{[]int{7, 11, 2}, Key{Tonic: 7, Mode: Major}},
		{[]int{6, 9, 1}, Key{Tonic: 6, Mode: Minor}},
	}
	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			chroma := make([]float64, 12)
			for _, n := range tt.notes {
				chroma[n] = 1
			}
			got, err := SolveKey(chroma, nil)
			if err != nil {
				t.Fatal(err)
			}
			if got.Key != tt.want {
				t.Errorf("SolveKey = %s, want %s", got.Key, tt.want)
			}
		})
	}
}

func TestRankKeys(t *testing.T) {
	chroma := []float64{1, 0.1, 0.3, 0.1, 0.8, 0.4, 0.1, 0.9, 0.1, 0.3, 0.1, 0.2}
	ranked, err := RankKeys(chroma, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(ranked) != 24 {
		t.Fatalf("len = %d, want 24", len(ranked))
	}
	best, _ := SolveKey(chroma, nil)
	if ranked[0].Key != best.Key || ranked[0].Score != best.Score {
		t.Errorf("ranked[0] = %v, SolveKey = %v", ranked[0], best)
	}
	seen := make(map[Key]bool)
	for i, h := range ranked {
		if seen[h.Key] {
			t.Errorf("duplicate key %s", h.Key)
		}
		seen[h.Key] = true
		if i > 0 && h.Score > ranked[i-1].Score {
			t.Errorf("not sorted at %d: %v > %v", i, h.Score, ranked[i-1].Score)
		}
	}
}

func TestProfileBank(t *testing.T) {
	tests := []struct {
		name     string
		families []ProfileFamily
		modal    bool
		size     int
	}{
		{"krumhansl", []ProfileFamily{Krumhansl}, false, 24},
		{"krumhansl modal", []ProfileFamily{Krumhansl}, true, 36},
		{"diatonic modal", []ProfileFamily{Diatonic}, true, 24},
		{"duplicates", []ProfileFamily{Temperley, Temperley}, false, 24},
		{"all", Families(), false, 24 * len(Families())},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bank, err := NewProfileBank(tt.families, tt.modal)
			if err != nil {
				t.Fatal(err)
			}
			if bank.Size() != tt.size {
				t.Errorf("Size = %d, want %d", bank.Size(), tt.size)
			}
		})
	}

	if _, err := NewProfileBank(nil, false); !errors.Is(err, ErrUnknownProfile) {
		t.Errorf("empty bank error = %v", err)
	}
	if _, err := NewProfileBank([]ProfileFamily{"mozart"}, false); !errors.Is(err, ErrUnknownProfile) {
		t.Errorf("unknown family error = %v", err)
	}
}

func TestParseProfileFamily(t *testing.T) {
	tests := []struct {
		in      string
		want    ProfileFamily
		wantErr bool
	}{
		{"krumhansl", Krumhansl, false},
		{" Temperley ", Temperley, false},
		{"BGATE", Bellman, false},
		{"edma", EDMA, false},
		{"triad", TonicTriad, false},
		{"schenker", "", true},
	}
	for _, tt := range tests {
		got, err := ParseProfileFamily(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseProfileFamily(%q) error = %v", tt.in, err)
			continue
		}
		if err != nil && !errors.Is(err, ErrUnknownProfile) {
			t.Errorf("error %v is not ErrUnknownProfile", err)
		}
		if got != tt.want {
			t.Errorf("ParseProfileFamily(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDorianProfile(t *testing.T) {
	minor, _ := Krumhansl.Profile(Minor)
	dorian, ok := Krumhansl.Profile(Dorian)
	if !ok {
		t.Fatal("krumhansl has no dorian profile")
	}
	if dorian.Weights[8] != minor.Weights[9] || dorian.Weights[9] != minor.Weights[8] {
		t.Errorf("dorian sixth degrees not swapped: %v", dorian.Weights)
	}
	if _, ok := Bellman.Profile(Dorian); ok {
		t.Error("bellman should not define dorian")
	}
}

func TestToCamelot(t *testing.T) {
	seen := make(map[string]Key)
	for pc := range 12 {
		for _, mode := range []Mode{Major, Minor} {
			key := Key{Tonic: PitchClass(pc), Mode: mode}
			code := ToCamelot(key.Tonic.String(), mode.String())
			if code == CamelotUnknown {
				t.Fatalf("%s has no code", key)
			}
			if other, dup := seen[code]; dup {
				t.Errorf("%s and %s share %s", key, other, code)
			}
			seen[code] = key

			back, err := ParseCamelot(code)
			if err != nil || back != key {
				t.Errorf("ParseCamelot(%s) = %v, %v; want %s", code, back, err, key)
			}
		}
	}
	if len(seen) != 24 {
		t.Errorf("%d distinct codes, want 24", len(seen))
	}

	tests := []struct {
		tonic, mode, want string
	}{
		{"F#", "minor", "11A"},
		{"Gb", "min", "11A"},
		{"C", "major", "8B"},
		{"A", "minor", "8A"},
		{"C#", "major", "3B"},
		{"Db", "major", "3B"},
		{"d♭", "maj", "3B"},
		{"E#", "major", "7B"},
		{"Cb", "major", "1B"},
		{"B#", "m", "5A"},
		{"D", "dorian", "7A"},
		{"H", "major", CamelotUnknown},
		{"C", "lydian", CamelotUnknown},
		{"", "", CamelotUnknown},
	}
	for _, tt := range tests {
		if got := ToCamelot(tt.tonic, tt.mode); got != tt.want {
			t.Errorf("ToCamelot(%q, %q) = %q, want %q", tt.tonic, tt.mode, got, tt.want)
		}
	}
}

func TestRelativeKeysShareCamelotNumber(t *testing.T) {
	for pc := range 12 {
		major := Key{Tonic: PitchClass(pc), Mode: Major}
		minor := major.Relative()
		a, b := minor.Camelot(), major.Camelot()
		if a[:len(a)-1] != b[:len(b)-1] {
			t.Errorf("%s (%s) and %s (%s) differ in number", major, b, minor, a)
		}
	}
}

func TestCamelotCompatible(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"8A", "8A", true},
		{"8A", "8B", true},
		{"8A", "9A", true},
		{"12B", "1B", true},
		{"1a", "12A", true},
		{"8A", "9B", false},
		{"8A", "10A", false},
		{"13A", "1A", false},
		{"8C", "8A", false},
	}
	for _, tt := range tests {
		if got := CamelotCompatible(tt.a, tt.b); got != tt.want {
			t.Errorf("CamelotCompatible(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestParseKey(t *testing.T) {
	tests := []struct {
		in      string
		want    Key
		wantErr bool
	}{
		{"F# minor", Key{6, Minor}, false},
		{"Gb Major", Key{6, Major}, false},
		{"Am", Key{9, Minor}, false},
		{"C", Key{0, Major}, false},
		{"Bbm", Key{10, Minor}, false},
		{"Bm", Key{11, Minor}, false},
		{"c#min", Key{1, Minor}, false},
		{"E♭m", Key{3, Minor}, false},
		{"D dorian", Key{2, Dorian}, false},
		{"", Key{}, true},
		{"H minor", Key{}, true},
		{"C lydian", Key{}, true},
		{"C# minor please", Key{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKey(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseKey(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseKey(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestKeyString(t *testing.T) {
	if got := (Key{Tonic: 6, Mode: Minor}).String(); got != "F# Minor" {
		t.Errorf("String = %q", got)
	}
	data, err := json.Marshal(Key{Tonic: 10, Mode: Major})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"tonic":"A#","mode":"major"}` {
		t.Errorf("json = %s", data)
	}
	var k Key
	if err := json.Unmarshal([]byte(`{"tonic":"Eb","mode":"minor"}`), &k); err != nil {
		t.Fatal(err)
	}
	if k != (Key{Tonic: 3, Mode: Minor}) {
		t.Errorf("unmarshal = %s", k)
	}
}

func TestKeyRelations(t *testing.T) {
	c := Key{Tonic: 0, Mode: Major}
	tests := []struct {
		name string
		got  Key
		want Key
	}{
		{"relative", c.Relative(), Key{9, Minor}},
		{"relative of minor", Key{9, Minor}.Relative(), c},
		{"parallel", c.Parallel(), Key{0, Minor}},
		{"dominant", c.Dominant(), Key{7, Major}},
		{"subdominant", c.Subdominant(), Key{5, Major}},
		{"dorian relative", Key{2, Dorian}.Relative(), Key{5, Major}},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %s, want %s", tt.name, tt.got, tt.want)
		}
	}
	if !c.IsCompatible(Key{9, Minor}) {
		t.Error("C major should be compatible with A minor")
	}
	if c.IsCompatible(Key{6, Major}) {
		t.Error("C major should not be compatible with F# major")
	}
}
