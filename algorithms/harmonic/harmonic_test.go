package harmonic

import (
	"math"
	"testing"

	"github.com/RyanBlaney/sonido-clave/algorithms/spectral"
	"github.com/RyanBlaney/sonido-clave/algorithms/windowing"
)

const testRate = 11025

func toneWithClicks(toneAmp, clickAmp float64, seconds float64) (mix, tone []float64, clicks []int) {
	n := int(seconds * testRate)
	mix = make([]float64, n)
	tone = make([]float64, n)
	for i := range n {
		tone[i] = toneAmp * math.Sin(2*math.Pi*440*float64(i)/testRate)
		mix[i] = tone[i]
	}
	if clickAmp > 0 {
		for i := testRate / 4; i < n; i += testRate / 2 {
			mix[i] += clickAmp
			clicks = append(clicks, i)
		}
	}
	return mix, tone, clicks
}

func newTestHPSS(t *testing.T) *HPSS {
	t.Helper()
	h, err := NewHPSS(DefaultHPSSConfig())
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func TestSeparateIsComplete(t *testing.T) {
	mix, _, _ := toneWithClicks(0.3, 1.0, 3)
	harm, perc, err := newTestHPSS(t).Separate(mix, testRate)
	if err != nil {
		t.Fatal(err)
	}
	if len(harm) != len(mix) || len(perc) != len(mix) {
		t.Fatalf("lengths %d/%d, want %d", len(harm), len(perc), len(mix))
	}
	for i := range mix {
		if d := math.Abs(harm[i] + perc[i] - mix[i]); d > 1e-6 {
			t.Fatalf("sample %d: harmonic+percussive off by %v", i, d)
		}
	}
}

func TestSeparateKeepsSustainedTone(t *testing.T) {
	mix, tone, _ := toneWithClicks(0.5, 0, 3)
	harm, err := newTestHPSS(t).Harmonic(mix, testRate)
	if err != nil {
		t.Fatal(err)
	}
	var errEnergy, toneEnergy float64
	for i := range tone {
		d := harm[i] - tone[i]
		errEnergy += d * d
		toneEnergy += tone[i] * tone[i]
	}
	if ratio := errEnergy / toneEnergy; ratio > 0.02 {
		t.Errorf("harmonic residual ratio = %v, want < 0.02", ratio)
	}
}

func TestSeparateMovesClicksToPercussive(t *testing.T) {
	mix, _, clicks := toneWithClicks(0.1, 1.0, 4)
	harm, perc, err := newTestHPSS(t).Separate(mix, testRate)
	if err != nil {
		t.Fatal(err)
	}
	var hEnergy, pEnergy float64
	for _, c := range clicks {
		for i := max(0, c-16); i < min(len(mix), c+16); i++ {
			hEnergy += harm[i] * harm[i]
			pEnergy += perc[i] * perc[i]
		}
	}
	if pEnergy <= hEnergy {
		t.Errorf("percussive energy %v not above harmonic energy %v around clicks", pEnergy, hEnergy)
	}
}

func TestMasksSumToOne(t *testing.T) {
	mag := [][]float64{{0, 1, 2}, {3, 0, 1}, {0, 0, 0}}
	h := newTestHPSS(t)
	hm, pm := h.Masks(mag)
	for tIdx := range mag {
		for k := range mag[tIdx] {
			if s := hm[tIdx][k] + pm[tIdx][k]; math.Abs(s-1) > 1e-12 {
				t.Errorf("mask sum at (%d,%d) = %v", tIdx, k, s)
			}
		}
	}
}

func TestDetectPeaksInterpolates(t *testing.T) {
	const win = 8192
	freq := 261.63
	signal := make([]float64, win)
	for i := range signal {
		signal[i] = math.Sin(2 * math.Pi * freq * float64(i) / testRate)
	}
	res, err := spectral.NewSTFT().ComputeWithWindow(signal, win, win, testRate, windowing.NewHann(win, false))
	if err != nil {
		t.Fatal(err)
	}
	peaks := NewSpectralPeaks(testRate, 80, 2000, 0.1, 5).DetectPeaks(res.Magnitude[0], win)
	if len(peaks) == 0 {
		t.Fatal("no peaks")
	}
	cents := 1200 * math.Log2(peaks[0].Frequency/freq)
	if math.Abs(cents) > 2 {
		t.Errorf("peak at %.3f Hz is %.2f cents off %.2f Hz", peaks[0].Frequency, cents, freq)
	}
}
