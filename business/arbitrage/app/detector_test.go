package app

import (
	"testing"
	"time"

	"github.com/fd1az/prediction-arb/business/arbitrage/domain"
	venueDomain "github.com/fd1az/prediction-arb/business/venue/domain"
)

func TestDetector_Detect(t *testing.T) {
	opp, ok := testDetector().Detect(scenarioPair(t))
	if !ok {
		t.Fatal("Detect() found no opportunity")
	}

	if opp.Direction != domain.DirectionAYesBNo {
		t.Errorf("Direction = %s, want %s", opp.Direction, domain.DirectionAYesBNo)
	}
	if !opp.Cost.Equal(dec("0.84")) {
		t.Errorf("Cost = %s, want 0.84", opp.Cost)
	}
	if !opp.Spread.Equal(dec("0.16")) {
		t.Errorf("Spread = %s, want 0.16", opp.Spread)
	}
	// 1 - 0.84 - 2*0.005
	if !opp.ExpectedProfit.Equal(dec("0.15")) {
		t.Errorf("ExpectedProfit = %s, want 0.15", opp.ExpectedProfit)
	}
	if !opp.Pair.StrikeDiff.Equal(dec("100")) {
		t.Errorf("StrikeDiff = %s, want 100", opp.Pair.StrikeDiff)
	}
	if !opp.DetectedAt.Equal(testNow) {
		t.Errorf("DetectedAt = %v, want %v", opp.DetectedAt, testNow)
	}
}

func TestDetector_Threshold(t *testing.T) {
	tests := []struct {
		name    string
		aYes    string
		aNo     string
		bYes    string
		bNo     string
		wantOK  bool
		wantDir domain.Direction
	}{
		{
			name: "cost_0975_rejected",
			aYes: "0.50", aNo: "0.55",
			bYes: "0.55", bNo: "0.475",
			wantOK: false,
		},
		{
			name: "cost_at_threshold_rejected",
			aYes: "0.50", aNo: "0.55",
			bYes: "0.55", bNo: "0.47",
			wantOK: false,
		},
		{
			name: "just_below_threshold_admitted",
			aYes: "0.50", aNo: "0.55",
			bYes: "0.55", bNo: "0.469",
			wantOK: true, wantDir: domain.DirectionAYesBNo,
		},
		{
			name: "reverse_direction_cheaper",
			aYes: "0.70", aNo: "0.30",
			bYes: "0.50", bNo: "0.45",
			wantOK: true, wantDir: domain.DirectionANoBYes,
		},
		{
			name: "tie_goes_to_a_yes_b_no",
			aYes: "0.40", aNo: "0.40",
			bYes: "0.50", bNo: "0.50",
			wantOK: true, wantDir: domain.DirectionAYesBNo,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := quote(t, venueDomain.VenueLimitless, "lim-1", "95000", tt.aYes, tt.aNo)
			b := quote(t, venueDomain.VenuePolymarket, "poly-1", "95000", tt.bYes, tt.bNo)

			opp, ok := testDetector().Detect(venueDomain.NewMatchedPair(testKey, a, b))
			if ok != tt.wantOK {
				t.Fatalf("Detect() ok = %v, want %v (cost %s)", ok, tt.wantOK, opp.Cost)
			}
			if ok && opp.Direction != tt.wantDir {
				t.Errorf("Direction = %s, want %s", opp.Direction, tt.wantDir)
			}
		})
	}
}

func TestDetector_SkipsExpiredQuotes(t *testing.T) {
	pair := scenarioPair(t)
	pair.B.FreshUntil = testNow

	if _, ok := testDetector().Detect(pair); ok {
		t.Error("Detect() admitted a pair with an expired quote")
	}

	pair = scenarioPair(t)
	pair.A.FreshUntil = time.Time{}
	if _, ok := testDetector().Detect(pair); ok {
		t.Error("Detect() admitted a pair with an unstamped quote")
	}
}

func TestDetector_Reprice(t *testing.T) {
	d := testDetector()
	opp, _ := d.Detect(scenarioPair(t))

	t.Run("still_admitted", func(t *testing.T) {
		a := quote(t, venueDomain.VenueLimitless, "lim-1", "95000", "0.42", "0.60")
		b := quote(t, venueDomain.VenuePolymarket, "poly-1", "95100", "0.55", "0.44")

		got, ok := d.Reprice(opp, a, b)
		if !ok {
			t.Fatal("Reprice() rejected")
		}
		if !got.Cost.Equal(dec("0.86")) {
			t.Errorf("Cost = %s, want 0.86", got.Cost)
		}
		if got.Direction != opp.Direction {
			t.Errorf("Direction = %s, want %s", got.Direction, opp.Direction)
		}
	})

	t.Run("spread_gone", func(t *testing.T) {
		a := quote(t, venueDomain.VenueLimitless, "lim-1", "95000", "0.55", "0.44")
		b := quote(t, venueDomain.VenuePolymarket, "poly-1", "95100", "0.55", "0.44")

		if _, ok := d.Reprice(opp, a, b); ok {
			t.Error("Reprice() admitted cost 0.99")
		}
	})
}

func TestDetector_DetectAllRanksDeterministically(t *testing.T) {
	mk := func(aID, bID, aYes, bNo, bStrike string) venueDomain.MatchedPair {
		a := quote(t, venueDomain.VenueLimitless, aID, "95000", aYes, "0.90")
		b := quote(t, venueDomain.VenuePolymarket, bID, bStrike, "0.90", bNo)
		return venueDomain.NewMatchedPair(testKey, a, b)
	}
	pairs := []venueDomain.MatchedPair{
		mk("lim-c", "poly-1", "0.45", "0.45", "95000"), // cost 0.90
		mk("lim-b", "poly-2", "0.40", "0.40", "95050"), // cost 0.80, diff 50
		mk("lim-a", "poly-3", "0.40", "0.40", "95050"), // cost 0.80, diff 50
		mk("lim-d", "poly-4", "0.40", "0.40", "95000"), // cost 0.80, diff 0
		mk("lim-e", "poly-5", "0.50", "0.49", "95000"), // cost 0.99, rejected
	}
	want := []string{"lim-d", "lim-a", "lim-b", "lim-c"}

	d := testDetector()
	for run := 0; run < 5; run++ {
		shuffled := append([]venueDomain.MatchedPair(nil), pairs...)
		for i := range shuffled {
			j := (i + run) % len(shuffled)
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		}

		got := d.DetectAll(shuffled)
		if len(got) != len(want) {
			t.Fatalf("run %d: DetectAll() = %d opportunities, want %d", run, len(got), len(want))
		}
		for i, opp := range got {
			if opp.Pair.A.MarketID != want[i] {
				t.Errorf("run %d: rank %d = %s, want %s", run, i, opp.Pair.A.MarketID, want[i])
			}
		}
	}
}
