package scanner

import (
	"testing"
	"time"

	"optionsengine/src/marketdata"
	"optionsengine/src/model"
)

func entryAutomation() *model.Automation {
	return &model.Automation{
		ID:              1,
		UserID:          1,
		Symbol:          "AAPL",
		Active:          true,
		MinConfidence:   0.65,
		MaxPremium:      8,
		MinDTE:          14,
		MaxDTE:          45,
		PreferredDTE:    30,
		MinDelta:        0.25,
		MaxDelta:        0.60,
		MinVolume:       10,
		MinOpenInterest: 50,
		MaxSpreadPct:    10,
	}
}

func TestSelectExpiration(t *testing.T) {
	now := time.Date(2025, 6, 16, 10, 0, 0, 0, time.UTC)
	automation := entryAutomation()

	tests := []struct {
		name        string
		expirations []string
		want        string
		wantOK      bool
	}{
		{
			"closest to preferred",
			[]string{"2025-06-27", "2025-07-18", "2025-08-15"},
			"2025-07-18", // 32 DTE beats 11 (out of range) and 60 (out of range)
			true,
		},
		{
			"none in range",
			[]string{"2025-06-20", "2025-09-19"},
			"",
			false,
		},
		{
			"bad dates skipped",
			[]string{"not-a-date", "2025-07-11"},
			"2025-07-11",
			true,
		},
		{
			"empty list",
			nil,
			"",
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expiration, ok := SelectExpiration(tt.expirations, automation, now)
			if ok != tt.wantOK {
				t.Fatalf("expected ok=%v, got %v", tt.wantOK, ok)
			}
			if tt.wantOK && expiration.Format("2006-01-02") != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, expiration.Format("2006-01-02"))
			}
		})
	}
}

func TestSelectExpirationPrefersClosestToPreferred(t *testing.T) {
	now := time.Date(2025, 6, 16, 10, 0, 0, 0, time.UTC)
	automation := entryAutomation()

	// 18 DTE and 32 DTE both qualify; 32 is closer to the preferred 30.
	expiration, ok := SelectExpiration([]string{"2025-07-04", "2025-07-18"}, automation, now)
	if !ok {
		t.Fatalf("expected a selection")
	}
	if expiration.Format("2006-01-02") != "2025-07-18" {
		t.Fatalf("expected 2025-07-18, got %s", expiration.Format("2006-01-02"))
	}
}

func TestFilterContracts(t *testing.T) {
	automation := entryAutomation()

	chain := []marketdata.OptionContract{
		{Symbol: "keeper", Type: "call", Bid: 5.00, Ask: 5.20, Volume: 120, OpenInterest: 900, Greeks: model.Greeks{Delta: 0.45}},
		{Symbol: "wrong right", Type: "put", Bid: 5.00, Ask: 5.20, Volume: 120, OpenInterest: 900, Greeks: model.Greeks{Delta: -0.45}},
		{Symbol: "too expensive", Type: "call", Bid: 9.00, Ask: 9.20, Volume: 120, OpenInterest: 900, Greeks: model.Greeks{Delta: 0.45}},
		{Symbol: "illiquid", Type: "call", Bid: 5.00, Ask: 5.20, Volume: 3, OpenInterest: 900, Greeks: model.Greeks{Delta: 0.45}},
		{Symbol: "thin interest", Type: "call", Bid: 5.00, Ask: 5.20, Volume: 120, OpenInterest: 10, Greeks: model.Greeks{Delta: 0.45}},
		{Symbol: "wide spread", Type: "call", Bid: 4.00, Ask: 6.00, Volume: 120, OpenInterest: 900, Greeks: model.Greeks{Delta: 0.45}},
		{Symbol: "delta too low", Type: "call", Bid: 5.00, Ask: 5.20, Volume: 120, OpenInterest: 900, Greeks: model.Greeks{Delta: 0.10}},
		{Symbol: "delta too high", Type: "call", Bid: 5.00, Ask: 5.20, Volume: 120, OpenInterest: 900, Greeks: model.Greeks{Delta: 0.80}},
		{Symbol: "no quote", Type: "call", Volume: 120, OpenInterest: 900, Greeks: model.Greeks{Delta: 0.45}},
	}

	survivors := FilterContracts(chain, automation, true)
	if len(survivors) != 1 {
		t.Fatalf("expected exactly the keeper to survive, got %d", len(survivors))
	}
	if survivors[0].Symbol != "keeper" {
		t.Fatalf("expected keeper, got %s", survivors[0].Symbol)
	}
}

func TestFilterContractsBearishUsesPuts(t *testing.T) {
	automation := entryAutomation()

	chain := []marketdata.OptionContract{
		{Symbol: "call side", Type: "call", Bid: 5.00, Ask: 5.20, Volume: 120, OpenInterest: 900, Greeks: model.Greeks{Delta: 0.45}},
		{Symbol: "put side", Type: "put", Bid: 5.00, Ask: 5.20, Volume: 120, OpenInterest: 900, Greeks: model.Greeks{Delta: -0.45}},
	}

	survivors := FilterContracts(chain, automation, false)
	if len(survivors) != 1 || survivors[0].Symbol != "put side" {
		t.Fatalf("expected the put to survive a bearish scan, got %+v", survivors)
	}
}

func TestBestContractPrefersLiquidity(t *testing.T) {
	automation := entryAutomation()

	survivors := []marketdata.OptionContract{
		{Symbol: "thin", Type: "call", Bid: 5.00, Ask: 5.20, Volume: 15, OpenInterest: 60, Greeks: model.Greeks{Delta: 0.42}},
		{Symbol: "deep", Type: "call", Bid: 5.00, Ask: 5.20, Volume: 900, OpenInterest: 5000, Greeks: model.Greeks{Delta: 0.42}},
	}

	best := BestContract(survivors, automation)
	if best == nil || best.Symbol != "deep" {
		t.Fatalf("expected the liquid contract to win, got %+v", best)
	}
}

func TestBestContractEmpty(t *testing.T) {
	if best := BestContract(nil, entryAutomation()); best != nil {
		t.Fatalf("expected nil for no survivors, got %+v", best)
	}
}
