package payments

import "testing"

func TestSplit(t *testing.T) {
	cases := []struct {
		name     string
		gross    int64
		bps      int
		fee      int64
		merchant int64
	}{
		{"five percent", 10000, 500, 500, 9500},
		{"rounds half up", 999, 500, 50, 949}, // 49.95 -> 50
		{"rounds down below half", 101, 100, 1, 100},
		{"one cent", 1, 500, 0, 1},
		{"zero gross", 0, 500, 0, 0},
		{"negative gross", -50, 500, 0, -50},
		{"zero fee", 10000, 0, 0, 10000},
		{"full fee", 10000, 10000, 10000, 0},
		{"over full fee clamps", 10000, 12000, 10000, 0},
	}
	for _, tc := range cases {
		fee, merchant := Split(tc.gross, tc.bps)
		if fee != tc.fee || merchant != tc.merchant {
			t.Errorf("%s: Split(%d, %d) = (%d, %d), want (%d, %d)",
				tc.name, tc.gross, tc.bps, fee, merchant, tc.fee, tc.merchant)
		}
	}
}

func TestSplitConservesCents(t *testing.T) {
	for gross := int64(1); gross < 5000; gross += 7 {
		for _, bps := range []int{1, 250, 500, 2999, 9999} {
			fee, merchant := Split(gross, bps)
			if fee+merchant != gross {
				t.Fatalf("Split(%d, %d) lost cents: %d + %d != %d", gross, bps, fee, merchant, gross)
			}
			if fee < 0 || merchant < 0 {
				t.Fatalf("Split(%d, %d) produced negative share: %d / %d", gross, bps, fee, merchant)
			}
		}
	}
}
