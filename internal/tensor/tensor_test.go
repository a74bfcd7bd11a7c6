package tensor

import "testing"

func TestFromRows(t *testing.T) {
	tests := []struct {
		name      string
		rows      int
		firstFull int // index of the first non-padding row
	}{
		{"empty", 0, Moves},
		{"short", 3, Moves - 3},
		{"exact", Moves, 0},
		{"truncated", Moves + 20, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := make([][Features]float64, tt.rows)
			for i := range rows {
				rows[i][FeatureTime] = float64(i + 1)
			}

			g := FromRows(rows)
			for i := range Moves {
				got := g[i][FeatureTime]
				if i < tt.firstFull {
					if got != 0 {
						t.Fatalf("row %d = %v, want padding", i, got)
					}
					continue
				}
				if want := float64(i - tt.firstFull + 1); got != want {
					t.Fatalf("row %d = %v, want %v", i, got, want)
				}
			}
		})
	}
}

func TestFlatRoundTrip(t *testing.T) {
	var g Game
	g[0][FeatureLoss] = 0.5
	g[Moves-1][FeatureCheck] = 1

	flat := g.Flat()
	if len(flat) != Moves*Features {
		t.Fatalf("len(Flat()) = %d, want %d", len(flat), Moves*Features)
	}
	if flat[len(flat)-1] != 1 {
		t.Errorf("last value = %v, want 1", flat[len(flat)-1])
	}

	back, err := FromFlat(flat)
	if err != nil {
		t.Fatalf("FromFlat() error = %v", err)
	}
	if *back != g {
		t.Error("FromFlat(Flat()) differs from the original")
	}

	if _, err := FromFlat(flat[1:]); err == nil {
		t.Error("FromFlat(short) error = nil, want error")
	}
}
