package model

import (
	"math"
	"testing"
)

func TestControversy(t *testing.T) {
	tests := []struct {
		name            string
		likes, dislikes int32
		want            float64
	}{
		{"no votes", 0, 0, 0},
		{"only likes", 10, 0, 0},
		{"only dislikes", 0, 4, 0},
		{"even split", 5, 5, 10},
		{"one each", 1, 1, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Controversy(tt.likes, tt.dislikes); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Controversy(%d, %d) = %v, want %v", tt.likes, tt.dislikes, got, tt.want)
			}
		})
	}
}

// 評価総数が同じなら割れているほど、割れ具合が同じなら総数が多いほど大きいこと
func TestControversy_Ordering(t *testing.T) {
	if Controversy(9, 1) >= Controversy(6, 4) {
		t.Error("9/1 should be less controversial than 6/4")
	}
	if Controversy(2, 2) >= Controversy(20, 20) {
		t.Error("20/20 should be more controversial than 2/2")
	}
	if Controversy(3, 7) != Controversy(7, 3) {
		t.Error("Controversy should be symmetric")
	}
}

func TestUserStats_TotalScore(t *testing.T) {
	u := UserStats{TotalLikes: 12, TotalDislikes: 5}
	if got := u.TotalScore(); got != 17 {
		t.Errorf("TotalScore() = %d, want 17", got)
	}
	s := SiteStats{TotalLikes: 3, TotalDislikes: 4}
	if got := s.TotalScore(); got != 7 {
		t.Errorf("TotalScore() = %d, want 7", got)
	}
}

func TestUserFilters_Validate(t *testing.T) {
	for _, o := range []CommentOrder{OrderByScore, OrderByLikes, OrderByDislikes} {
		if err := (UserFilters{Order: orderPtr(o)}).Validate(); err != nil {
			t.Errorf("Validate(order=%s) error: %v", o, err)
		}
	}
	for _, o := range []CommentOrder{OrderByControversial, "newest"} {
		if err := (UserFilters{Order: orderPtr(o)}).Validate(); err == nil {
			t.Errorf("Validate(order=%s) should fail", o)
		}
	}
}
