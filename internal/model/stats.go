package model

import (
	"fmt"
	"math"
)

// UserStats は投稿者ごとのコメント評価の集計値を表す。
// 削除済みのコメントも集計に含む。
type UserStats struct {
	ID            int64
	Name          string
	CommentCount  int64
	TotalLikes    int64
	TotalDislikes int64
}

// TotalScore はいいね数と低評価数の合計。
func (u UserStats) TotalScore() int64 {
	return u.TotalLikes + u.TotalDislikes
}

// SiteStats はサイト（都市）ごとのコメント評価の集計値を表す。
type SiteStats struct {
	City          string
	URL           string
	CommentCount  int64
	TotalLikes    int64
	TotalDislikes int64
}

// TotalScore はいいね数と低評価数の合計。
func (s SiteStats) TotalScore() int64 {
	return s.TotalLikes + s.TotalDislikes
}

// UserFilters は投稿者ランキングの絞り込み条件を表す。nilは未指定。
type UserFilters struct {
	City  *string
	Order *CommentOrder // 未指定の場合はscore
}

// Validate は並び順の値域を検証する。
func (f UserFilters) Validate() error {
	if f.Order != nil && !f.Order.ValidForTotals() {
		return NewInvalidFilterError(fmt.Sprintf("order=%s", *f.Order))
	}
	return nil
}

// UserQuery はリポジトリに渡す投稿者ランキングの検索条件を表す。
// Cityが空の場合は全サイトを集計する。
type UserQuery struct {
	City   string
	Order  CommentOrder
	Limit  int
	Offset int
}

// Controversy はコメントの評価の割れ具合を返す。
//
// いいねと低評価の比率の二値エントロピー（0〜1）に評価総数を掛けた値で、
// 片方の評価しか無いコメントは0になる。PostgresCommentRepoのSQLと同じ式。
func Controversy(likes, dislikes int32) float64 {
	if likes <= 0 || dislikes <= 0 {
		return 0
	}
	n := float64(likes) + float64(dislikes)
	p := float64(likes) / n
	q := float64(dislikes) / n
	entropy := -(p*math.Log(p) + q*math.Log(q)) / math.Ln2
	return entropy * n
}
