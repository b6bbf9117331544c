// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Filters はコメント一覧の絞り込み条件を表す。
// 各フィールドはnilで「未指定（制約なし）」を表し、falseとは区別される。
type Filters struct {
	Since       *int    // 直近N日。1, 7, 30, 365 のいずれか
	Author      *string // ユーザーID。カンマ区切りで複数指定可
	Liked       *bool
	Disliked    *bool
	OnlyDeleted *bool
	City        *string
	Order       *CommentOrder // 未指定の場合はliked/dislikedから決まる
}

// AllowedSinceDays はsinceフィルタに指定できる日数。
var AllowedSinceDays = []int{1, 7, 30, 365}

// Validate はフィルタの値域を検証する。
func (f Filters) Validate() error {
	if f.Since != nil && !isAllowedSince(*f.Since) {
		return NewInvalidFilterError(fmt.Sprintf("since=%d", *f.Since))
	}
	if f.Author != nil {
		if _, err := ParseAuthorIDs(*f.Author); err != nil {
			return err
		}
	}
	if f.Order != nil && !f.Order.Valid() {
		return NewInvalidFilterError(fmt.Sprintf("order=%s", *f.Order))
	}
	return nil
}

func isAllowedSince(days int) bool {
	for _, d := range AllowedSinceDays {
		if d == days {
			return true
		}
	}
	return false
}

// ParseAuthorIDs はカンマ区切りのユーザーID文字列を数値IDのスライスに変換する。
// 空要素は無視する。
func ParseAuthorIDs(author string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(author, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, NewInvalidFilterError(fmt.Sprintf("author=%s", author))
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Pagination はページ番号と1ページあたりの件数を表す。
type Pagination struct {
	Page         int
	ItemsPerPage int
}

// Validate はページ指定を検証する。maxItemsが0以下の場合は上限を設けない。
func (p Pagination) Validate(maxItems int) error {
	if p.Page < 1 {
		return NewInvalidPaginationError(fmt.Sprintf("page=%d", p.Page))
	}
	if p.ItemsPerPage < 1 {
		return NewInvalidPaginationError(fmt.Sprintf("itemsPerPage=%d", p.ItemsPerPage))
	}
	if maxItems > 0 && p.ItemsPerPage > maxItems {
		return NewInvalidPaginationError(fmt.Sprintf("itemsPerPage=%d (上限 %d)", p.ItemsPerPage, maxItems))
	}
	// Offsetと次ページのlimit+1件取得がintに収まること
	if p.Page > math.MaxInt/p.ItemsPerPage-1 {
		return NewInvalidPaginationError(fmt.Sprintf("page=%d", p.Page))
	}
	return nil
}

// Offset はページに対応するスキップ件数を返す。Validate済みの値では負にならない。
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.ItemsPerPage
}

// CommentOrder はコメント一覧の並び順を表す。
type CommentOrder string

const (
	// OrderByScore はいいね数と低評価数の合計の降順。
	OrderByScore CommentOrder = "score"
	// OrderByLikes はいいね数の降順。
	OrderByLikes CommentOrder = "likes"
	// OrderByDislikes は低評価数の降順。
	OrderByDislikes CommentOrder = "dislikes"
	// OrderByControversial は評価の割れ具合の降順。Controversyを参照。
	OrderByControversial CommentOrder = "controversial"
)

// Valid はコメント一覧に指定できる並び順かどうかを返す。
func (o CommentOrder) Valid() bool {
	switch o {
	case OrderByScore, OrderByLikes, OrderByDislikes, OrderByControversial:
		return true
	}
	return false
}

// ValidForTotals は投稿者やサイトの集計値に指定できる並び順かどうかを返す。
// 集計値には評価の割れ具合が無いためcontroversialは指定できない。
func (o CommentOrder) ValidForTotals() bool {
	return o.Valid() && o != OrderByControversial
}

// CommentQuery はリポジトリに渡す検索条件を表す。
// Filtersを検証・正規化した結果で、ゼロ値のフィールドは条件なしを意味する。
type CommentQuery struct {
	SinceDays   int
	AuthorIDs   []int64
	Liked       bool
	Disliked    bool
	OnlyDeleted bool
	City        string
	Order       CommentOrder
	Limit       int
	Offset      int
}

// OrderFor はliked/dislikedの指定から並び順を決める。
// 片方だけが指定された場合はその評価数、それ以外は合計値で並べる。
func OrderFor(liked, disliked bool) CommentOrder {
	switch {
	case liked && !disliked:
		return OrderByLikes
	case disliked && !liked:
		return OrderByDislikes
	default:
		return OrderByScore
	}
}
