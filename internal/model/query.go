package model

import "github.com/hitoshi/commentman/internal/querystring"

// NewCommentsQuery はページ指定とフィルタからコメント一覧APIのクエリパラメータ列を組み立てる。
//
// page、itemsPerPage の後に since, author, liked, disliked, onlyDeleted, city, order の順で並ぶ。
// 未指定（nil）のフィルタは列に含めない。falseが指定された場合は liked=false のように出力される。
func NewCommentsQuery(p Pagination, f Filters) querystring.Request {
	q := querystring.Request{}.
		Add("page", p.Page).
		Add("itemsPerPage", p.ItemsPerPage)

	if f.Since != nil {
		q = q.Add("since", *f.Since)
	}
	if f.Author != nil {
		q = q.Add("author", *f.Author)
	}
	if f.Liked != nil {
		q = q.Add("liked", *f.Liked)
	}
	if f.Disliked != nil {
		q = q.Add("disliked", *f.Disliked)
	}
	if f.OnlyDeleted != nil {
		q = q.Add("onlyDeleted", *f.OnlyDeleted)
	}
	if f.City != nil {
		q = q.Add("city", *f.City)
	}
	if f.Order != nil {
		q = q.Add("order", string(*f.Order))
	}
	return q
}

// NewUsersQuery は投稿者ランキングAPIのクエリパラメータ列を組み立てる。
// page、itemsPerPage、city、order の順で並び、未指定のフィルタは含めない。
func NewUsersQuery(p Pagination, f UserFilters) querystring.Request {
	q := querystring.Request{}.
		Add("page", p.Page).
		Add("itemsPerPage", p.ItemsPerPage)

	if f.City != nil {
		q = q.Add("city", *f.City)
	}
	if f.Order != nil {
		q = q.Add("order", string(*f.Order))
	}
	return q
}
