package client

import (
	"strconv"

	"github.com/hitoshi/commentman/internal/model"
	"github.com/hitoshi/commentman/internal/querystring"
)

const (
	// commentsPath はコメント一覧APIのパス。
	commentsPath = "/comments"
	usersPath    = "/users"
	sitesPath    = "/sites"
)

// CommentsPath はコメント一覧APIのパスとクエリ文字列を連結して返す。
func CommentsPath(p model.Pagination, f model.Filters) string {
	return commentsPath + "?" + model.NewCommentsQuery(p, f).Encode()
}

// UsersPath は投稿者ランキングAPIのパスとクエリ文字列を連結して返す。
func UsersPath(p model.Pagination, f model.UserFilters) string {
	return usersPath + "?" + model.NewUsersQuery(p, f).Encode()
}

// SitesPath はサイト一覧APIのパスを返す。orderがnilの場合はクエリを付けない。
func SitesPath(order *model.CommentOrder) string {
	if order == nil {
		return sitesPath
	}
	return sitesPath + "?" + querystring.Request{}.Add("order", string(*order)).Encode()
}

func userPath(id int64) string {
	return usersPath + "/" + strconv.FormatInt(id, 10)
}
