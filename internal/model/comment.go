// Package model はドメインモデルを定義する。
package model

import "time"

// Comment はニュース記事に投稿されたコメントを表す。
// IDはサイト側で採番されたコメントIDをそのまま使う。
type Comment struct {
	ID        int64
	ArticleID int64
	UserID    int64
	UserName  string
	Time      time.Time
	Text      string // サニタイズ済み
	Likes     int32
	Dislikes  int32
	Deleted   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CommentWithArticle はコメントと投稿先記事の情報を結合したモデル。
// articlesテーブルとJOINして取得される。
type CommentWithArticle struct {
	Comment
	ArticleTitle string
	ArticleURL   string
	City         string
}

// ParsedComment はスクレイパーが取得した未保存のコメントデータを表す。
// CommentUpsertServiceに渡される。
type ParsedComment struct {
	ID       int64
	UserID   int64
	UserName string
	Time     time.Time
	Text     string // 未サニタイズ
	Likes    int32
	Dislikes int32
}

// ScrapedComments は1回のスクレイピングで取得した記事のコメント一覧。
type ScrapedComments struct {
	Comments []ParsedComment
	// Complete はページ上限で打ち切らずに全ページを取得できた場合にtrue。
	// falseの一覧に含まれないコメントを削除済みと判定してはならない。
	Complete bool
}

// User はコメント投稿者を表す。
type User struct {
	ID        int64
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}
