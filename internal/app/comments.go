package app

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"

	"github.com/hitoshi/commentman/internal/client"
	"github.com/hitoshi/commentman/internal/config"
	"github.com/hitoshi/commentman/internal/logger"
	"github.com/hitoshi/commentman/internal/model"
)

// commentsOptions はcommentsサブコマンドの引数を表す。
// IDが指定された場合は単一コメントを取得する。
type commentsOptions struct {
	ID         int64
	Pagination model.Pagination
	Filters    model.Filters
}

// parseCommentsArgs はcommentsサブコマンドのフラグを解析する。
// 指定されなかったフィルタはnilのまま残す。
func parseCommentsArgs(args []string, errOut io.Writer) (*commentsOptions, error) {
	fs := flag.NewFlagSet("comments", flag.ContinueOnError)
	fs.SetOutput(errOut)

	id := fs.Int64("id", 0, "取得するコメントID")
	page := fs.Int("page", 1, "ページ番号")
	items := fs.Int("items", 20, "1ページあたりの件数")
	since := fs.Int("since", 0, "直近N日 (1, 7, 30, 365)")
	author := fs.String("author", "", "ユーザーID（カンマ区切り）")
	liked := fs.Bool("liked", false, "高評価のあるコメントのみ")
	disliked := fs.Bool("disliked", false, "低評価のあるコメントのみ")
	onlyDeleted := fs.Bool("only-deleted", false, "削除済みコメントのみ")
	city := fs.String("city", "", "都市コード")
	order := fs.String("order", "", "並び順 (score, likes, dislikes, controversial)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	opts := &commentsOptions{
		ID:         *id,
		Pagination: model.Pagination{Page: *page, ItemsPerPage: *items},
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "since":
			opts.Filters.Since = since
		case "author":
			opts.Filters.Author = author
		case "liked":
			opts.Filters.Liked = liked
		case "disliked":
			opts.Filters.Disliked = disliked
		case "only-deleted":
			opts.Filters.OnlyDeleted = onlyDeleted
		case "city":
			opts.Filters.City = city
		case "order":
			o := model.CommentOrder(*order)
			opts.Filters.Order = &o
		}
	})

	if opts.ID == 0 {
		if err := opts.Pagination.Validate(0); err != nil {
			return nil, err
		}
		if err := opts.Filters.Validate(); err != nil {
			return nil, err
		}
	}
	return opts, nil
}

// runComments はAPIからコメントを取得してJSONで出力する。
func runComments(ctx context.Context, logOut, out io.Writer, args []string) error {
	opts, err := parseCommentsArgs(args, logOut)
	if err != nil {
		return err
	}

	cfg := config.LoadClient()
	log := logger.SetupDefault(logOut, cfg.LogLevel)
	c := client.NewClient(&http.Client{Timeout: cfg.Timeout}, log, cfg.APIURL)

	var result any
	if opts.ID != 0 {
		comment, err := c.GetComment(ctx, opts.ID)
		if client.IsNotFound(err) {
			return fmt.Errorf("comment %d not found", opts.ID)
		}
		if err != nil {
			return err
		}
		result = comment
	} else {
		page, err := c.ListComments(ctx, opts.Pagination, opts.Filters)
		if err != nil {
			return err
		}
		result = page
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
