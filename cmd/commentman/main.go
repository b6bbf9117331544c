// Command commentman はニュースサイトのコメントを収集・提供するアプリケーション。
//
// サブコマンド:
//
//	serve        コメントAPIサーバーを起動する（デフォルト）
//	scrape       記事検出とコメント取得のワーカーを起動する
//	migrate      データベースマイグレーションを実行する（up | down | version）
//	healthcheck  APIサーバーのヘルスチェックを行う
//	comments     APIからコメントを取得してJSONで出力する
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/commentman/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
