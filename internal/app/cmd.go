package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandScrape はスクレイピングワーカーモードで起動することを示す。
	CommandScrape Command = "scrape"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
	// CommandComments はAPIからコメントを取得して表示することを示す。
	CommandComments Command = "comments"
)

// MigrateAction はmigrateサブコマンドの操作を表す。
type MigrateAction string

const (
	MigrateUp      MigrateAction = "up"
	MigrateDown    MigrateAction = "down"
	MigrateVersion MigrateAction = "version"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch args[0] {
	case "scrape", "worker":
		return CommandScrape
	case "serve":
		return CommandServe
	case "migrate":
		return CommandMigrate
	case "healthcheck":
		return CommandHealthcheck
	case "comments":
		return CommandComments
	default:
		return CommandServe
	}
}

// ParseMigrateAction はmigrateに続く引数から操作を解析する。
// 省略時はMigrateUp。未知の操作はokがfalseになる。
func ParseMigrateAction(args []string) (MigrateAction, bool) {
	if len(args) == 0 {
		return MigrateUp, true
	}
	switch MigrateAction(args[0]) {
	case MigrateUp, MigrateDown, MigrateVersion:
		return MigrateAction(args[0]), true
	default:
		return "", false
	}
}
