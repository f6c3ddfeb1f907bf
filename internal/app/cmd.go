package app

import (
	"fmt"
	"strconv"

	"github.com/hitoshi/passbook/internal/statement"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandWorker は通知送信とクリーンアップのワーカーモードで起動することを示す。
	CommandWorker Command = "worker"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
	// CommandSeed は指定した商品にランダムな取引を記帳することを示す。
	CommandSeed Command = "seed"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch args[0] {
	case "worker":
		return CommandWorker
	case "serve":
		return CommandServe
	case "migrate":
		return CommandMigrate
	case "healthcheck":
		return CommandHealthcheck
	case "seed":
		return CommandSeed
	default:
		return CommandServe
	}
}

// SeedArgs はseedサブコマンドの引数。
type SeedArgs struct {
	ProductID string
	Count     int
}

// ParseSeedArgs は `seed <product_id> [count]` の引数を解析する。
// countを省略した場合は10件とする。
func ParseSeedArgs(args []string) (SeedArgs, error) {
	if len(args) == 0 || args[0] == "" {
		return SeedArgs{}, fmt.Errorf("usage: seed <product_id> [count]")
	}

	out := SeedArgs{ProductID: args[0], Count: statement.DefaultCount}
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 1 {
			return SeedArgs{}, fmt.Errorf("count must be a positive integer: %q", args[1])
		}
		out.Count = n
	}
	return out, nil
}
