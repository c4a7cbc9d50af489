package main

import "github.com/shouni/go-flowql/cmd"

// main は、CLI のエントリポイントです。エラー処理と終了コードは cmd.Execute が扱います。
func main() {
	cmd.Execute()
}
