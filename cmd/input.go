package cmd

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/shouni/go-flowql/pkg/report"
)

// readLines は、空行を除いた行を読み込みます。
func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("標準入力の読み取りエラー: %w", err)
	}
	return lines, nil
}

// splitList は、カンマ区切りの文字列を空要素を除いて分割します。
func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// resolveURLInput は、フラグで指定されたURL、なければ標準入力の1行目を返します。
func resolveURLInput(flagValue string, stdin io.Reader) (string, error) {
	if u := strings.TrimSpace(flagValue); u != "" {
		return u, nil
	}
	log.Println("URLが指定されていないため、標準入力からURLを読み込みます...")
	lines, err := readLines(stdin)
	if err != nil {
		return "", err
	}
	if len(lines) == 0 {
		return "", fmt.Errorf("URLが入力されていません")
	}
	return lines[0], nil
}

// checkFormat は、出力形式が allowed に含まれるかを確認します。
func checkFormat(format string, allowed ...string) error {
	for _, f := range allowed {
		if strings.EqualFold(format, f) {
			return nil
		}
	}
	return fmt.Errorf("未対応の出力形式です: %q (%s)", format, strings.Join(allowed, "|"))
}

// writeStructured は、json または yaml 形式で v を出力します。
func writeStructured(w io.Writer, format string, v any) error {
	if strings.EqualFold(format, report.FormatYAML) {
		return report.WriteYAML(w, v)
	}
	return report.WriteJSON(w, v)
}

// csvOptions は --timings フラグを CSV 出力の設定に変換します。
func csvOptions(timings bool) []report.CSVOption {
	if !timings {
		return nil
	}
	return []report.CSVOption{report.WithResponseTimes()}
}
