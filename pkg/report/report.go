package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"

	"github.com/shouni/go-flowql/pkg/types"
)

// 出力形式
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
	FormatCSV   = "csv"
)

// セルの表示記号
const (
	SymbolMatched = "✓"
	SymbolMissed  = "✗"
	SymbolFailed  = "Fail"
)

// CSV のセル値
const (
	CellPass = "pass"
	CellFail = "fail"
)

// Formats は利用できる出力形式の一覧です。
func Formats() []string {
	return []string{FormatTable, FormatJSON, FormatYAML, FormatCSV}
}

// EngineColumns は結果の列順のエンジン名を返します。結果が空の場合は fallback を返します。
func EngineColumns(results []types.VerificationResult, fallback []string) []string {
	if len(results) == 0 {
		return fallback
	}
	cols := make([]string, len(results[0].PerEngineResult))
	for i, r := range results[0].PerEngineResult {
		cols[i] = r.EngineName
	}
	return cols
}

// Symbol はセルの表示記号を返します。
func Symbol(r types.EngineResult) string {
	switch {
	case r.Status != types.StatusOK:
		return SymbolFailed
	case r.Matched:
		return SymbolMatched
	default:
		return SymbolMissed
	}
}

// ResponseTime は、エンジンを呼び出したセルの応答時間表記 ("1234ms") を返します。
// 呼び出していないセルは空文字列です。
func ResponseTime(r types.EngineResult) string {
	if r.Unavailable {
		return ""
	}
	return fmt.Sprintf("%dms", r.ResponseTimeMs)
}

// ----------------------------------------------------------------------
// CSV
// ----------------------------------------------------------------------

// CSVOption は CSV 出力の設定を行う関数です。
type CSVOption func(*csvOptions)

type csvOptions struct {
	responseTimes bool
}

// WithResponseTimes は、pass/fail 列の後ろにエンジンごとの応答時間 (ミリ秒) の列を追加します。
func WithResponseTimes() CSVOption {
	return func(o *csvOptions) { o.responseTimes = true }
}

// WriteCSV は、1行1質問・1列1エンジンの pass/fail 表を書き出します。
func WriteCSV(w io.Writer, results []types.VerificationResult, engines []string, opts ...CSVOption) error {
	var o csvOptions
	for _, opt := range opts {
		opt(&o)
	}
	cw := csv.NewWriter(w)

	cols := EngineColumns(results, engines)
	header := append([]string{"Question"}, cols...)
	if o.responseTimes {
		for _, name := range cols {
			header = append(header, name+" ms")
		}
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("CSVヘッダーの書き込みに失敗しました: %w", err)
	}
	for _, r := range results {
		row := make([]string, 0, 2*len(r.PerEngineResult)+1)
		row = append(row, r.Question)
		for _, c := range r.PerEngineResult {
			if c.Matched {
				row = append(row, CellPass)
			} else {
				row = append(row, CellFail)
			}
		}
		if o.responseTimes {
			for _, c := range r.PerEngineResult {
				if c.Unavailable {
					row = append(row, "")
				} else {
					row = append(row, strconv.FormatInt(c.ResponseTimeMs, 10))
				}
			}
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("CSV行の書き込みに失敗しました: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ----------------------------------------------------------------------
// JSON / YAML
// ----------------------------------------------------------------------

// WriteJSON は値をインデント付きJSONで書き出します。
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("JSONの書き込みに失敗しました: %w", err)
	}
	return nil
}

// WriteYAML は値をYAMLで書き出します。
func WriteYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("YAMLの書き込みに失敗しました: %w", err)
	}
	return enc.Close()
}

// ----------------------------------------------------------------------
// ターミナル表
// ----------------------------------------------------------------------

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	matchedStyle = cellStyle.Foreground(lipgloss.Color("10"))
	missedStyle  = cellStyle.Foreground(lipgloss.Color("9"))
	failedStyle  = cellStyle.Foreground(lipgloss.Color("8"))
	titleStyle   = lipgloss.NewStyle().Bold(true)
)

// RenderMatrix は比較表を ✓ / ✗ / Fail と応答時間で描画します。
func RenderMatrix(results []types.VerificationResult, engines []string) string {
	cols := EngineColumns(results, engines)
	rows := make([][]string, 0, len(results))
	// 色分けは表示文字列ではなく記号で行う
	symbols := make([][]string, 0, len(results))
	for _, r := range results {
		row := []string{r.Question}
		sym := []string{""}
		for _, c := range r.PerEngineResult {
			s := Symbol(c)
			cell := s
			if rt := ResponseTime(c); rt != "" {
				cell += " " + rt
			}
			row = append(row, cell)
			sym = append(sym, s)
		}
		rows = append(rows, row)
		symbols = append(symbols, sym)
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(append([]string{"Question"}, cols...)...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 0 || row < 0 || row >= len(symbols) || col >= len(symbols[row]) {
				return cellStyle
			}
			switch symbols[row][col] {
			case SymbolMatched:
				return matchedStyle
			case SymbolMissed:
				return missedStyle
			default:
				return failedStyle
			}
		})
	return t.String()
}

// RenderReport は、レポート全体をターミナル向けに描画します。
func RenderReport(r *types.Report, engines []string) string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render(r.URL))
	if r.Cached {
		sb.WriteString(" (cached)")
	}
	sb.WriteString("\n\n")

	p := r.Profile
	fields := [][2]string{
		{"Company", p.CompanyName},
		{"What they do", p.WhatTheyDo},
		{"Who they serve", p.WhoTheyServe},
		{"Location", p.CityAndCountry},
		{"Services", p.ServicesOffered},
		{"Pricing", p.Pricing},
		{"Industry", p.Industry},
		{"Business model", p.BusinessModel},
		{"Business type", strings.TrimSpace(r.BusinessType.Type + " " + r.BusinessType.Audience)},
		{"Words", fmt.Sprintf("%d (%s)", r.Stats.WordCount, r.Stats.AnalysisFlag)},
	}
	for _, f := range fields {
		fmt.Fprintf(&sb, "%-15s %s\n", f[0]+":", f[1])
	}
	if r.SummaryDegraded != "" {
		fmt.Fprintf(&sb, "%-15s %s\n", "Summary:", "degraded ("+r.SummaryDegraded+")")
	}
	if r.PageSpeed != nil {
		fmt.Fprintf(&sb, "%-15s perf %d / a11y %d / bp %d / seo %d\n", "PageSpeed:",
			r.PageSpeed.PerformanceScore, r.PageSpeed.AccessibilityScore, r.PageSpeed.BestPracticesScore, r.PageSpeed.SEOScore)
	}

	if len(r.Results) > 0 {
		sb.WriteString("\n")
		sb.WriteString(RenderMatrix(r.Results, engines))
		sb.WriteString("\n")
	}
	return sb.String()
}

// Write は、指定された形式でレポートを書き出します。
// csvOpts は CSV 形式のときだけ使われます。
func Write(w io.Writer, format string, r *types.Report, engines []string, csvOpts ...CSVOption) error {
	switch strings.ToLower(format) {
	case FormatTable, "":
		_, err := io.WriteString(w, RenderReport(r, engines))
		return err
	case FormatJSON:
		return WriteJSON(w, r)
	case FormatYAML:
		return WriteYAML(w, r)
	case FormatCSV:
		return WriteCSV(w, r.Results, engines, csvOpts...)
	default:
		return fmt.Errorf("未対応の出力形式です: %q (%s)", format, strings.Join(Formats(), "|"))
	}
}
