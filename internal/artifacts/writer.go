// Package artifacts writes point-in-time price-book and arbitrage
// snapshots to disk as JSON and CSV, atomically (write to a temp file,
// then rename), for offline debugging and audit trails. Grounded on the
// teacher's infrastructure artifact writer, narrowed from its
// scanning-universe report shape down to this module's book/arbitrage
// domain.
package artifacts

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"venuequote/internal/arbitrage"
	"venuequote/internal/quote"
)

// Writer atomically persists book and arbitrage snapshots under BaseDir.
type Writer struct {
	BaseDir string
}

// NewWriter constructs a Writer. An empty baseDir defaults to
// "artifacts/snapshots".
func NewWriter(baseDir string) *Writer {
	if baseDir == "" {
		baseDir = "artifacts/snapshots"
	}
	return &Writer{BaseDir: baseDir}
}

// WriteBookSnapshot writes the full price book as both JSON and CSV,
// timestamped and prefixed, returning the two file paths written.
func (w *Writer) WriteBookSnapshot(book map[string]map[string]quote.Quote, prefix string) (jsonPath, csvPath string, err error) {
	if err := w.ensureDir(); err != nil {
		return "", "", fmt.Errorf("ensure dir: %w", err)
	}
	ts := time.Now().UTC().Format("20060102-150405")

	jsonPath = filepath.Join(w.BaseDir, fmt.Sprintf("%s-%s-book.json", ts, prefix))
	if err := writeJSONAtomic(jsonPath, book); err != nil {
		return "", "", fmt.Errorf("write book json: %w", err)
	}

	rows := bookToCSVRows(book)
	csvPath = filepath.Join(w.BaseDir, fmt.Sprintf("%s-%s-book.csv", ts, prefix))
	if err := writeCSVAtomic(csvPath, rows); err != nil {
		return "", "", fmt.Errorf("write book csv: %w", err)
	}
	return jsonPath, csvPath, nil
}

// WriteArbitrageReport writes a set of opportunities for one symbol as
// both JSON and CSV, returning the two file paths written.
func (w *Writer) WriteArbitrageReport(symbol string, opps []arbitrage.Opportunity, prefix string) (jsonPath, csvPath string, err error) {
	if err := w.ensureDir(); err != nil {
		return "", "", fmt.Errorf("ensure dir: %w", err)
	}
	ts := time.Now().UTC().Format("20060102-150405")

	jsonPath = filepath.Join(w.BaseDir, fmt.Sprintf("%s-%s-arbitrage.json", ts, prefix))
	if err := writeJSONAtomic(jsonPath, opps); err != nil {
		return "", "", fmt.Errorf("write arbitrage json: %w", err)
	}

	rows := arbitrageToCSVRows(symbol, opps)
	csvPath = filepath.Join(w.BaseDir, fmt.Sprintf("%s-%s-arbitrage.csv", ts, prefix))
	if err := writeCSVAtomic(csvPath, rows); err != nil {
		return "", "", fmt.Errorf("write arbitrage csv: %w", err)
	}
	return jsonPath, csvPath, nil
}

func bookToCSVRows(book map[string]map[string]quote.Quote) [][]string {
	rows := [][]string{{"symbol", "exchange", "last", "bid", "ask", "recv_ts_ms"}}
	symbols := make([]string, 0, len(book))
	for s := range book {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	for _, symbol := range symbols {
		exchanges := make([]string, 0, len(book[symbol]))
		for ex := range book[symbol] {
			exchanges = append(exchanges, ex)
		}
		sort.Strings(exchanges)
		for _, ex := range exchanges {
			q := book[symbol][ex]
			rows = append(rows, []string{
				symbol, ex,
				strconv.FormatFloat(q.Last, 'f', 8, 64),
				strconv.FormatFloat(q.Bid, 'f', 8, 64),
				strconv.FormatFloat(q.Ask, 'f', 8, 64),
				strconv.FormatInt(q.RecvTsMs, 10),
			})
		}
	}
	return rows
}

func arbitrageToCSVRows(symbol string, opps []arbitrage.Opportunity) [][]string {
	rows := [][]string{{"symbol", "buy_exchange", "sell_exchange", "buy_price", "sell_price", "spread_pct"}}
	for _, o := range opps {
		rows = append(rows, []string{
			symbol, o.BuyExchange, o.SellExchange,
			strconv.FormatFloat(o.BuyPrice, 'f', 8, 64),
			strconv.FormatFloat(o.SellPrice, 'f', 8, 64),
			strconv.FormatFloat(o.SpreadPct, 'f', 6, 64),
		})
	}
	return rows
}

func writeJSONAtomic(finalPath string, v interface{}) error {
	tempPath := finalPath + ".tmp"
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename temp to final: %w", err)
	}
	return nil
}

func writeCSVAtomic(finalPath string, rows [][]string) error {
	tempPath := finalPath + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	writer := csv.NewWriter(file)
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			file.Close()
			os.Remove(tempPath)
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("flush csv: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename temp to final: %w", err)
	}
	return nil
}

func (w *Writer) ensureDir() error {
	return os.MkdirAll(w.BaseDir, 0o755)
}
