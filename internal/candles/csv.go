// Package candles loads the 1-second BTC/USD OHLC history the Matrix
// Builder folds into a Matrix (spec §4.C), from a plain CSV file so `build`
// and `backtest` don't need a live exchange connection.
package candles

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mselser95/btc15m-maker/pkg/types"
)

// LoadCSV reads candles from path. Expected columns, no header:
// timestamp (RFC3339), open, high, low, close.
func LoadCSV(path string) ([]types.Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open candle history %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 5

	var out []types.Candle
	line := 0
	for {
		line++
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read candle history %s line %d: %w", path, line, err)
		}

		c, err := parseRecord(record)
		if err != nil {
			return nil, fmt.Errorf("parse candle history %s line %d: %w", path, line, err)
		}
		out = append(out, c)
	}

	return out, nil
}

func parseRecord(record []string) (types.Candle, error) {
	ts, err := time.Parse(time.RFC3339, record[0])
	if err != nil {
		return types.Candle{}, fmt.Errorf("parse timestamp %q: %w", record[0], err)
	}

	open, err := decimal.NewFromString(record[1])
	if err != nil {
		return types.Candle{}, fmt.Errorf("parse open %q: %w", record[1], err)
	}
	high, err := decimal.NewFromString(record[2])
	if err != nil {
		return types.Candle{}, fmt.Errorf("parse high %q: %w", record[2], err)
	}
	low, err := decimal.NewFromString(record[3])
	if err != nil {
		return types.Candle{}, fmt.Errorf("parse low %q: %w", record[3], err)
	}
	closePrice, err := decimal.NewFromString(record[4])
	if err != nil {
		return types.Candle{}, fmt.Errorf("parse close %q: %w", record[4], err)
	}

	return types.Candle{
		Timestamp: ts.UTC(),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePrice,
	}, nil
}
