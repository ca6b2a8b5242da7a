package analytics

import "errors"

// ErrNoTrades is returned when a backtest window produces no completed
// round trips.
var ErrNoTrades = errors.New("no completed trades")

// TradeDirection is the side of a spread position.
type TradeDirection string

// Trade directions. Long buys the spread below -entryZ, short sells it
// above +entryZ.
const (
	TradeLong  TradeDirection = "long"
	TradeShort TradeDirection = "short"
)

// Trade is one completed round trip on the spread.
type Trade struct {
	Direction      TradeDirection
	EntryTimestamp int64
	EntryZ         float64
	EntrySpread    float64
	ExitTimestamp  int64
	ExitZ          float64
	ExitSpread     float64
	PnL            float64
}

// BacktestResult summarizes a mean-reversion backtest over a spread series.
type BacktestResult struct {
	SymbolA       string
	SymbolB       string
	EntryZ        float64
	ExitZ         float64
	TotalTrades   int
	WinningTrades int
	WinRate       float64
	TotalPnL      float64
	AvgPnL        float64
	Sharpe        float64 // avg PnL over PnL stddev; 0 when undefined
	MaxWin        float64
	MaxLoss       float64
	Trades        []Trade
}

// BacktestMeanReversion walks a spread's z-score series with a simple
// mean-reversion rule: enter short above +entryZ, enter long below
// -entryZ, exit a long once z rises past exitZ and a short once z falls
// past -exitZ. PnL is measured in spread units, one unit per trade.
// A position still open at the end of the window is discarded.
func BacktestMeanReversion(spread *SpreadResult, entryZ, exitZ float64) (*BacktestResult, error) {
	var trades []Trade
	position := 0 // +1 long, -1 short, 0 flat
	var open Trade

	for _, pt := range spread.Series {
		z := pt.ZScore

		if position == 0 {
			switch {
			case z > entryZ:
				position = -1
				open = Trade{Direction: TradeShort, EntryTimestamp: pt.Timestamp, EntryZ: z, EntrySpread: pt.Spread}
			case z < -entryZ:
				position = 1
				open = Trade{Direction: TradeLong, EntryTimestamp: pt.Timestamp, EntryZ: z, EntrySpread: pt.Spread}
			}
			continue
		}

		if (position == 1 && z > exitZ) || (position == -1 && z < -exitZ) {
			open.ExitTimestamp = pt.Timestamp
			open.ExitZ = z
			open.ExitSpread = pt.Spread
			open.PnL = (pt.Spread - open.EntrySpread) * float64(position)
			trades = append(trades, open)
			position = 0
		}
	}

	if len(trades) == 0 {
		return nil, ErrNoTrades
	}

	result := &BacktestResult{
		SymbolA:     spread.SymbolA,
		SymbolB:     spread.SymbolB,
		EntryZ:      entryZ,
		ExitZ:       exitZ,
		TotalTrades: len(trades),
		MaxWin:      trades[0].PnL,
		MaxLoss:     trades[0].PnL,
		Trades:      trades,
	}

	pnls := make([]float64, len(trades))
	for i, tr := range trades {
		pnls[i] = tr.PnL
		result.TotalPnL += tr.PnL
		if tr.PnL > 0 {
			result.WinningTrades++
		}
		if tr.PnL > result.MaxWin {
			result.MaxWin = tr.PnL
		}
		if tr.PnL < result.MaxLoss {
			result.MaxLoss = tr.PnL
		}
	}

	result.WinRate = float64(result.WinningTrades) / float64(result.TotalTrades)
	result.AvgPnL = result.TotalPnL / float64(result.TotalTrades)
	if std := sampleStdDev(pnls); std > 0 {
		result.Sharpe = result.AvgPnL / std
	}

	return result, nil
}
