package formulas

// CalculateMaxDrawdown calculates the maximum peak-to-trough drawdown from a
// price series, as a positive fraction (0.25 = 25% loss from peak).
// Returns nil with fewer than 2 prices.
func CalculateMaxDrawdown(prices []float64) *float64 {
	if len(prices) < 2 {
		return nil
	}

	maxDrawdown := 0.0
	peak := prices[0]

	for _, price := range prices {
		if price > peak {
			peak = price
		}
		if peak > 0 {
			drawdown := (peak - price) / peak
			if drawdown > maxDrawdown {
				maxDrawdown = drawdown
			}
		}
	}

	return &maxDrawdown
}

// Calculate52WeekHigh finds the highest price over the last 252 trading days.
func Calculate52WeekHigh(prices []float64) *float64 {
	return CalculateSwingHigh(tail252(prices), min252(prices))
}

// Calculate52WeekLow finds the lowest price over the last 252 trading days.
func Calculate52WeekLow(prices []float64) *float64 {
	return CalculateSwingLow(tail252(prices), min252(prices))
}

func tail252(prices []float64) []float64 {
	if len(prices) > 252 {
		return prices[len(prices)-252:]
	}
	return prices
}

func min252(prices []float64) int {
	if len(prices) > 252 {
		return 252
	}
	return len(prices)
}

// CalculateMomentum calculates the fractional price change over the last
// days bars. Returns nil when history is too short or the base price is 0.
func CalculateMomentum(prices []float64, days int) *float64 {
	if len(prices) < days+1 {
		return nil
	}

	start := prices[len(prices)-days-1]
	end := prices[len(prices)-1]
	if start == 0 {
		return nil
	}

	momentum := (end - start) / start
	return &momentum
}

// CalculateVolatility calculates annualized volatility from daily prices.
func CalculateVolatility(prices []float64) *float64 {
	if len(prices) < 2 {
		return nil
	}

	vol := AnnualizedVolatility(CalculateReturns(prices))
	return &vol
}

// CalculateVolatilityWindow calculates volatility over the last days bars.
func CalculateVolatilityWindow(prices []float64, days int) *float64 {
	if len(prices) < days+1 {
		return nil
	}
	return CalculateVolatility(prices[len(prices)-days:])
}
