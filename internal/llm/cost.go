package llm

// PricePerMillion holds per-million-token USD prices for one model, split
// by token category since cache reads/writes are commonly priced well below
// fresh input tokens.
type PricePerMillion struct {
	Input      float64
	Output     float64
	CacheRead  float64
	CacheWrite float64
}

// PricingTable maps a model identifier to its price sheet. The caller
// supplies the table; internal/config has no pricing options, and cmd/aided
// passes an empty table, so every call it makes prices at zero.
type PricingTable map[string]PricePerMillion

// Cost computes the USD cost of one LLM call. Unknown models price at zero
// rather than erroring; telemetry still records token counts, and a
// missing price entry is recoverable by updating configuration, not a
// reason to fail the turn.
func Cost(table PricingTable, model string, u Usage) float64 {
	price, ok := table[model]
	if !ok {
		return 0
	}
	const million = 1_000_000.0
	return float64(u.InputTokens)*price.Input/million +
		float64(u.OutputTokens)*price.Output/million +
		float64(u.CacheReadTokens)*price.CacheRead/million +
		float64(u.CacheWriteTokens)*price.CacheWrite/million
}
