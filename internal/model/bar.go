package model

// Bar represents one symbol-day observation on the back-adjusted price scale.
// Shared by replay, reconciliation, the engine and the exporters (json, parquet).
type Bar struct {
	Code        uint32  `json:"code" parquet:"code"`
	Dt          int32   `json:"dt" parquet:"dt"` // days since 1970-01-01
	Preclose    float64 `json:"preclose" parquet:"preclose"`
	Open        float64 `json:"open" parquet:"open"`
	High        float64 `json:"high" parquet:"high"`
	Low         float64 `json:"low" parquet:"low"`
	Close       float64 `json:"close" parquet:"close"`
	Netvalue    float64 `json:"netvalue" parquet:"netvalue"`
	Volume      float64 `json:"volume" parquet:"volume"` // raw units, never adjusted
	Amount      float64 `json:"amount" parquet:"amount"`
	TradesCount int64   `json:"trades_count" parquet:"trades_count"`
	Turnover    float64 `json:"turnover" parquet:"turnover"`
}

// VWAP returns amount/volume, or 0 when there is no volume.
func (b Bar) VWAP() float64 {
	if b.Volume == 0 {
		return 0
	}
	return b.Amount / b.Volume
}
