package exchange

import (
	"time"

	"github.com/shopspring/decimal"
)

// PortfolioDetail is the lead's public profile plus its 30-day
// performance block. Every field the exchange may omit is a pointer;
// absence is a first-class state here, never an error.
type PortfolioDetail struct {
	LeadPortfolioID  string           `json:"leadPortfolioId"`
	Nickname         string           `json:"nickname"`
	PositionShow     *bool            `json:"positionShow"`
	AumAmount        *decimal.Decimal `json:"aumAmount"`
	Roi              *decimal.Decimal `json:"roi"`
	Pnl              *decimal.Decimal `json:"pnl"`
	Mdd              *decimal.Decimal `json:"mdd"`
	WinRate          *decimal.Decimal `json:"winRate"`
	SharpRatio       *decimal.Decimal `json:"sharpRatio"`
	CurrentCopyCount *int             `json:"currentCopyCount"`
}

// RoiPoint is one sample of the lead's ROI time series.
type RoiPoint struct {
	DateTime int64            `json:"dateTime"`
	Value    *decimal.Decimal `json:"value"`
}

// LeadOrder is one historical fill. Side is BUY/SELL; PositionSide is
// LONG/SHORT, so (Side, PositionSide) encodes open-long, close-long,
// open-short, and close-short.
type LeadOrder struct {
	OrderID      string           `json:"orderId"`
	Symbol       string           `json:"symbol"`
	Side         string           `json:"side"`
	PositionSide string           `json:"positionSide"`
	ExecutedQty  *decimal.Decimal `json:"executedQty"`
	AvgPrice     *decimal.Decimal `json:"avgPrice"`
	Leverage     *decimal.Decimal `json:"leverage"`
	Time         int64            `json:"time"`
}

// OrderedTime converts the exchange's millisecond timestamp.
func (o LeadOrder) OrderedTime() time.Time {
	return time.UnixMilli(o.Time).UTC()
}

// OrderHistory is the normalized order-history page.
type OrderHistory struct {
	Total     int64       `json:"total"`
	AllOrders []LeadOrder `json:"allOrders"`
}

// LeadPosition is one row of a visible lead's live position feed.
type LeadPosition struct {
	Symbol           string           `json:"symbol"`
	PositionSide     string           `json:"positionSide"`
	PositionAmount   *decimal.Decimal `json:"positionAmount"`
	EntryPrice       *decimal.Decimal `json:"entryPrice"`
	MarkPrice        *decimal.Decimal `json:"markPrice"`
	Leverage         *decimal.Decimal `json:"leverage"`
	UnrealizedProfit *decimal.Decimal `json:"unrealizedProfit"`
}

// CoinPnl is the per-coin PnL breakdown of the asset-preference feed.
type CoinPnl struct {
	Coin string           `json:"coin"`
	Pnl  *decimal.Decimal `json:"pnl"`
}

// AssetPreference summarizes which assets the lead trades and how each
// has performed.
type AssetPreference struct {
	PnlByCoin []CoinPnl `json:"pnlList"`
}

// LeadPayload is the single normalized payload per lead. Any field may
// be nil/absent when its sub-request failed; the payload itself is
// always produced.
type LeadPayload struct {
	LeadID           string           `json:"leadId"`
	PortfolioDetail  *PortfolioDetail `json:"portfolioDetail"`
	RoiSeries        []RoiPoint       `json:"roiSeries"`
	OrderHistory     *OrderHistory    `json:"orderHistory"`
	ActivePositions  []LeadPosition   `json:"activePositions"`
	AssetPreferences *AssetPreference `json:"assetPreferences"`
	FetchedAt        time.Time        `json:"fetchedAt"`
}
