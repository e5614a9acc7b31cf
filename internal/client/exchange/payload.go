package exchange

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// FetchLeadPayload aggregates the five per-lead sub-requests into one
// payload. Sub-requests run in parallel, each bounded by timeout, and
// each is independently fallible: a failed sub-request leaves its field
// nil and adds a soft error. The payload itself is always returned;
// retrying is the scheduler's job on the next tick, never the client's.
func (c *Client) FetchLeadPayload(ctx context.Context, leadID string, orderPageSize int, timeout time.Duration) (*LeadPayload, []error) {
	payload := &LeadPayload{
		LeadID:    leadID,
		FetchedAt: time.Now().UTC(),
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	var (
		mu   sync.Mutex
		errs []error
		wg   sync.WaitGroup
	)
	soft := func(field string, err error) {
		mu.Lock()
		errs = append(errs, fmt.Errorf("%s: %w", field, err))
		mu.Unlock()
	}

	run := func(fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			subCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			fn(subCtx)
		}()
	}

	run(func(subCtx context.Context) {
		detail, err := c.GetPortfolioDetail(subCtx, leadID)
		if err != nil {
			soft("portfolio_detail", err)
			return
		}
		payload.PortfolioDetail = detail
	})
	run(func(subCtx context.Context) {
		series, err := c.GetRoiSeries(subCtx, leadID)
		if err != nil {
			soft("roi_series", err)
			return
		}
		payload.RoiSeries = series
	})
	run(func(subCtx context.Context) {
		history, err := c.GetOrderHistory(subCtx, leadID, orderPageSize)
		if err != nil {
			soft("order_history", err)
			return
		}
		payload.OrderHistory = history
	})
	run(func(subCtx context.Context) {
		positions, err := c.GetPositions(subCtx, leadID)
		if err != nil {
			soft("active_positions", err)
			return
		}
		payload.ActivePositions = positions
	})
	run(func(subCtx context.Context) {
		prefs, err := c.GetAssetPreference(subCtx, leadID)
		if err != nil {
			soft("asset_preferences", err)
			return
		}
		payload.AssetPreferences = prefs
	})

	wg.Wait()
	return payload, errs
}
