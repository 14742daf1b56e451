package api

import (
	"context"
	"net/http"
)

// TimeSeries calls POST /v1/analysis/timeseries.
func (c *Client) TimeSeries(ctx context.Context, req TimeSeriesRequest) (*TimeSeriesResponse, error) {
	body, err := jsonBody(req)
	if err != nil {
		return nil, err
	}
	var out TimeSeriesResponse
	if err := c.do(ctx, http.MethodPost, "/v1/analysis/timeseries", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Pareto calls POST /v1/analysis/pareto.
func (c *Client) Pareto(ctx context.Context, req ParetoRequest) (*ParetoResponse, error) {
	body, err := jsonBody(req)
	if err != nil {
		return nil, err
	}
	var out ParetoResponse
	if err := c.do(ctx, http.MethodPost, "/v1/analysis/pareto", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Histogram calls POST /v1/analysis/histogram.
func (c *Client) Histogram(ctx context.Context, req HistogramRequest) (*HistogramResponse, error) {
	body, err := jsonBody(req)
	if err != nil {
		return nil, err
	}
	var out HistogramResponse
	if err := c.do(ctx, http.MethodPost, "/v1/analysis/histogram", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
