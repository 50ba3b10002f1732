package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/mind-engage/labeld/internal/dataset"
)

// SubmitBatch records all answers of one sitting as one submission.
func (c *Client) SubmitBatch(ctx context.Context, req dataset.BatchRequest) error {
	return c.do(ctx, http.MethodPost, "/answers/batch", req, nil)
}

// MyAnswers lists the current user's earlier answers on a dataset.
func (c *Client) MyAnswers(ctx context.Context, datasetID string) ([]dataset.Answer, error) {
	var out struct {
		Answers []dataset.Answer `json:"answers"`
	}
	err := c.do(ctx, http.MethodGet, "/answers/my-answers/"+url.PathEscape(datasetID), nil, &out)
	return out.Answers, err
}
