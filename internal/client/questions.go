package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/mind-engage/labeld/internal/dataset"
)

func (c *Client) ListQuestions(ctx context.Context, datasetID string) ([]dataset.Question, error) {
	var out struct {
		Questions []dataset.Question `json:"questions"`
	}
	err := c.do(ctx, http.MethodGet, "/questions/dataset/"+url.PathEscape(datasetID), nil, &out)
	return out.Questions, err
}

func (c *Client) CreateQuestion(ctx context.Context, q dataset.QuestionInput) (dataset.Question, error) {
	var out struct {
		Question dataset.Question `json:"question"`
	}
	err := c.do(ctx, http.MethodPost, "/questions", q, &out)
	return out.Question, err
}

func (c *Client) UpdateQuestion(ctx context.Context, id string, q dataset.QuestionInput) (dataset.Question, error) {
	var out struct {
		Question dataset.Question `json:"question"`
	}
	err := c.do(ctx, http.MethodPut, "/questions/"+url.PathEscape(id), q, &out)
	return out.Question, err
}

func (c *Client) DeleteQuestion(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/questions/"+url.PathEscape(id), nil, nil)
}

// ReplaceQuestions deletes every question of the dataset and recreates qs in
// order. The backend has no bulk endpoint, so a failure part way leaves the
// dataset with the questions processed so far.
func (c *Client) ReplaceQuestions(ctx context.Context, datasetID string, qs []dataset.QuestionInput) error {
	existing, err := c.ListQuestions(ctx, datasetID)
	if err != nil {
		return err
	}
	for _, q := range existing {
		if err := c.DeleteQuestion(ctx, q.ID); err != nil {
			return err
		}
	}
	for _, q := range qs {
		q.DatasetID = datasetID
		if _, err := c.CreateQuestion(ctx, q); err != nil {
			return err
		}
	}
	return nil
}
