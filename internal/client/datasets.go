package client

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"

	"github.com/mind-engage/labeld/internal/answertype"
	"github.com/mind-engage/labeld/internal/dataset"
)

func (c *Client) ListDatasets(ctx context.Context) ([]dataset.Dataset, error) {
	var out struct {
		Datasets []dataset.Dataset `json:"datasets"`
	}
	err := c.do(ctx, http.MethodGet, "/datasets", nil, &out)
	return out.Datasets, err
}

func (c *Client) GetDataset(ctx context.Context, id string) (dataset.Dataset, error) {
	var out struct {
		Dataset dataset.Dataset `json:"dataset"`
	}
	err := c.do(ctx, http.MethodGet, "/datasets/"+url.PathEscape(id), nil, &out)
	return out.Dataset, err
}

// createQuestion is the question shape the create endpoint expects.
type createQuestion struct {
	Text       string          `json:"text"`
	AnswerType answertype.Kind `json:"answerType"`
	Options    []string        `json:"options"`
}

// CreateDataset creates a dataset together with its questions.
func (c *Client) CreateDataset(ctx context.Context, in dataset.Input) (dataset.Dataset, error) {
	body := struct {
		Name        string           `json:"name"`
		Description string           `json:"description"`
		FileType    dataset.FileType `json:"file_type"`
		IsPublished bool             `json:"is_published"`
		Questions   []createQuestion `json:"questions"`
	}{in.Name, in.Description, in.FileType, in.IsPublished, make([]createQuestion, len(in.Questions))}
	for i, q := range in.Questions {
		body.Questions[i] = createQuestion{Text: q.Text, AnswerType: q.AnswerType, Options: q.Options}
	}
	var out struct {
		Dataset dataset.Dataset `json:"dataset"`
	}
	err := c.do(ctx, http.MethodPost, "/datasets", body, &out)
	return out.Dataset, err
}

// UpdateDataset sends a full or partial update (dataset.Input or dataset.Patch).
func (c *Client) UpdateDataset(ctx context.Context, id string, update any) error {
	return c.do(ctx, http.MethodPut, "/datasets/"+url.PathEscape(id), update, nil)
}

func (c *Client) DeleteDataset(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/datasets/"+url.PathEscape(id), nil, nil)
}

// Upload is one file to send in a multipart upload.
type Upload struct {
	FileName    string
	ContentType string
	Body        io.Reader
}

// UploadFiles streams files to the dataset as multipart field "files".
func (c *Client) UploadFiles(ctx context.Context, datasetID string, files []Upload) ([]dataset.File, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeParts(mw, files))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/datasets/"+url.PathEscape(datasetID)+"/files"), pr)
	if err != nil {
		pr.Close()
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	var out struct {
		Files []dataset.File `json:"files"`
	}
	err = c.send(req, &out)
	pr.Close()
	return out.Files, err
}

func writeParts(mw *multipart.Writer, files []Upload) error {
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename=%q`, f.FileName))
		ct := f.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := mw.CreatePart(h)
		if err != nil {
			return err
		}
		if _, err := io.Copy(part, f.Body); err != nil {
			return fmt.Errorf("copy %s: %w", f.FileName, err)
		}
	}
	return mw.Close()
}

func (c *Client) DeleteFile(ctx context.Context, datasetID, fileID string) error {
	return c.do(ctx, http.MethodDelete, "/datasets/"+url.PathEscape(datasetID)+"/files/"+url.PathEscape(fileID), nil, nil)
}

// DatasetAnswers lists every submission of a dataset (admin only upstream).
func (c *Client) DatasetAnswers(ctx context.Context, id string) (dataset.AnswersPage, error) {
	var out dataset.AnswersPage
	err := c.do(ctx, http.MethodGet, "/datasets/"+url.PathEscape(id)+"/answers", nil, &out)
	return out, err
}
