package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
)

// Upload sends a CSV/XLSX file as multipart form data. When SessionID is set
// the backend attaches the dataset to that session, otherwise it creates a
// new anonymous session and returns its id.
func (c *Client) Upload(ctx context.Context, in UploadRequest) (*UploadResult, error) {
	if len(in.Content) == 0 {
		return nil, errors.New("upload: file content is empty")
	}
	name := filepath.Base(in.FileName)
	if name == "." || name == string(filepath.Separator) || name == "" {
		name = "uploaded"
	}
	body := func() (io.Reader, string, error) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("file", name)
		if err != nil {
			return nil, "", fmt.Errorf("multipart file: %w", err)
		}
		if _, err := fw.Write(in.Content); err != nil {
			return nil, "", fmt.Errorf("multipart file: %w", err)
		}
		fields := []struct{ key, val string }{
			{"session_id", in.SessionID.String()},
			{"sheet_name", in.SheetName},
			{"name", in.Name},
		}
		for _, f := range fields {
			if f.val == "" {
				continue
			}
			if err := mw.WriteField(f.key, f.val); err != nil {
				return nil, "", fmt.Errorf("multipart field %s: %w", f.key, err)
			}
		}
		if err := mw.Close(); err != nil {
			return nil, "", fmt.Errorf("multipart close: %w", err)
		}
		return &buf, mw.FormDataContentType(), nil
	}
	var out UploadResult
	if err := c.doOnce(ctx, http.MethodPost, "/v1/data/upload", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListSessions returns the sessions owned by the authenticated user.
func (c *Client) ListSessions(ctx context.Context) ([]SessionInfo, error) {
	var out []SessionInfo
	if err := c.do(ctx, http.MethodGet, "/v1/data/sessions", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListDatasets returns the datasets of a session in server order.
func (c *Client) ListDatasets(ctx context.Context, sessionID ID) ([]Dataset, error) {
	q := url.Values{}
	q.Set("session_id", sessionID.String())
	var out []Dataset
	if err := c.do(ctx, http.MethodGet, "/v1/data/datasets", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RenameDataset changes a dataset's display name. A 409 surfaces as
// *NameConflictError when the name is taken within the session.
func (c *Client) RenameDataset(ctx context.Context, datasetID ID, name string) (*RenameResult, error) {
	body, err := jsonBody(map[string]string{"name": name})
	if err != nil {
		return nil, err
	}
	var out RenameResult
	path := "/v1/data/datasets/" + url.PathEscape(datasetID.String())
	if err := c.do(ctx, http.MethodPatch, path, nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
