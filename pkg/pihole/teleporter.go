package pihole

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
)

// ExportSettings downloads the teleporter archive: the appliance's full
// configuration as an opaque binary blob (a zip produced by the API).
func (c *Client) ExportSettings(ctx context.Context) ([]byte, error) {
	sid, err := c.getSID(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting session: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/teleporter", nil)
	if err != nil {
		return nil, fmt.Errorf("creating export request: %w", err)
	}
	req.Header.Set("X-FTL-SID", sid)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &APIError{Status: resp.StatusCode, Body: string(body)}
	}

	blob, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading export: %w", err)
	}

	return blob, nil
}

// ImportSettings uploads a teleporter archive. Options select which parts
// of the archive to restore; nil imports everything.
func (c *Client) ImportSettings(ctx context.Context, archive []byte, options map[string]any) (map[string]any, error) {
	sid, err := c.getSID(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting session: %w", err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fw, err := mw.CreateFormFile("file", "teleporter.zip")
	if err != nil {
		return nil, fmt.Errorf("creating form file: %w", err)
	}
	if _, err := fw.Write(archive); err != nil {
		return nil, fmt.Errorf("writing archive: %w", err)
	}

	if options != nil {
		optJSON, err := json.Marshal(options)
		if err != nil {
			return nil, fmt.Errorf("marshaling import options: %w", err)
		}
		if err := mw.WriteField("import", string(optJSON)); err != nil {
			return nil, fmt.Errorf("writing import options: %w", err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("finalizing upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/teleporter", &buf)
	if err != nil {
		return nil, fmt.Errorf("creating import request: %w", err)
	}
	req.Header.Set("X-FTL-SID", sid)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading import response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{Status: resp.StatusCode, Body: string(body)}
	}

	return decodeBody(body)
}
