package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/christlandtech/storefront-client/internal/apierror"
	"github.com/christlandtech/storefront-client/internal/utils"
	"github.com/christlandtech/storefront-client/locale"
)

// Upload is one file part of a multipart request.
type Upload struct {
	FieldName string
	FileName  string
	Content   io.Reader
}

// GetJSON fetches path and decodes the JSON body into out.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	return c.sendJSON(ctx, http.MethodGet, path, nil, out)
}

// PostJSON sends in as JSON and decodes the response into out. Either may be nil.
func (c *Client) PostJSON(ctx context.Context, path string, in, out any) error {
	return c.sendJSON(ctx, http.MethodPost, path, in, out)
}

func (c *Client) PutJSON(ctx context.Context, path string, in, out any) error {
	return c.sendJSON(ctx, http.MethodPut, path, in, out)
}

func (c *Client) PatchJSON(ctx context.Context, path string, in, out any) error {
	return c.sendJSON(ctx, http.MethodPatch, path, in, out)
}

func (c *Client) Delete(ctx context.Context, path string) error {
	return c.sendJSON(ctx, http.MethodDelete, path, nil, nil)
}

// UploadFile posts a multipart form made of file and the extra text fields.
func (c *Client) UploadFile(ctx context.Context, path string, file Upload, fields map[string]string, out any) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fieldName := file.FieldName
	if fieldName == "" {
		fieldName = "file"
	}
	part, err := mw.CreateFormFile(fieldName, file.FileName)
	if err != nil {
		return fmt.Errorf("[apiclient UploadFile] create part: %w", err)
	}
	if _, err := io.Copy(part, file.Content); err != nil {
		return fmt.Errorf("[apiclient UploadFile] copy file: %w", err)
	}
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := mw.WriteField(k, v); err != nil {
			return fmt.Errorf("[apiclient UploadFile] write field %s: %w", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("[apiclient UploadFile] close writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL(path), &buf)
	if err != nil {
		return fmt.Errorf("[apiclient UploadFile] %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.roundTrip(req, out)
}

func (c *Client) sendJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("[apiclient %s %s] encode body: %w", method, path, err)
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.URL(path), body)
	if err != nil {
		return fmt.Errorf("[apiclient %s %s] %w", method, path, err)
	}
	return c.roundTrip(req, out)
}

func (c *Client) roundTrip(req *http.Request, out any) error {
	res, err := c.Do(req)
	if err != nil {
		return fmt.Errorf("[apiclient %s %s] %w", req.Method, req.URL.Path, err)
	}
	defer res.Body.Close()
	return c.decode(res, out)
}

// decode checks the status and content type of res and unmarshals its body
// into out. A 204 or an empty body leaves out untouched.
func (c *Client) decode(res *http.Response, out any) error {
	data, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("[apiclient decode] read body: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return apierror.FromStatus(res.StatusCode, data, "")
	}
	if res.StatusCode == http.StatusNoContent || len(data) == 0 {
		return nil
	}
	if !utils.IsJSONContentType(res.Header.Get("Content-Type")) {
		return apierror.NonJSON(res.StatusCode, data,
			locale.DefaultLocalizer.Message(c.lang(), locale.MsgNonJSONResponse, map[string]any{
				"Status":  res.StatusCode,
				"Snippet": utils.Snippet(string(data)),
			}))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("[apiclient decode] %w", err)
	}
	return nil
}

func (c *Client) lang() string {
	if c.language == nil {
		return locale.Normalize("")
	}
	return c.language.Current()
}
