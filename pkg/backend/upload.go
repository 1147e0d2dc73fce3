package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/argo-explorer/dashboard/pkg/apperrors"
	"github.com/argo-explorer/dashboard/pkg/models"
	"github.com/argo-explorer/dashboard/pkg/probe"
)

// UploadFormField is the multipart field the backend reads the file from.
const UploadFormField = "file"

// uploadProbeTimeout bounds the availability pre-flight.
const uploadProbeTimeout = 5 * time.Second

// UploadAvailable sends an OPTIONS pre-flight to the upload route. The route
// counts as missing only when the backend answers 404; any other status means
// the route exists. Transport failures are returned as errors.
func (c *Client) UploadAvailable(ctx context.Context) (bool, error) {
	target, err := c.resolver.AbsoluteURL(EndpointUpload, nil)
	if err != nil {
		return false, fmt.Errorf("failed to build URL: %w", err)
	}

	_, err = probe.FirstSuccess(ctx, c.httpClient, []string{target}, probe.Options{
		Method:  http.MethodOptions,
		Timeout: uploadProbeTimeout,
		Accept:  func(status int) bool { return status != http.StatusNotFound },
	})
	if err == nil {
		return true, nil
	}
	if errors.Is(err, apperrors.ErrNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("failed to probe upload endpoint: %w", err)
}

// UploadNetCDF posts a file as multipart form data. progress, when not nil, is
// called with the number of file bytes handed to the transport so far.
func (c *Client) UploadNetCDF(ctx context.Context, filename string, r io.Reader, progress func(sent int64)) (*models.UploadResult, error) {
	target, err := c.resolver.AbsoluteURL(EndpointUpload, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build URL: %w", err)
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		part, err := mw.CreateFormFile(UploadFormField, filename)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		src := r
		if progress != nil {
			src = &countingReader{r: r, onRead: progress}
		}
		if _, err := io.Copy(part, src); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, pr)
	if err != nil {
		pr.Close()
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	c.logger.Info("Uploading NetCDF file", zap.String("filename", filename))

	resp, err := c.uploadClient.Do(req)
	if err != nil {
		pr.CloseWithError(err)
		return nil, fmt.Errorf("failed to upload file: %w", err)
	}
	defer resp.Body.Close()
	// Unblocks the writer goroutine if the backend answered before reading the whole body.
	pr.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &apperrors.StatusError{Op: "upload", StatusCode: resp.StatusCode, Body: errorDetail(body)}
	}

	var result models.UploadResult
	if len(body) > 0 {
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, fmt.Errorf("%w: upload: %w", apperrors.ErrUnexpectedResponse, err)
		}
	}

	c.logger.Info("Upload accepted",
		zap.String("filename", filename),
		zap.String("float_id", result.FloatID))
	return &result, nil
}

type countingReader struct {
	r      io.Reader
	n      int64
	onRead func(int64)
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	if n > 0 {
		cr.n += int64(n)
		cr.onRead(cr.n)
	}
	return n, err
}
