package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"

	"github.com/zhouzirui/chatbox/internal/model/chat"
)

// maxUploadBytes matches the request size limit of the knowledge-base endpoint.
const maxUploadBytes = 50 << 20

var allowedUploads = map[string]string{
	".pdf": "application/pdf",
	".txt": "text/plain",
}

// Upload sends the file at path to the service's knowledge base.
func (c *Client) Upload(ctx context.Context, path string) (UploadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return UploadResult{}, errors.Wrap(err, "open upload")
	}
	defer f.Close()

	return c.UploadReader(ctx, filepath.Base(path), f)
}

// UploadReader sends the document read from r under filename. Only pdf and
// plain text documents are accepted; anything else fails before any request.
func (c *Client) UploadReader(ctx context.Context, filename string, r io.Reader) (UploadResult, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxUploadBytes+1))
	if err != nil {
		return UploadResult{}, errors.Wrap(err, "read upload")
	}
	if len(data) > maxUploadBytes {
		return UploadResult{}, errors.Errorf("upload %s exceeds %d bytes", filename, maxUploadBytes)
	}
	if err := CheckUpload(filename, data); err != nil {
		return UploadResult{}, err
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return UploadResult{}, errors.Wrap(err, "create form file")
	}
	if _, err := part.Write(data); err != nil {
		return UploadResult{}, errors.Wrap(err, "write form file")
	}
	if err := writer.Close(); err != nil {
		return UploadResult{}, errors.Wrap(err, "close multipart body")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL, &body)
	if err != nil {
		return UploadResult{}, errors.Wrap(err, "build upload request")
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	c.logger.Debug().Str("url", c.uploadURL).Str("filename", filename).Int("bytes", len(data)).Msg("uploading document")

	respData, status, err := c.do(req)
	if err != nil {
		return UploadResult{}, err
	}

	var decoded struct {
		UploadResult
		Error string `json:"error"`
	}
	decodeErr := json.Unmarshal(respData, &decoded)
	if status < 200 || status > 299 {
		statusErr := &Error{Kind: chat.ErrorStatus, StatusCode: status}
		if decodeErr == nil {
			statusErr.Message = decoded.Error
		}
		return UploadResult{}, statusErr
	}
	if decodeErr != nil {
		return UploadResult{}, malformedError(errors.Wrap(decodeErr, "decode upload response"))
	}
	return decoded.UploadResult, nil
}

// CheckUpload verifies that filename has an accepted extension and that data
// really is a document of that type.
func CheckUpload(filename string, data []byte) error {
	ext := strings.ToLower(filepath.Ext(filename))
	want, ok := allowedUploads[ext]
	if !ok {
		return errors.Wrapf(ErrUnsupportedFile, "%s", filename)
	}

	for detected := mimetype.Detect(data); detected != nil; detected = detected.Parent() {
		if detected.Is(want) {
			return nil
		}
	}
	return errors.Wrapf(ErrUnsupportedFile, "%s does not look like %s", filename, want)
}
