package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/jrsteele09/go-dashboard-client/session"
)

// Image types
const (
	ImageCover   = "COVER"
	ImageGallery = "GALLERY"
	ImageMenu    = "MENU"
)

type Image struct {
	ID        FlexInt `json:"id"`
	Type      string  `json:"type"`
	URL       string  `json:"url,omitempty"`
	FilePath  string  `json:"file_path,omitempty"`
	Caption   string  `json:"caption,omitempty"`
	IsPrimary bool    `json:"isPrimary,omitempty"`
}

type ImagesService struct {
	r Requester
}

// List returns the restaurant images, all types when imageType is empty
func (s *ImagesService) List(ctx context.Context, imageType string) ([]Image, error) {
	path := "/images"
	if imageType != "" {
		path += "?" + url.Values{"type": {imageType}}.Encode()
	}
	raw, err := s.r.Request(ctx, session.Request{Method: http.MethodGet, Path: path})
	if err != nil {
		return nil, err
	}
	items, _, err := decodeList[Image](raw)
	return items, err
}

// Upload sends content as a multipart file. Oversized files fail with
// session.KindPayloadTooLarge.
func (s *ImagesService) Upload(ctx context.Context, fileName string, content io.Reader, imageType string) (json.RawMessage, error) {
	fields := map[string]string{}
	if imageType != "" {
		fields["type"] = imageType
	}
	return s.r.Request(ctx, session.Request{
		Method: http.MethodPost,
		Path:   "/images",
		Body:   &session.FormFile{FileName: fileName, Content: content, Fields: fields},
	})
}

func (s *ImagesService) Delete(ctx context.Context, id int) (json.RawMessage, error) {
	return s.r.Request(ctx, session.Request{Method: http.MethodDelete, Path: fmt.Sprintf("/images/%d", id)})
}

// SetCover makes the image the restaurant's primary picture
func (s *ImagesService) SetCover(ctx context.Context, id int) (json.RawMessage, error) {
	return s.r.Request(ctx, session.Request{Method: http.MethodPatch, Path: fmt.Sprintf("/images/%d/primary", id), Body: struct{}{}})
}
