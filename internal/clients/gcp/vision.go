package gcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"

	"github.com/ellyeware/idiombot/internal/platform/logger"
)

// Vision extracts text from idiom images. TextFragments returns the
// recognized text one line per element, which downstream code stores as the
// idiom's OCR text and feeds to the similarity index.
type Vision interface {
	TextFragments(ctx context.Context, img []byte) ([]string, error)
	Close() error
}

type visionService struct {
	log          *logger.Logger
	visionClient *vision.ImageAnnotatorClient
}

func NewVision(log *logger.Logger) (Vision, error) {
	serviceLog := log.With("service", "gcp.Vision")

	ctx := context.Background()
	vClient, err := vision.NewImageAnnotatorClient(ctx, ClientOptionsFromEnv()...)
	if err != nil {
		return nil, fmt.Errorf("vision client: %w", err)
	}
	return &visionService{log: serviceLog, visionClient: vClient}, nil
}

func (s *visionService) Close() error {
	if s.visionClient != nil {
		return s.visionClient.Close()
	}
	return nil
}

func (s *visionService) TextFragments(ctx context.Context, img []byte) ([]string, error) {
	if len(img) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: img},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_TEXT_DETECTION},
				},
			},
		},
	}
	resp, err := s.visionClient.BatchAnnotateImages(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("vision BatchAnnotateImages: %w", err)
	}
	if resp == nil || len(resp.Responses) == 0 || resp.Responses[0] == nil {
		return nil, nil
	}

	r0 := resp.Responses[0]
	if r0.Error != nil && r0.Error.Message != "" {
		return nil, fmt.Errorf("vision annotate error: %s", r0.Error.Message)
	}

	// The first annotation carries the full recognized text; the rest repeat
	// it word by word.
	if len(r0.TextAnnotations) == 0 {
		return nil, nil
	}
	full := r0.TextAnnotations[0].GetDescription()

	fragments := make([]string, 0, 8)
	for _, line := range strings.Split(full, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			fragments = append(fragments, line)
		}
	}
	return fragments, nil
}
