// Package rekognition reads plates with AWS Rekognition DetectText.
package rekognition

import (
	"bytes"
	"context"
	"fmt"

	"github.com/BalaMeghanaShivani/CarbonLane/internal/model"
	"github.com/BalaMeghanaShivani/CarbonLane/internal/service/ocr"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/disintegration/imaging"
)

// TextDetector is the part of the Rekognition client the engine uses.
type TextDetector interface {
	DetectText(ctx context.Context, params *rekognition.DetectTextInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectTextOutput, error)
}

type Engine struct {
	client TextDetector
}

func NewEngine(client TextDetector) *Engine {
	return &Engine{client: client}
}

// NewEngineFromRegion builds a client from the default AWS credential chain.
func NewEngineFromRegion(ctx context.Context, region string) (*Engine, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewEngine(rekognition.NewFromConfig(cfg)), nil
}

// Recognize sends the whole frame and restricts detection to region.
func (e *Engine) Recognize(ctx context.Context, frame *model.Frame, region model.Box) ([]model.OCRCandidate, error) {
	if e.client == nil {
		return nil, fmt.Errorf("%w: rekognition client not initialized", ocr.ErrEngine)
	}
	if err := frame.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ocr.ErrEngine, err)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, frame.Image(), imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		return nil, fmt.Errorf("%w: encode frame: %v", ocr.ErrEngine, err)
	}

	result, err := e.client.DetectText(ctx, &rekognition.DetectTextInput{
		Image: &types.Image{Bytes: buf.Bytes()},
		Filters: &types.DetectTextFilters{
			RegionsOfInterest: []types.RegionOfInterest{{
				BoundingBox: &types.BoundingBox{
					Left:   aws.Float32(float32(region.X)),
					Top:    aws.Float32(float32(region.Y)),
					Width:  aws.Float32(float32(region.W)),
					Height: aws.Float32(float32(region.H)),
				},
			}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ocr.ErrEngine, err)
	}

	candidates := make([]model.OCRCandidate, 0, len(result.TextDetections))
	for _, detection := range result.TextDetections {
		if detection.Type != types.TextTypesLine || detection.DetectedText == nil {
			continue
		}
		candidates = append(candidates, model.OCRCandidate{
			Text:       aws.ToString(detection.DetectedText),
			Confidence: float64(aws.ToFloat32(detection.Confidence)) / 100.0,
		})
	}
	return candidates, nil
}
