package rekognition

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/BalaMeghanaShivani/CarbonLane/internal/model"
	"github.com/BalaMeghanaShivani/CarbonLane/internal/service/ocr"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
)

type fakeClient struct {
	input  *rekognition.DetectTextInput
	output *rekognition.DetectTextOutput
	err    error
}

func (f *fakeClient) DetectText(ctx context.Context, params *rekognition.DetectTextInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectTextOutput, error) {
	f.input = params
	return f.output, f.err
}

func testFrame() *model.Frame {
	return model.NewFrame(make([]byte, 32*16*3), 32, 16, model.PixelBGR, "gate")
}

func TestRecognize_KeepsLines(t *testing.T) {
	client := &fakeClient{output: &rekognition.DetectTextOutput{
		TextDetections: []types.TextDetection{
			{Type: types.TextTypesLine, DetectedText: aws.String("AB12CD"), Confidence: aws.Float32(87)},
			{Type: types.TextTypesWord, DetectedText: aws.String("AB12CD"), Confidence: aws.Float32(87)},
			{Type: types.TextTypesLine, DetectedText: aws.String("XYZ"), Confidence: aws.Float32(40)},
		},
	}}
	engine := NewEngine(client)

	region := model.Box{X: 0.25, Y: 0.5, W: 0.5, H: 0.5}
	got, err := engine.Recognize(context.Background(), testFrame(), region)
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d candidates, want 2", len(got))
	}
	if got[0].Text != "AB12CD" || math.Abs(got[0].Confidence-0.87) > 1e-6 {
		t.Errorf("first candidate = %+v", got[0])
	}

	roi := client.input.Filters.RegionsOfInterest
	if len(roi) != 1 || aws.ToFloat32(roi[0].BoundingBox.Top) != 0.5 || aws.ToFloat32(roi[0].BoundingBox.Width) != 0.5 {
		t.Errorf("region of interest not forwarded: %+v", roi)
	}
	if len(client.input.Image.Bytes) == 0 {
		t.Error("frame was not encoded")
	}
}

func TestRecognize_WrapsClientError(t *testing.T) {
	engine := NewEngine(&fakeClient{err: errors.New("throttled")})
	if _, err := engine.Recognize(context.Background(), testFrame(), model.Unit); !errors.Is(err, ocr.ErrEngine) {
		t.Errorf("err = %v, want ErrEngine", err)
	}
}
