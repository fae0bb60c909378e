package vision

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	aiplatform "cloud.google.com/go/aiplatform/apiv1"
	"cloud.google.com/go/aiplatform/apiv1/aiplatformpb"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/types/known/structpb"

	"renovationAi/internal/imaging"
)

const defaultImagenEditMode = "inpainting-free-form"

type predictFunc func(ctx context.Context, req *aiplatformpb.PredictRequest) (*aiplatformpb.PredictResponse, error)

// VertexImagen edits photos via the Vertex AI Imagen prediction API.
type VertexImagen struct {
	projectID          string
	location           string
	model              string
	editMode           string
	apiKey             string
	serviceAccount     string
	serviceAccountJSON string
	predict            predictFunc
}

// VertexImagenConfig describes how to connect to Imagen.
type VertexImagenConfig struct {
	ProjectID          string
	Location           string
	Model              string
	EditMode           string
	APIKey             string
	ServiceAccount     string
	ServiceAccountJSON string
}

// NewVertexImagen wires a VertexImagen editor.
func NewVertexImagen(cfg VertexImagenConfig) (*VertexImagen, error) {
	v := &VertexImagen{
		projectID:          strings.TrimSpace(cfg.ProjectID),
		location:           strings.TrimSpace(cfg.Location),
		model:              strings.TrimSpace(cfg.Model),
		editMode:           strings.TrimSpace(cfg.EditMode),
		apiKey:             strings.TrimSpace(cfg.APIKey),
		serviceAccount:     strings.TrimSpace(cfg.ServiceAccount),
		serviceAccountJSON: strings.TrimSpace(cfg.ServiceAccountJSON),
	}
	if v.projectID == "" || v.location == "" || v.model == "" {
		return nil, fmt.Errorf("imagen: missing project/location/model")
	}
	if v.editMode == "" {
		v.editMode = defaultImagenEditMode
	}
	v.predict = v.vertexPredict
	return v, nil
}

// Edit runs an Imagen edit request against the source photo.
func (v *VertexImagen) Edit(ctx context.Context, source imaging.Image, instruction string) (imaging.Image, error) {
	if v == nil || v.predict == nil {
		return imaging.Image{}, fmt.Errorf("imagen: client not configured")
	}
	if strings.TrimSpace(instruction) == "" {
		return imaging.Image{}, fmt.Errorf("imagen: prompt is required")
	}
	if source.Empty() {
		return imaging.Image{}, fmt.Errorf("imagen: reference image is required")
	}

	instance, err := structpb.NewValue(map[string]any{
		"prompt": instruction,
		"image": map[string]any{
			"bytesBase64Encoded": base64.StdEncoding.EncodeToString(source.Data),
			"mimeType":           source.MIME,
		},
	})
	if err != nil {
		return imaging.Image{}, fmt.Errorf("imagen: build instance: %w", err)
	}

	params, err := structpb.NewValue(map[string]any{
		"sampleCount": 1,
		"editMode":    v.editMode,
	})
	if err != nil {
		return imaging.Image{}, fmt.Errorf("imagen: build parameters: %w", err)
	}

	resp, err := v.predict(ctx, &aiplatformpb.PredictRequest{
		Endpoint:   fmt.Sprintf("projects/%s/locations/%s/publishers/google/models/%s", v.projectID, v.location, v.model),
		Instances:  []*structpb.Value{instance},
		Parameters: params,
	})
	if err != nil {
		return imaging.Image{}, fmt.Errorf("imagen: predict: %w", err)
	}
	if resp == nil || len(resp.Predictions) == 0 {
		return imaging.Image{}, fmt.Errorf("%w: empty prediction response", ErrNoImageReturned)
	}

	for _, prediction := range resp.Predictions {
		fields := prediction.GetStructValue().GetFields()
		encoded := fields["bytesBase64Encoded"].GetStringValue()
		if encoded == "" {
			continue
		}
		img, err := imaging.DecodePayload([]byte(encoded), fields["mimeType"].GetStringValue())
		if err != nil {
			return imaging.Image{}, fmt.Errorf("%w: %v", ErrNoImageReturned, err)
		}
		return img, nil
	}
	return imaging.Image{}, fmt.Errorf("%w: prediction missing bytes", ErrNoImageReturned)
}

func (v *VertexImagen) vertexPredict(ctx context.Context, req *aiplatformpb.PredictRequest) (*aiplatformpb.PredictResponse, error) {
	options := []option.ClientOption{option.WithEndpoint(fmt.Sprintf("%s-aiplatform.googleapis.com:443", v.location))}
	if v.serviceAccountJSON != "" {
		options = append(options, option.WithCredentialsJSON([]byte(v.serviceAccountJSON)))
	} else if v.serviceAccount != "" {
		options = append(options, option.WithCredentialsFile(v.serviceAccount))
	} else if v.apiKey != "" {
		options = append(options, option.WithAPIKey(v.apiKey))
	}

	client, err := aiplatform.NewPredictionClient(ctx, options...)
	if err != nil {
		return nil, fmt.Errorf("prediction client: %w", err)
	}
	defer client.Close()

	return client.Predict(ctx, req)
}
