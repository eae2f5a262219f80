// Package provider implements the generation provider gateway against
// the OpenAI image API.
package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"

	"github.com/budajoliwia/PetMagic/internal/config"
	"github.com/budajoliwia/PetMagic/pkg/models"
)

// Client calls the OpenAI image edit endpoint to turn an input photo
// plus style parameters into output image bytes.
type Client struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
}

// New creates a provider client. The API key is mandatory; the error
// message carries the OPENAI_API_KEY marker the error classifier keys on.
func New(cfg config.ProviderConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("missing OPENAI_API_KEY environment variable")
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		baseURL:    cfg.BaseURL,
	}, nil
}

type imageResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Generate runs the style model over the input photo and returns the raw
// output image bytes. The call can take tens of seconds; the caller
// bounds it through ctx.
func (c *Client) Generate(ctx context.Context, input []byte, jobType models.JobType, style string) ([]byte, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if err := writer.WriteField("model", c.model); err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if err := writer.WriteField("prompt", stylePrompt(jobType, style)); err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if err := writer.WriteField("size", "1024x1024"); err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="image"; filename="input.jpg"`)
	header.Set("Content-Type", "image/jpeg")
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if _, err := part.Write(input); err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/images/edits", &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("generation request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read generation response: %w", err)
	}

	var parsed imageResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode generation response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK {
		if parsed.Error != nil {
			return nil, fmt.Errorf("generation failed (status %d): %s", resp.StatusCode, parsed.Error.Message)
		}
		return nil, fmt.Errorf("generation failed with status %d", resp.StatusCode)
	}

	if len(parsed.Data) == 0 || parsed.Data[0].B64JSON == "" {
		return nil, errors.New("generation response contained no image data")
	}

	output, err := base64.StdEncoding.DecodeString(parsed.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("failed to decode generated image: %w", err)
	}

	return output, nil
}

// stylePrompt builds the model prompt for a job type and style.
func stylePrompt(jobType models.JobType, style string) string {
	if jobType == models.JobTypeSticker {
		return fmt.Sprintf(
			"Turn this pet photo into a die-cut sticker in the %s style. "+
				"Keep the pet recognizable, use a clean outline and a transparent background.",
			style)
	}
	return fmt.Sprintf(
		"Redraw this pet photo as a full illustration in the %s style. "+
			"Keep the pet recognizable and the composition close to the original.",
		style)
}
