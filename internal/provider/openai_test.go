package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/budajoliwia/PetMagic/internal/config"
	"github.com/budajoliwia/PetMagic/pkg/models"
)

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New(config.ProviderConfig{Model: "gpt-image-1"})
	require.Error(t, err)

	// The message is a classifier marker for OPENAI_API_KEY_MISSING
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}

func TestGenerate(t *testing.T) {
	fakeImage := []byte{0x89, 'P', 'N', 'G'}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/images/edits", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "gpt-image-1", r.FormValue("model"))
		assert.Contains(t, r.FormValue("prompt"), "Cartoon")

		file, _, err := r.FormFile("image")
		require.NoError(t, err)
		defer file.Close()

		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]string{
				{"b64_json": base64.StdEncoding.EncodeToString(fakeImage)},
			},
		})
	}))
	defer server.Close()

	client, err := New(config.ProviderConfig{
		APIKey:         "test-key",
		Model:          "gpt-image-1",
		BaseURL:        server.URL,
		RequestTimeout: 5 * time.Second,
	})
	require.NoError(t, err)

	output, err := client.Generate(context.Background(), []byte("input"), models.JobTypeSticker, "Cartoon")
	require.NoError(t, err)
	assert.Equal(t, fakeImage, output)
}

func TestGenerateProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{
				"message": "Rate limit reached",
				"type":    "rate_limit_error",
			},
		})
	}))
	defer server.Close()

	client, err := New(config.ProviderConfig{
		APIKey:         "test-key",
		Model:          "gpt-image-1",
		BaseURL:        server.URL,
		RequestTimeout: 5 * time.Second,
	})
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), []byte("input"), models.JobTypeImage, "Cartoon")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Rate limit reached")
}

func TestGenerateEmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"data": []map[string]string{}})
	}))
	defer server.Close()

	client, err := New(config.ProviderConfig{
		APIKey:         "test-key",
		Model:          "gpt-image-1",
		BaseURL:        server.URL,
		RequestTimeout: 5 * time.Second,
	})
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), []byte("input"), models.JobTypeImage, "Line Art")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no image data")
}

func TestStylePrompt(t *testing.T) {
	sticker := stylePrompt(models.JobTypeSticker, "Oil Painting")
	assert.Contains(t, sticker, "sticker")
	assert.Contains(t, sticker, "transparent background")
	assert.Contains(t, sticker, "Oil Painting")

	image := stylePrompt(models.JobTypeImage, "Line Art")
	assert.Contains(t, image, "illustration")
	assert.Contains(t, image, "Line Art")
}
