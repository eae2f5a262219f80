package storage

import (
	"testing"

	"github.com/budajoliwia/PetMagic/internal/config"
)

func TestNewRequiresBucketName(t *testing.T) {
	_, err := New(config.StorageConfig{
		Endpoint:        "localhost:9000",
		AccessKeyID:     "minioadmin",
		SecretAccessKey: "minioadmin",
		BucketName:      "",
	})

	if err == nil {
		t.Fatal("Expected error when bucket name is empty")
	}

	// The message is a classifier marker for BUCKET_NOT_CONFIGURED
	want := "storage bucket name not configured"
	if got := err.Error(); len(got) < len(want) || got[:len(want)] != want {
		t.Errorf("Expected error to start with %q, got %q", want, got)
	}
}

func TestInputImagePath(t *testing.T) {
	got := InputImagePath("user-1", "job-1")
	want := "input/user-1/job-1.jpg"
	if got != want {
		t.Errorf("InputImagePath() = %q, want %q", got, want)
	}
}

func TestOutputImagePath(t *testing.T) {
	got := OutputImagePath("user-1", "gen-1")
	want := "output/user-1/gen-1.png"
	if got != want {
		t.Errorf("OutputImagePath() = %q, want %q", got, want)
	}
}
