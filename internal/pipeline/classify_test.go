package pipeline

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "missing api key",
			err:  errors.New("missing OPENAI_API_KEY environment variable"),
			want: CodeAPIKeyMissing,
		},
		{
			name: "wrapped api key error",
			err:  fmt.Errorf("failed to create provider: %w", errors.New("missing OPENAI_API_KEY environment variable")),
			want: CodeAPIKeyMissing,
		},
		{
			name: "missing input object",
			err:  errors.New("object input/u1/j1.jpg not found"),
			want: CodeInputNotFound,
		},
		{
			name: "s3 style missing object",
			err:  errors.New("No such object"),
			want: CodeInputNotFound,
		},
		{
			name: "bucket not configured",
			err:  errors.New("storage bucket name not configured. Set storage.bucketName"),
			want: CodeBucketNotConfigured,
		},
		{
			name: "bucket marker is case insensitive",
			err:  errors.New("Storage Bucket Name Not Configured"),
			want: CodeBucketNotConfigured,
		},
		{
			name: "generic failure",
			err:  errors.New("generation failed with status 500"),
			want: CodeProcessingError,
		},
		{
			name: "nil error",
			err:  nil,
			want: CodeProcessingError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyError(tt.err); got != tt.want {
				t.Errorf("ClassifyError(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}
