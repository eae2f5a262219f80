package storage

import "fmt"

// Object path layout, shared with the mobile client's uploader:
// inputs are keyed by job, outputs by generation.

// InputImagePath returns the object key for a job's input photo.
func InputImagePath(userID, jobID string) string {
	return fmt.Sprintf("input/%s/%s.jpg", userID, jobID)
}

// OutputImagePath returns the object key for a generation's output image.
func OutputImagePath(userID, generationID string) string {
	return fmt.Sprintf("output/%s/%s.png", userID, generationID)
}
