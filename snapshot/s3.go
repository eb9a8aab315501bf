// Package snapshot archives version content to S3. It is the real
// implementation of the stub the teacher left in storage/s3.go
// (SaveCanvasState always returned "", nil) — here it actually uploads.
package snapshot

import (
	"bytes"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// Archiver uploads full-content version snapshots. A failed upload is the
// caller's to log; it never fails version creation, since the database row
// remains the source of truth.
type Archiver struct {
	client *s3.S3
	bucket string
}

func NewArchiver(region, bucket string) (*Archiver, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(region),
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot: new session: %w", err)
	}
	return &Archiver{
		client: s3.New(sess),
		bucket: bucket,
	}, nil
}

// Archive uploads content under versions/<documentId>/<versionNumber>.txt
// and returns the object key.
func (a *Archiver) Archive(documentID string, versionNumber int, content string) (string, error) {
	key := fmt.Sprintf("versions/%s/%d.txt", documentID, versionNumber)
	_, err := a.client.PutObject(&s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader([]byte(content)),
	})
	if err != nil {
		return "", fmt.Errorf("snapshot: put object: %w", err)
	}
	return key, nil
}
