package s3blob

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/openwager/betfeed/internal/domain"
)

// Signer implements domain.URLSigner by minting presigned GET URLs for
// objects in the avatar bucket.
type Signer struct {
	presign *s3.PresignClient
	bucket  string
}

// NewSigner creates a Signer over the given client's bucket.
func NewSigner(c *Client) *Signer {
	return &Signer{
		presign: s3.NewPresignClient(c.S3()),
		bucket:  c.Bucket(),
	}
}

// SignedURLs presigns a GET URL for every path in the batch, each valid for
// the given duration. Empty paths are skipped. Any signing failure fails the
// whole batch: callers treat the batch as one unit of both cost and failure.
func (s *Signer) SignedURLs(ctx context.Context, paths []string, validity time.Duration) (map[string]string, error) {
	urls := make(map[string]string, len(paths))

	for _, path := range paths {
		if path == "" {
			continue
		}
		req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(path),
		}, s3.WithPresignExpires(validity))
		if err != nil {
			return nil, fmt.Errorf("s3blob: presign %s: %w", path, err)
		}
		urls[path] = req.URL
	}

	return urls, nil
}

// Compile-time interface check.
var _ domain.URLSigner = (*Signer)(nil)
