// Package s3uploader stages import output on S3-compatible object storage.
package s3uploader

import (
	"context"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

type Uploader struct {
	uploader *manager.Uploader
	bucket   string
}

func New(accessKey, secretKey, region, bucket string) (*Uploader, error) {
	creds := credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")

	cfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithCredentialsProvider(creds),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(cfg)

	return &Uploader{
		uploader: manager.NewUploader(client),
		bucket:   bucket,
	}, nil
}

// Create opens a write stream to the object at key. Bytes are uploaded as
// they are written; Close finishes the upload and reports its result.
func (u *Uploader) Create(ctx context.Context, key string) (io.WriteCloser, error) {
	pr, pw := io.Pipe()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := u.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(u.bucket),
			Key:         aws.String(key),
			Body:        pr,
			ContentType: aws.String("text/csv"),
		})

		// Unblock a writer still mid-Write when the upload dies.
		pr.CloseWithError(err)

		return err
	})

	return &object{pw: pw, g: g}, nil
}

type object struct {
	pw *io.PipeWriter
	g  *errgroup.Group
}

func (o *object) Write(p []byte) (int, error) {
	return o.pw.Write(p)
}

func (o *object) Close() error {
	return multierr.Append(o.pw.Close(), o.g.Wait())
}
