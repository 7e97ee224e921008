package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"gocloud.dev/blob/s3blob"
	"golang.org/x/exp/slog"

	"github.com/ocflkit/ocfl/backend"
	"github.com/ocflkit/ocfl/backend/cloud"
	"github.com/ocflkit/ocfl/backend/local"
)

// Open builds the backend.WriteFS named by rc's driver. log, if non-nil,
// is attached to backends that support debug tracing of storage
// operations.
func (rc *RepoConfig) Open(ctx context.Context, log *slog.Logger) (backend.WriteFS, error) {
	switch rc.Driver {
	case DriverLocal, "":
		root := rc.Root
		if root == "" {
			root = "."
		}
		return local.NewFS(root)
	case DriverS3:
		if rc.Bucket == "" {
			return nil, fmt.Errorf("repo config: 'bucket' is required for driver %q", DriverS3)
		}
		awsCfg := aws.Config{}
		if rc.Region != "" {
			awsCfg.Region = aws.String(rc.Region)
		}
		if rc.Endpoint != "" {
			awsCfg.Endpoint = aws.String(rc.Endpoint)
		}
		sess, err := session.NewSession(&awsCfg)
		if err != nil {
			return nil, fmt.Errorf("opening s3 session: %w", err)
		}
		bucket, err := s3blob.OpenBucket(ctx, sess, rc.Bucket, nil)
		if err != nil {
			return nil, fmt.Errorf("opening s3 bucket %q: %w", rc.Bucket, err)
		}
		var opts []cloud.Option
		if log != nil {
			opts = append(opts, cloud.WithLogger(log))
		}
		return cloud.NewFS(bucket, opts...), nil
	default:
		return nil, fmt.Errorf("repo config: unrecognized driver %q", rc.Driver)
	}
}
