package registry

import (
	"context"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/ecr"
	"github.com/aws/aws-sdk-go/service/ecr/ecriface"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"

	fluxerr "github.com/fluxcd/deploy2ecs/pkg/errors"
)

const (
	// For recognising ECR hosts
	awsPartitionSuffix   = ".amazonaws.com"
	awsCnPartitionSuffix = ".amazonaws.com.cn"
)

func validECRHost(domain string) bool {
	switch {
	case strings.HasSuffix(domain, awsPartitionSuffix):
		return true
	case strings.HasSuffix(domain, awsCnPartitionSuffix):
		return true
	}
	return false
}

// RegionOf extracts the region from an ECR registry host, which look
// like
//
//     <account-id>.dkr.ecr.<region>.amazonaws.com
//
// It returns false for anything else.
func RegionOf(domain string) (string, bool) {
	if !validECRHost(domain) {
		return "", false
	}
	bits := strings.Split(domain, ".")
	if len(bits) < 6 || bits[1] != "dkr" || bits[2] != "ecr" {
		return "", false
	}
	return bits[3], true
}

// ECR is a Registry backed by the ECR API.
type ECR struct {
	client ecriface.ECRAPI
	logger log.Logger

	mu           sync.Mutex
	repositories map[string]*repository
}

func NewECR(client ecriface.ECRAPI, logger log.Logger) *ECR {
	return &ECR{
		client:       client,
		logger:       logger,
		repositories: map[string]*repository{},
	}
}

// repository returns the handle for the repository named, creating it
// on first use. Handles only remember which repository they are for;
// image listings are always fetched afresh.
func (r *ECR) repository(name string) *repository {
	r.mu.Lock()
	defer r.mu.Unlock()
	repo, ok := r.repositories[name]
	if !ok {
		repo = &repository{name: name, client: r.client, logger: log.With(r.logger, "repository", name)}
		r.repositories[name] = repo
	}
	return repo
}

func (r *ECR) Images(ctx context.Context, repositoryName string) (Images, error) {
	return r.repository(repositoryName).images(ctx)
}

func (r *ECR) AuthorizationToken(ctx context.Context) (Credentials, error) {
	out, err := r.client.GetAuthorizationTokenWithContext(ctx, &ecr.GetAuthorizationTokenInput{})
	if err != nil {
		return Credentials{}, errors.Wrap(err, "fetching ECR authorization token")
	}
	if len(out.AuthorizationData) == 0 {
		return Credentials{}, errors.New("ECR returned no authorization data")
	}
	data := out.AuthorizationData[0]
	creds, err := parseAuth(aws.StringValue(data.AuthorizationToken))
	if err != nil {
		return Credentials{}, err
	}
	creds.Registry = strings.TrimPrefix(aws.StringValue(data.ProxyEndpoint), "https://")
	return creds, nil
}

type repository struct {
	name   string
	client ecriface.ECRAPI
	logger log.Logger
}

func (r *repository) images(ctx context.Context) (Images, error) {
	var result Images
	input := &ecr.ListImagesInput{
		RepositoryName: aws.String(r.name),
		Filter:         &ecr.ListImagesFilter{TagStatus: aws.String(ecr.TagStatusTagged)},
	}
	err := r.client.ListImagesPagesWithContext(ctx, input, func(page *ecr.ListImagesOutput, _ bool) bool {
		for _, id := range page.ImageIds {
			if id.ImageTag == nil {
				continue
			}
			img, err := NewImage(aws.StringValue(id.ImageTag), aws.StringValue(id.ImageDigest))
			if err != nil {
				level.Warn(r.logger).Log("action", "list-images", "repository", r.name, "info", "skipping tag", "err", err)
				continue
			}
			result = append(result, img)
		}
		return true
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == ecr.ErrCodeRepositoryNotFoundException {
			return nil, &fluxerr.Error{
				Type: fluxerr.Missing,
				Help: `The ECR repository ` + r.name + ` does not exist.

Create the repository, or correct the repository URI of the image
in the configuration file.`,
				Err: err,
			}
		}
		return nil, errors.Wrapf(err, "listing images of %s", r.name)
	}
	level.Debug(r.logger).Log("action", "list-images", "tags", len(result))
	return result, nil
}
