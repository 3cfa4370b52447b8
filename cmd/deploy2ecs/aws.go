package main

import (
	"net/http"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"

	"github.com/fluxcd/deploy2ecs/pkg/image"
	"github.com/fluxcd/deploy2ecs/pkg/middleware"
	"github.com/fluxcd/deploy2ecs/pkg/registry"
)

// awsRegion picks the region to talk to: the one given, or failing
// that the region of the first ECR repository configured. An empty
// result leaves it to the SDK's usual configuration.
func awsRegion(given string, images []image.Config) string {
	if given != "" {
		return given
	}
	for _, img := range images {
		if region, ok := registry.RegionOf(img.Repository.Domain); ok {
			return region
		}
	}
	return ""
}

// newAWSSession makes a session whose HTTP requests are rate limited
// per host, backing off when AWS reports throttling.
func newAWSSession(region string, limiters *middleware.RateLimiters, logger log.Logger) (*session.Session, error) {
	cfg := aws.NewConfig().
		WithHTTPClient(&http.Client{Transport: limiters.Transport(http.DefaultTransport)})
	if region != "" {
		cfg = cfg.WithRegion(region)
	}
	sess, err := session.NewSessionWithOptions(session.Options{
		Config:            *cfg,
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating AWS session")
	}
	level.Debug(logger).Log("region", aws.StringValue(sess.Config.Region))
	return sess, nil
}
