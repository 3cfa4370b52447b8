package image

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

const (
	// LatestTag is the tag that always points at the most recently
	// built image of a repository.
	LatestTag = "latest"
)

var (
	ErrInvalidImageID   = errors.New("invalid image ID")
	ErrBlankImageID     = errors.Wrap(ErrInvalidImageID, "blank repository URI")
	ErrMalformedImageID = errors.Wrap(ErrInvalidImageID, `expected repository URI as <registry>/<path>, without a tag`)

	commitHashPattern = regexp.MustCompile(`^[0-9a-f]{5,40}$`)
)

// IsCommitHash says whether s looks like a (possibly abbreviated) git
// commit hash. Tags and resource tags that don't are not trusted to
// say which commit something was built or rendered from.
//
// The whole of s must match, so tags that merely start with hex
// digits, such as `abcde-hotfix`, or hex longer than 40 digits, are not
// commit hashes.
func IsCommitHash(s string) bool {
	return commitHashPattern.MatchString(s)
}

// Name is an untagged image repository, with the registry domain
// separated out; e.g., for
//
//     123456789012.dkr.ecr.eu-west-1.amazonaws.com/team/web
//
// the Domain is the ECR registry and Image is `team/web`, which is
// also the repository name the registry API knows it by.
type Name struct {
	Domain, Image string
}

func (i Name) String() string {
	if i.Image == "" {
		return ""
	}
	var host string
	if i.Domain != "" {
		host = i.Domain + "/"
	}
	return fmt.Sprintf("%s%s", host, i.Image)
}

// ToRef returns the tagged reference `<name>:<tag>`.
func (i Name) ToRef(tag string) string {
	return fmt.Sprintf("%s:%s", i.String(), tag)
}

// ParseName splits a repository URI into its domain and path.
func ParseName(uri string) (Name, error) {
	if uri == "" {
		return Name{}, ErrBlankImageID
	}
	parts := strings.SplitN(uri, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Name{}, errors.Wrapf(ErrMalformedImageID, "parsing %q", uri)
	}
	if strings.Contains(parts[1], ":") || strings.Contains(parts[1], "@") {
		return Name{}, errors.Wrapf(ErrMalformedImageID, "parsing %q", uri)
	}
	return Name{Domain: parts[0], Image: parts[1]}, nil
}

// Config describes how one image is built, and which paths in the
// repository it depends on.
type Config struct {
	Name string
	// Repository is where the image is published
	Repository Name
	// Context is the build context, always with forward slashes and
	// a trailing slash
	Context string
	// BuildFile is the Dockerfile, relative to the context
	BuildFile string
	// Dependencies and Excludes scope which changes are relevant to
	// the image
	Dependencies []string
	Excludes     []string
}

// NewConfig normalises the context and build file paths given, so
// that the build file is expressed relative to the context root.
func NewConfig(name, repositoryURI, context, buildFile string, dependencies, excludes []string) (Config, error) {
	repo, err := ParseName(repositoryURI)
	if err != nil {
		return Config{}, err
	}
	ctx := NormalizeContext(context)
	return Config{
		Name:         name,
		Repository:   repo,
		Context:      ctx,
		BuildFile:    RelativeBuildFile(ctx, buildFile),
		Dependencies: dependencies,
		Excludes:     excludes,
	}, nil
}

// NormalizeContext makes the context use forward slashes and end with
// one; `.` becomes `./`.
func NormalizeContext(context string) string {
	context = strings.Replace(context, `\`, "/", -1)
	if context == "." {
		context = "./"
	}
	if !strings.HasSuffix(context, "/") {
		context = context + "/"
	}
	return context
}

// RelativeBuildFile replaces a leading (normalised) context in
// buildFile with `./`.
func RelativeBuildFile(context, buildFile string) string {
	buildFile = strings.Replace(buildFile, `\`, "/", -1)
	if strings.HasPrefix(buildFile, context) {
		return "./" + strings.TrimPrefix(buildFile, context)
	}
	return buildFile
}

// RepositoryName is the name the registry API knows the repository by.
func (c Config) RepositoryName() string {
	return c.Repository.Image
}

// TaggedURI returns the full reference to the image with the tag given.
func (c Config) TaggedURI(tag string) string {
	return c.Repository.ToRef(tag)
}
