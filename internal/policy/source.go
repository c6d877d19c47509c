package policy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"gopkg.in/yaml.v3"
)

// Source yields the declared policy set. A failed Load leaves the caller's
// last known good set in place.
type Source interface {
	// Name describes the source for logs ("file:/etc/volumes.yml").
	Name() string
	// Load fetches and parses the policy document.
	Load(ctx context.Context) (Set, error)
}

// Source kinds.
const (
	SourceFile   = "file"
	SourceS3     = "s3"
	SourceInline = "inline"
)

// documentSource is the single Source implementation. Variants differ only
// in how the raw document bytes are read.
type documentSource struct {
	kind     string
	location string
	read     func(ctx context.Context) ([]byte, error)
}

func (d *documentSource) Name() string {
	return fmt.Sprintf("%s:%s", d.kind, d.location)
}

func (d *documentSource) Load(ctx context.Context) (Set, error) {
	data, err := d.read(ctx)
	if err != nil {
		return Set{}, fmt.Errorf("reading %s policy source: %w", d.kind, err)
	}
	set, err := ParseDocument(data)
	if err != nil {
		return Set{}, fmt.Errorf("parsing %s policy source: %w", d.kind, err)
	}
	return set, nil
}

// NewFileSource reads a YAML or JSON policy document from path on every Load.
func NewFileSource(path string) Source {
	return &documentSource{
		kind:     SourceFile,
		location: path,
		read: func(ctx context.Context) ([]byte, error) {
			return os.ReadFile(path)
		},
	}
}

// NewInlineSource serves a policy document given as a string. The document
// is parsed once up front so a broken value fails at startup.
func NewInlineSource(document string) (Source, error) {
	if _, err := ParseDocument([]byte(document)); err != nil {
		return nil, fmt.Errorf("inline policy document is not valid yaml or json: %w", err)
	}
	data := []byte(document)
	return &documentSource{
		kind:     SourceInline,
		location: fmt.Sprintf("%d bytes", len(data)),
		read: func(ctx context.Context) ([]byte, error) {
			return data, nil
		},
	}, nil
}

// NewS3Source fetches the policy document from an s3://bucket/key URL.
func NewS3Source(client s3iface.S3API, rawURL string) (Source, error) {
	if client == nil {
		return nil, errors.New("s3 policy source requires an s3 client")
	}
	bucket, key, err := parseS3ObjectURL(rawURL)
	if err != nil {
		return nil, err
	}
	return &documentSource{
		kind:     SourceS3,
		location: rawURL,
		read: func(ctx context.Context) ([]byte, error) {
			out, err := client.GetObjectWithContext(ctx, &s3.GetObjectInput{
				Bucket: aws.String(bucket),
				Key:    aws.String(key),
			})
			if err != nil {
				return nil, err
			}
			defer out.Body.Close()
			return io.ReadAll(out.Body)
		},
	}, nil
}

// NewSource picks the variant from the shape of location: an s3:// URL, an
// inline document (JSON object or multi-line YAML), or a file path with an
// optional file:// prefix.
func NewSource(location string, s3Client s3iface.S3API) (Source, error) {
	trimmed := strings.TrimSpace(location)
	switch {
	case trimmed == "":
		return nil, errors.New("policy source is empty")
	case strings.HasPrefix(trimmed, "s3://"):
		return NewS3Source(s3Client, trimmed)
	case strings.HasPrefix(trimmed, "{") || strings.Contains(trimmed, "\n"):
		return NewInlineSource(location)
	default:
		return NewFileSource(strings.TrimPrefix(trimmed, "file://")), nil
	}
}

// ParseDocument parses a YAML (or JSON, which is a YAML subset) mapping of
// volume ID to policy entry. Duplicate volume IDs are rejected by the YAML
// decoder. Entries that fail to decode are collected in Set.Rejected.
func ParseDocument(data []byte) (Set, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Set{}, err
	}

	set := NewSet()
	for volumeID, raw := range doc {
		p, err := decodePolicy(volumeID, raw)
		if err != nil {
			set.Rejected[volumeID] = err
			continue
		}
		set.Policies[volumeID] = p
	}
	return set, nil
}

func parseS3ObjectURL(raw string) (bucket string, key string, err error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", "", fmt.Errorf("s3: parse policy url: %w", err)
	}
	if u.Scheme != "s3" {
		return "", "", fmt.Errorf("s3: policy url must use s3:// scheme")
	}
	if strings.TrimSpace(u.Host) == "" {
		return "", "", fmt.Errorf("s3: policy url missing bucket name")
	}
	key = strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", fmt.Errorf("s3: policy url missing object key")
	}
	return u.Host, key, nil
}
