package policy

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/google/go-cmp/cmp"
)

const exampleVolumes = `
vol-1:
  interval: yearly
  max_snapshots: 0
vol-2:
  interval: monthly
  max_snapshots: 1
  name: reports
vol-3:
  interval: Hourly
  max_snapshots: "2"
`

func TestParseDocument(t *testing.T) {
	set, err := ParseDocument([]byte(exampleVolumes))
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}

	want := map[string]Policy{
		"vol-1": {VolumeID: "vol-1", Interval: IntervalYearly, MaxSnapshots: 0},
		"vol-2": {VolumeID: "vol-2", Interval: IntervalMonthly, MaxSnapshots: 1, Name: "reports"},
		"vol-3": {VolumeID: "vol-3", Interval: IntervalHourly, MaxSnapshots: 2},
	}
	if diff := cmp.Diff(want, set.Policies); diff != "" {
		t.Errorf("policies mismatch (-want +got):\n%s", diff)
	}
	if len(set.Rejected) != 0 {
		t.Errorf("unexpected rejected entries: %v", set.Rejected)
	}
}

func TestParseDocument_JSON(t *testing.T) {
	set, err := ParseDocument([]byte(`{"vol-1": {"interval": "daily", "max_snapshots": 3}}`))
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	if got := set.Policies["vol-1"]; got.Interval != IntervalDaily || got.MaxSnapshots != 3 {
		t.Errorf("vol-1 = %+v", got)
	}
}

func TestParseDocument_PerEntryRejection(t *testing.T) {
	doc := `
vol-ok:
  interval: daily
vol-typo:
  interval: daily
  max_snapshot: 3
vol-fraction:
  interval: daily
  max_snapshots: 2.5
vol-empty:
vol-scalar: daily
vol-daily-ish:
  interval: daily-ish
`
	set, err := ParseDocument([]byte(doc))
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}

	if _, ok := set.Policies["vol-ok"]; !ok {
		t.Error("vol-ok should be accepted")
	}
	for _, id := range []string{"vol-typo", "vol-fraction", "vol-empty", "vol-scalar"} {
		if !IsConfigError(set.Rejected[id]) {
			t.Errorf("%s: rejected error = %v, want ConfigError", id, set.Rejected[id])
		}
	}

	// Decodes fine; the interval itself is rejected later by Validate.
	p, ok := set.Policies["vol-daily-ish"]
	if !ok {
		t.Fatal("vol-daily-ish should decode")
	}
	if err := p.Validate(); !IsConfigError(err) {
		t.Errorf("Validate() = %v, want ConfigError", err)
	}

	if got := set.Len(); got != 6 {
		t.Errorf("Len() = %d, want 6", got)
	}
}

func TestParseDocument_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"Sequence Instead Of Mapping", "- vol-1\n- vol-2\n"},
		{"Plain Scalar", "just words"},
		{"Duplicate Volume", "vol-1:\n  interval: daily\nvol-1:\n  interval: hourly\n"},
		{"Broken Syntax", "vol-1: [unclosed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseDocument([]byte(tt.doc)); err == nil {
				t.Error("expected parse error")
			}
		})
	}
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "volumes.yml")
	if err := os.WriteFile(path, []byte(exampleVolumes), 0o600); err != nil {
		t.Fatal(err)
	}

	src, err := NewSource("file://"+path, nil)
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}
	if !strings.HasPrefix(src.Name(), "file:") {
		t.Errorf("Name() = %q", src.Name())
	}

	set, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(set.Policies) != 3 {
		t.Errorf("got %d policies, want 3", len(set.Policies))
	}

	missing := NewFileSource(filepath.Join(t.TempDir(), "missing.yml"))
	if _, err := missing.Load(context.Background()); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestInlineSource(t *testing.T) {
	src, err := NewSource(exampleVolumes, nil)
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}
	if !strings.HasPrefix(src.Name(), SourceInline) {
		t.Errorf("Name() = %q, want inline source", src.Name())
	}

	set, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(set.Policies) != 3 {
		t.Errorf("got %d policies, want 3", len(set.Policies))
	}

	if _, err := NewInlineSource("{broken"); err == nil {
		t.Error("expected error for invalid inline document")
	}
}

type fakeS3 struct {
	s3iface.S3API
	body    string
	err     error
	request *s3.GetObjectInput
}

func (f *fakeS3) GetObjectWithContext(ctx aws.Context, in *s3.GetObjectInput, opts ...request.Option) (*s3.GetObjectOutput, error) {
	f.request = in
	if f.err != nil {
		return nil, f.err
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(f.body))}, nil
}

func TestS3Source(t *testing.T) {
	client := &fakeS3{body: exampleVolumes}

	src, err := NewSource("s3://backups/config/volumes.yml", client)
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}

	set, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(set.Policies) != 3 {
		t.Errorf("got %d policies, want 3", len(set.Policies))
	}
	if aws.StringValue(client.request.Bucket) != "backups" || aws.StringValue(client.request.Key) != "config/volumes.yml" {
		t.Errorf("requested s3://%s/%s", aws.StringValue(client.request.Bucket), aws.StringValue(client.request.Key))
	}

	client.err = errors.New("AccessDenied")
	if _, err := src.Load(context.Background()); err == nil {
		t.Error("expected error when the object cannot be fetched")
	}
}

func TestParseS3ObjectURL(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantErr   bool
		wantBkt   string
		wantKey   string
		errSubstr string
	}{
		{name: "bucket and key", raw: "s3://my-bucket/volumes.yml", wantBkt: "my-bucket", wantKey: "volumes.yml"},
		{name: "nested key", raw: "s3://my-bucket/a/b/volumes.yml", wantBkt: "my-bucket", wantKey: "a/b/volumes.yml"},
		{name: "missing key", raw: "s3://my-bucket", wantErr: true, errSubstr: "object key"},
		{name: "missing bucket", raw: "s3:///volumes.yml", wantErr: true, errSubstr: "missing bucket"},
		{name: "invalid scheme", raw: "https://my-bucket/volumes.yml", wantErr: true, errSubstr: "s3:// scheme"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bkt, key, err := parseS3ObjectURL(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !strings.Contains(err.Error(), tt.errSubstr) {
					t.Fatalf("err = %q, want substring %q", err.Error(), tt.errSubstr)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseS3ObjectURL error: %v", err)
			}
			if bkt != tt.wantBkt || key != tt.wantKey {
				t.Fatalf("got %q %q, want %q %q", bkt, key, tt.wantBkt, tt.wantKey)
			}
		})
	}
}

func TestNewSource_S3WithoutClient(t *testing.T) {
	if _, err := NewSource("s3://bucket/key.yml", nil); err == nil {
		t.Fatal("expected error without s3 client")
	}
	if _, err := NewSource("   ", nil); err == nil {
		t.Fatal("expected error for empty location")
	}
}
