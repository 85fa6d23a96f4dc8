package blobsource

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirSourceListsCaseFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"02-42-ibuprofen.json",
		"01-3-heparin.JSON",
		"notes.txt",
		"ibuprofen.json",
		"01-covid-treatment-listing.json",
		"02-0-placebo.json",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("[]"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "09-1-nested.json"), 0o755))

	src, err := NewDirSource(dir)
	require.NoError(t, err)

	names, err := src.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"01-3-heparin.JSON", "02-42-ibuprofen.json"}, names)

	body, err := src.Read(context.Background(), "02-42-ibuprofen.json")
	require.NoError(t, err)
	assert.Equal(t, "[]", string(body))
}

func TestIsCaseFile(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"02-42-ibuprofen.json", true},
		{"02-7-interferon--beta.json", true},
		{"raw/02-42-ibuprofen.json", true},
		{"01-covid-treatment-listing.json", false},
		{"02-x-ibuprofen.json", false},
		{"02-42-.json", false},
		{"02-42-ibuprofen.csv", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isCaseFile(tt.name), tt.name)
	}
}

func TestDirSourceRejectsEscapingNames(t *testing.T) {
	src, err := NewDirSource(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"", "..", "../etc/passwd", "sub/file.json"} {
		_, err := src.Read(context.Background(), name)
		assert.Error(t, err, name)
	}
}

func TestNewDirSourceRequiresDirectory(t *testing.T) {
	_, err := NewDirSource(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err = NewDirSource(file)
	assert.Error(t, err)
}

type fakeS3 struct {
	pages   [][]string
	objects map[string]string
	calls   int
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	page := f.calls
	f.calls++
	out := &s3.ListObjectsV2Output{}
	for _, key := range f.pages[page] {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(key)})
	}
	if page+1 < len(f.pages) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String("next")
	}
	return out, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func TestS3SourceListsAllPages(t *testing.T) {
	client := &fakeS3{pages: [][]string{
		{"raw/02-42-ibuprofen.json", "raw/readme.md", "raw/01-covid-treatment-listing.json"},
		{"raw/01-3-heparin.json"},
	}}
	src := NewS3Source(client, "cureid", "raw/")

	keys, err := src.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"raw/01-3-heparin.json", "raw/02-42-ibuprofen.json"}, keys)
	assert.Equal(t, 2, client.calls)
}

func TestS3SourceRead(t *testing.T) {
	client := &fakeS3{objects: map[string]string{"raw/02-42-ibuprofen.json": "[{}]"}}
	src := NewS3Source(client, "cureid", "raw/")

	body, err := src.Read(context.Background(), "raw/02-42-ibuprofen.json")
	require.NoError(t, err)
	assert.Equal(t, "[{}]", string(body))

	_, err = src.Read(context.Background(), "raw/missing.json")
	assert.Error(t, err)
}
