package publish

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/viant/afs"
	"github.com/viant/afs/url"
	_ "github.com/viant/afsc/gs"
	_ "github.com/viant/afsc/s3"
)

// AFS publishes through github.com/viant/afs to any registered scheme (file://, gs://, s3://).
// The returned reference is the destination URL.
type AFS struct {
	fs   afs.Service
	dest string
}

// NewAFS returns a publisher copying into the dest folder URL.
func NewAFS(dest string) *AFS {
	return &AFS{fs: afs.New(), dest: dest}
}

// Publish implements Publisher.
func (a *AFS) Publish(ctx context.Context, localPath string) (string, error) {
	abs, err := filepath.Abs(localPath)
	if err != nil {
		return "", err
	}
	target := url.Join(a.dest, filepath.Base(abs))
	if err := a.fs.Copy(ctx, "file://"+filepath.ToSlash(abs), target); err != nil {
		return "", fmt.Errorf("copy %s to %s: %w", abs, target, err)
	}
	return target, nil
}
