package fetch

import (
	"context"
	"os"

	getter "github.com/hashicorp/go-getter"
	"golang.org/x/xerrors"

	"github.com/aquasecurity/oval-updater/pkg/log"
)

// Download stores the document at src in the file dst. src accepts every
// go-getter source, e.g. an https URL or "file::/path/to/oval.xml".
func Download(ctx context.Context, src, dst string) error {
	logger := log.WithPrefix("fetch")
	logger.Info("Downloading OVAL document", log.String("uri", src), log.FilePath(dst))

	pwd, err := os.Getwd()
	if err != nil {
		return xerrors.Errorf("unable to get the current dir: %w", err)
	}

	client := &getter.Client{
		Ctx:     ctx,
		Src:     src,
		Dst:     dst,
		Pwd:     pwd,
		Getters: getter.Getters,
		Mode:    getter.ClientModeFile,
	}
	if err = client.Get(); err != nil {
		return xerrors.Errorf("failed to download %s: %w", src, err)
	}

	logger.Debug("Download completed", log.FilePath(dst))
	return nil
}
