package download

import (
	"context"

	"github.com/nao1215/irharvest/internal/model"
)

// Index remembers which documents have been stored. Lookups return
// (nil, nil) when nothing matches.
type Index interface {
	LookupByURL(ctx context.Context, company, sourceURL string) (*model.DownloadRecord, error)
	LookupByFilename(ctx context.Context, company, filename string) (*model.DownloadRecord, error)
	InsertDownload(ctx context.Context, rec model.DownloadRecord) error
}
