package service

import (
	"context"

	"github.com/contentops/cms-translator/internal/cms"
)

// DocumentFetcher lists published source items and loads full documents.
type DocumentFetcher interface {
	ListItems(ctx context.Context, contentType string) ([]cms.ItemRef, error)
	FetchDocument(ctx context.Context, contentType, slug string) (cms.Item, error)
}

// Deliverer writes one translated document to the destination store and
// returns the destination entry id.
type Deliverer interface {
	Deliver(ctx context.Context, contentType string, sourceItemID int64, targetLanguage string, doc map[string]any) (int64, error)
}
