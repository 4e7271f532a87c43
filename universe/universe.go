// Package universe caches the exchange's asset index table, which maps a
// symbol to the integer index signed orders refer to.
package universe

import (
	"context"
	"errors"
	"fmt"

	"github.com/perpdesk/perpdesk/ratelimit"
)

// ErrUnknownAsset is returned when a symbol is not part of the universe.
var ErrUnknownAsset = errors.New("universe: unknown asset")

// Asset is one entry of the meta universe.
type Asset struct {
	Name       string `json:"name"`
	SzDecimals int    `json:"szDecimals"`
}

// Universe resolves symbols to asset indexes. The index of an asset is its
// position in the universe array, a hard wire contract with the exchange.
type Universe struct {
	assets []Asset
	index  map[string]int
}

// New builds a Universe from an already-fetched asset table.
func New(assets []Asset) *Universe {
	index := make(map[string]int, len(assets))
	for i, asset := range assets {
		index[asset.Name] = i
	}
	return &Universe{
		assets: append([]Asset(nil), assets...),
		index:  index,
	}
}

type metaRequest struct {
	Type string `json:"type"`
}

type metaResponse struct {
	Universe []Asset `json:"universe"`
}

// Fetch loads the universe from the info endpoint via a POST {type:"meta"}.
func Fetch(ctx context.Context, client *ratelimit.Client, infoURL string) (*Universe, error) {
	var meta metaResponse
	if err := client.PostJSON(ctx, infoURL, metaRequest{Type: "meta"}, &meta); err != nil {
		return nil, fmt.Errorf("universe: fetch meta: %w", err)
	}
	return New(meta.Universe), nil
}

// AssetIndex resolves a symbol to its index.
func (u *Universe) AssetIndex(symbol string) (int, error) {
	idx, ok := u.index[symbol]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownAsset, symbol)
	}
	return idx, nil
}

// Asset returns the full entry for a symbol.
func (u *Universe) Asset(symbol string) (Asset, error) {
	idx, err := u.AssetIndex(symbol)
	if err != nil {
		return Asset{}, err
	}
	return u.assets[idx], nil
}

// Len reports the number of known assets.
func (u *Universe) Len() int { return len(u.assets) }
