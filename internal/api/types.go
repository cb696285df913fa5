package api

import "blocklag/internal/model"

// blockResponse is the envelope returned by the headers endpoints. The
// full payload also carries chunk headers; only the block header is
// decoded here.
type blockResponse struct {
	Header *model.BlockHeader `json:"header"`
}
