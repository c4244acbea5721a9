// Package search turns search requests into store queries and carries paging
// state in an encoded token instead of server-side sessions. The token is
// immutable and self-contained: handing it back reproduces the exact query
// at the requested page, with no per-process state to leak or lose.
package search

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrBadToken reports a page token that could not be decoded.
var ErrBadToken = errors.New("malformed page token")

// PageToken is the encoded paging state embedded in responses. Short JSON
// keys keep the token compact enough for chat control payloads.
type PageToken struct {
	Keyword  string `json:"q,omitempty"`
	ChatID   int64  `json:"c,omitempty"`
	UserID   int64  `json:"u,omitempty"`
	Kind     string `json:"k,omitempty"`
	DateFrom int64  `json:"df,omitempty"`
	DateTo   int64  `json:"dt,omitempty"`
	Page     int    `json:"p"`
	PageSize int    `json:"s"`
}

// Encode serializes the token as unpadded URL-safe base64 JSON.
func (t PageToken) Encode() string {
	data, err := json.Marshal(t)
	if err != nil {
		// PageToken contains only scalars; Marshal cannot fail.
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeToken parses a token previously produced by Encode.
func DecodeToken(s string) (PageToken, error) {
	data, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return PageToken{}, fmt.Errorf("%w: %v", ErrBadToken, err)
	}
	var t PageToken
	if err := json.Unmarshal(data, &t); err != nil {
		return PageToken{}, fmt.Errorf("%w: %v", ErrBadToken, err)
	}
	if t.Page < 0 || t.PageSize <= 0 {
		return PageToken{}, fmt.Errorf("%w: bad paging state", ErrBadToken)
	}
	return t, nil
}
