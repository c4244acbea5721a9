package search

import (
	"context"
	"fmt"

	"chatgrep/internal/archive"
	"chatgrep/internal/store"
)

// Config holds search defaults.
type Config struct {
	// PageSize is the default number of hits per page.
	PageSize int `yaml:"page_size"`
	// MaxPageSize caps what a request may ask for.
	MaxPageSize int `yaml:"max_page_size"`
}

// DefaultConfig returns the search defaults.
func DefaultConfig() Config {
	return Config{PageSize: 5, MaxPageSize: 50}
}

// Request is a search invocation. When Token is set it carries the whole
// query state and the other fields are ignored.
type Request struct {
	Keyword  string
	ChatID   int64
	UserID   int64
	Kind     string
	DateFrom int64
	DateTo   int64
	PageSize int
	Token    string
}

// Response is one page of results. NextToken and PrevToken reproduce the
// same query at the adjacent pages; they are empty at the ends.
type Response struct {
	Total      int64             `json:"total"`
	Page       int               `json:"page"`
	TotalPages int               `json:"total_pages"`
	Messages   []archive.Message `json:"messages"`
	NextToken  string            `json:"next_token,omitempty"`
	PrevToken  string            `json:"prev_token,omitempty"`
}

// Service executes search requests against the store.
type Service struct {
	searcher store.Searcher
	cfg      Config
}

// NewService builds a search service.
func NewService(searcher store.Searcher, cfg Config) *Service {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultConfig().PageSize
	}
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = DefaultConfig().MaxPageSize
	}
	return &Service{searcher: searcher, cfg: cfg}
}

// Search resolves the request to a page token, runs the query and attaches
// the adjacent page tokens to the response.
func (s *Service) Search(ctx context.Context, req Request) (*Response, error) {
	token, err := s.resolveToken(req)
	if err != nil {
		return nil, err
	}

	result, err := s.searcher.Search(ctx, store.SearchQuery{
		Keyword:  token.Keyword,
		ChatID:   token.ChatID,
		UserID:   token.UserID,
		Kind:     archive.Kind(token.Kind),
		DateFrom: token.DateFrom,
		DateTo:   token.DateTo,
		From:     token.Page * token.PageSize,
		Size:     token.PageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	totalPages := int((result.Total + int64(token.PageSize) - 1) / int64(token.PageSize))
	resp := &Response{
		Total:      result.Total,
		Page:       token.Page,
		TotalPages: totalPages,
		Messages:   result.Messages,
	}
	if token.Page+1 < totalPages {
		next := token
		next.Page++
		resp.NextToken = next.Encode()
	}
	if token.Page > 0 {
		prev := token
		prev.Page--
		resp.PrevToken = prev.Encode()
	}
	return resp, nil
}

func (s *Service) resolveToken(req Request) (PageToken, error) {
	if req.Token != "" {
		token, err := DecodeToken(req.Token)
		if err != nil {
			return PageToken{}, err
		}
		if token.PageSize > s.cfg.MaxPageSize {
			token.PageSize = s.cfg.MaxPageSize
		}
		return token, nil
	}

	size := req.PageSize
	if size <= 0 {
		size = s.cfg.PageSize
	}
	if size > s.cfg.MaxPageSize {
		size = s.cfg.MaxPageSize
	}
	return PageToken{
		Keyword:  req.Keyword,
		ChatID:   req.ChatID,
		UserID:   req.UserID,
		Kind:     req.Kind,
		DateFrom: req.DateFrom,
		DateTo:   req.DateTo,
		Page:     0,
		PageSize: size,
	}, nil
}
