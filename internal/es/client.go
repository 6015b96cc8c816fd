// Package es wraps the official Elasticsearch client for the aggregation-only
// searches the extractor issues against the metrics cluster.
package es

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/rs/zerolog"
)

// DefaultIndex is the index pattern the workflow system writes job records to.
const DefaultIndex = "logstash-*"

// Endpoint is the parsed form of the es_url argument. The original tooling
// passes the full search URL, e.g. https://venue/mozart_es/logstash-*/_search;
// the address keeps any path prefix in front of the index pattern.
type Endpoint struct {
	Address string
	Index   string
	Host    string
}

// ParseEndpoint splits a search URL into the client address, the index
// pattern, and the hostname used for report file naming.
func ParseEndpoint(raw string) (Endpoint, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Endpoint{}, fmt.Errorf("parse es_url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return Endpoint{}, fmt.Errorf("es_url %q must include scheme and host", raw)
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if n := len(segments); n > 0 && segments[n-1] == "_search" {
		segments = segments[:n-1]
	}

	index := DefaultIndex
	if n := len(segments); n > 0 && segments[n-1] != "" {
		index = segments[n-1]
		segments = segments[:n-1]
	}

	address := u.Scheme + "://" + u.Host
	if prefix := strings.Join(segments, "/"); prefix != "" {
		address += "/" + prefix
	}

	return Endpoint{Address: address, Index: index, Host: u.Host}, nil
}

// Credentials carry the basic-auth pair for the cluster. Both fields may be
// empty for unauthenticated clusters.
type Credentials struct {
	Username string
	Password string
}

// Config configures the search client.
type Config struct {
	Endpoint    Endpoint
	Credentials Credentials
	// Insecure disables TLS certificate verification; metrics clusters are
	// routinely fronted by self-signed certificates.
	Insecure bool
	// Timeout bounds each search request. Zero means no per-request bound.
	Timeout time.Duration
	// DebugBodies includes request and response bodies in transport logs.
	DebugBodies bool
	// Transport overrides the HTTP transport; tests inject a stub here.
	Transport http.RoundTripper
}

// Client issues aggregation searches against a single index pattern.
type Client struct {
	es      *elasticsearch.Client
	index   string
	timeout time.Duration
	logger  zerolog.Logger
}

// NewClient builds the underlying Elasticsearch client and pins it to the
// endpoint's index pattern.
func NewClient(cfg Config, logger zerolog.Logger) (*Client, error) {
	transport := cfg.Transport
	if transport == nil {
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.Insecure},
		}
	}

	esClient, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.Endpoint.Address},
		Username:  cfg.Credentials.Username,
		Password:  cfg.Credentials.Password,
		Transport: transport,
		Logger:    newTransportLogger(logger, cfg.DebugBodies),
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	return &Client{
		es:      esClient,
		index:   cfg.Endpoint.Index,
		timeout: cfg.Timeout,
		logger:  logger,
	}, nil
}

// Search posts one aggregation query body and decodes the response envelope.
func (c *Client) Search(ctx context.Context, query map[string]any) (*SearchResult, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", c.index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		detail, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, fmt.Errorf("search %s: %s: %s", c.index, res.Status(), strings.TrimSpace(string(detail)))
	}

	result, err := decodeSearchResponse(res.Body)
	if err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return result, nil
}
