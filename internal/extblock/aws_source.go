package extblock

import (
	"context"
	"encoding/json"
	"fmt"
)

// DefaultAWSRangesURL is Amazon's published IP range document.
const DefaultAWSRangesURL = "https://ip-ranges.amazonaws.com/ip-ranges.json"

type awsRangesDoc struct {
	Prefixes []struct {
		IPPrefix string `json:"ip_prefix"`
	} `json:"prefixes"`
	IPv6Prefixes []struct {
		IPv6Prefix string `json:"ipv6_prefix"`
	} `json:"ipv6_prefixes"`
}

// NewAWSSource builds a source over Amazon's ip-ranges.json format. An empty
// url selects the canonical document.
func NewAWSSource(name, url string) Source {
	if url == "" {
		url = DefaultAWSRangesURL
	}
	return newPrefixSet(name, url, fetchAWSPrefixes)
}

func fetchAWSPrefixes(ctx context.Context, url string) ([]string, error) {
	body, err := fetchBody(ctx, url)
	if err != nil {
		return nil, err
	}

	var doc awsRangesDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode ip-ranges document: %w", err)
	}

	seen := make(map[string]struct{}, len(doc.Prefixes)+len(doc.IPv6Prefixes))
	prefixes := make([]string, 0, len(doc.Prefixes)+len(doc.IPv6Prefixes))
	add := func(prefix string) {
		if prefix == "" {
			return
		}
		if _, dup := seen[prefix]; dup {
			return
		}
		seen[prefix] = struct{}{}
		prefixes = append(prefixes, prefix)
	}

	for _, entry := range doc.Prefixes {
		add(entry.IPPrefix)
	}
	for _, entry := range doc.IPv6Prefixes {
		add(entry.IPv6Prefix)
	}

	return prefixes, nil
}
