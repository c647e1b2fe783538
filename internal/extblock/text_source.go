package extblock

import (
	"bufio"
	"bytes"
	"context"
	"regexp"
	"strings"
)

var cidrRegex = regexp.MustCompile(`\b\d{1,3}(?:\.\d{1,3}){3}(?:/\d{1,2})?\b`)

// NewTextSource builds a source over a line-oriented plaintext list of IPv4
// addresses and CIDR prefixes. Comment lines and surrounding noise are
// ignored; each line contributes whatever address-looking tokens it carries.
func NewTextSource(name, url string) Source {
	return newPrefixSet(name, url, fetchTextPrefixes)
}

func fetchTextPrefixes(ctx context.Context, url string) ([]string, error) {
	body, err := fetchBody(ctx, url)
	if err != nil {
		return nil, err
	}

	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 1024), 1024*1024)

	seen := make(map[string]struct{})
	var prefixes []string

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		for _, match := range cidrRegex.FindAllString(line, -1) {
			if _, dup := seen[match]; dup {
				continue
			}
			seen[match] = struct{}{}
			prefixes = append(prefixes, match)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return prefixes, nil
}
