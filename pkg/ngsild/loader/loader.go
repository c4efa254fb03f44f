// Package loader reads and writes entity documents from files or http(s)
// urls, so that sample payloads and exports can round trip through the
// entity model.
package loader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/diwise/ngsild-client/pkg/ngsild/errors"
	"github.com/diwise/ngsild-client/pkg/ngsild/types"
	"github.com/diwise/ngsild-client/pkg/ngsild/types/entities"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Fetch reads the raw bytes behind a locator: an http(s) url is fetched
// over the network, anything else is treated as a file path.
func Fetch(ctx context.Context, locator string) ([]byte, error) {
	if strings.HasPrefix(locator, "http://") || strings.HasPrefix(locator, "https://") {
		httpClient := http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %s (%w)", err.Error(), errors.ErrInternal)
		}

		resp, err := httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s: %s (%w)", locator, err.Error(), errors.ErrRequest)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("fetching %s returned status code %d (%w)", locator, resp.StatusCode, errors.ErrRequest)
		}

		return io.ReadAll(resp.Body)
	}

	return os.ReadFile(locator)
}

// Entity loads a single entity document.
func Entity(ctx context.Context, locator string) (types.Entity, error) {
	body, err := Fetch(ctx, locator)
	if err != nil {
		return nil, err
	}

	return entities.NewFromJSON(body)
}

// Entities loads an array of entity documents.
func Entities(ctx context.Context, locator string) ([]types.Entity, error) {
	body, err := Fetch(ctx, locator)
	if err != nil {
		return nil, err
	}

	return entities.NewFromSlice(body)
}

// Save writes a single entity document to a file, indented for
// readability.
func Save(entity types.Entity, path string) error {
	body, err := entity.MarshalJSON()
	if err != nil {
		return err
	}

	indented, err := indent(body)
	if err != nil {
		return err
	}

	return os.WriteFile(path, indented, 0644)
}

// SaveAll writes a slice of entities to a file as a JSON array.
func SaveAll(batch []types.Entity, path string) error {
	body, err := json.Marshal(batch)
	if err != nil {
		return err
	}

	indented, err := indent(body)
	if err != nil {
		return err
	}

	return os.WriteFile(path, indented, 0644)
}

// indent pretty prints without reordering members.
func indent(body []byte) ([]byte, error) {
	out := &bytes.Buffer{}
	if err := json.Indent(out, body, "", "  "); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
