package registry_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/n9te9/federation-query-planner/registry"
)

const productsSDL = `
	type Product @key(fields: "id") {
		id: ID!
		name: String!
	}
	type Query {
		product(id: ID!): Product
	}
`

func writeManifest(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	if err := os.WriteFile(filepath.Join(dir, "products.graphql"), []byte(productsSDL), 0o644); err != nil {
		t.Fatalf("writing schema fixture: %v", err)
	}

	manifest := `
subgraphs:
  - name: products
    host: http://products.internal
    schema_file: products.graphql
`
	manifestPath := filepath.Join(dir, "manifest.yaml")
	if err := os.WriteFile(manifestPath, []byte(manifest), 0o644); err != nil {
		t.Fatalf("writing manifest fixture: %v", err)
	}
	return manifestPath
}

func TestLoadSubGraphsParsesManifest(t *testing.T) {
	path := writeManifest(t)

	subgraphs, err := registry.LoadSubGraphs(path)
	if err != nil {
		t.Fatalf("LoadSubGraphs failed: %v", err)
	}
	if len(subgraphs) != 1 || subgraphs[0].Name != "products" {
		t.Fatalf("expected a single products subgraph, got %+v", subgraphs)
	}
	if _, ok := subgraphs[0].Entity("Product"); !ok {
		t.Fatal("expected the products subgraph to declare the Product entity")
	}
}

func TestLoadSDLsReturnsRawSchemaBytes(t *testing.T) {
	path := writeManifest(t)

	sdls, err := registry.LoadSDLs(path)
	if err != nil {
		t.Fatalf("LoadSDLs failed: %v", err)
	}
	if !bytes.Contains(sdls["products"], []byte("type Product")) {
		t.Fatalf("expected raw SDL bytes for products, got %q", sdls["products"])
	}
}

func TestRegisterGatewayStoresPushedSubgraph(t *testing.T) {
	reg := registry.NewRegistry()

	body := registry.RegistrationRequest{
		RegistrationGraphs: []registry.RegistrationGraph{
			{Name: "products", Host: "http://products.internal", SDL: productsSDL},
		},
	}
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/schema/registration", bytes.NewReader(raw))
	w := httptest.NewRecorder()

	reg.RegisterGateway(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", w.Code, w.Body.String())
	}
	if len(reg.SubGraphs()) != 1 || reg.SubGraphs()[0].Name != "products" {
		t.Fatalf("expected the pushed subgraph to be registered, got %+v", reg.SubGraphs())
	}
}

func TestRegisterGatewayRejectsMalformedBody(t *testing.T) {
	reg := registry.NewRegistry()

	req := httptest.NewRequest(http.MethodPost, "/schema/registration", bytes.NewReader([]byte("not json")))
	w := httptest.NewRecorder()

	reg.RegisterGateway(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", w.Code)
	}
}
