// Package registry loads the subgraphs a planctl server composes into
// one QueryPlanner from a YAML manifest read at startup, and stores the
// subgraphs pushed in over HTTP by a publisher rolling out a new
// subgraph schema.
// It adapts the teacher's registry.Registry, which only ever fanned
// schema pushes out to peer gateways; this version also knows how to
// read the manifest a single planctl process boots from.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/goccy/go-yaml"
	"golang.org/x/sync/errgroup"

	"github.com/n9te9/federation-query-planner/internal/federation"
)

// Manifest is the YAML file planctl reads at startup: one entry per
// subgraph, naming where its SDL file lives on disk.
type Manifest struct {
	Subgraphs []ManifestSubgraph `yaml:"subgraphs"`
}

// ManifestSubgraph names one subgraph's service identity and schema
// location, relative to the manifest file's own directory.
type ManifestSubgraph struct {
	Name       string `yaml:"name"`
	Host       string `yaml:"host"`
	SchemaFile string `yaml:"schema_file"`
}

// loadManifestSDLs reads a manifest file and returns each named
// subgraph's raw SDL bytes, host, and parse order.
func loadManifestSDLs(path string) (*Manifest, map[string][]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}

	var manifest Manifest
	if err := yaml.Unmarshal(raw, &manifest); err != nil {
		return nil, nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	sdls := make(map[string][]byte, len(manifest.Subgraphs))
	for _, entry := range manifest.Subgraphs {
		sdl, err := os.ReadFile(filepath.Join(dir, entry.SchemaFile))
		if err != nil {
			return nil, nil, fmt.Errorf("reading schema for %s: %w", entry.Name, err)
		}
		sdls[entry.Name] = sdl
	}

	return &manifest, sdls, nil
}

// LoadSubGraphs reads a manifest file and parses every subgraph it
// names.
func LoadSubGraphs(path string) ([]*federation.SubGraph, error) {
	manifest, sdls, err := loadManifestSDLs(path)
	if err != nil {
		return nil, err
	}

	subgraphs := make([]*federation.SubGraph, 0, len(manifest.Subgraphs))
	for _, entry := range manifest.Subgraphs {
		sg, err := federation.NewSubGraph(federation.ServiceName(entry.Name), sdls[entry.Name], entry.Host)
		if err != nil {
			return nil, fmt.Errorf("parsing schema for %s: %w", entry.Name, err)
		}
		subgraphs = append(subgraphs, sg)
	}

	return subgraphs, nil
}

// LoadSDLs reads a manifest file and returns each subgraph's raw SDL
// bytes keyed by service name, ready to hand to planner.NewQueryPlanner.
func LoadSDLs(path string) (map[string][]byte, error) {
	_, sdls, err := loadManifestSDLs(path)
	return sdls, err
}

// Registry accepts subgraph schema pushes over HTTP, stores the parsed
// subgraphs, and fans each push out to every peer host it knows about.
// It does not rebuild any QueryPlanner from what it stores.
type Registry struct {
	gatewayHosts atomic.Value // map[string]struct{}
	addHostChan  chan string
	registered   atomic.Value // []*federation.SubGraph
	client       *http.Client
}

// NewRegistry returns a Registry with no hosts and no subgraphs
// registered yet.
func NewRegistry() *Registry {
	gatewayHosts := atomic.Value{}
	gatewayHosts.Store(make(map[string]struct{}))

	registered := atomic.Value{}
	registered.Store(make([]*federation.SubGraph, 0))

	return &Registry{
		gatewayHosts: gatewayHosts,
		addHostChan:  make(chan string),
		registered:   registered,
		client:       &http.Client{},
	}
}

// Start runs the host-bookkeeping loop until ctx is cancelled.
func (r *Registry) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case host := <-r.addHostChan:
				r.addGatewayHost(host)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (r *Registry) addGatewayHost(host string) {
	gatewayHosts := r.gatewayHosts.Load().(map[string]struct{})
	gatewayHosts[host] = struct{}{}
	r.gatewayHosts.Store(gatewayHosts)
}

// SubGraphs returns every subgraph currently registered, whether loaded
// from the startup manifest or pushed in later over HTTP.
func (r *Registry) SubGraphs() []*federation.SubGraph {
	return r.registered.Load().([]*federation.SubGraph)
}

// Seed registers subgraphs loaded at startup (e.g. via LoadSubGraphs)
// without going through the HTTP push path.
func (r *Registry) Seed(subgraphs []*federation.SubGraph) {
	r.registered.Store(append([]*federation.SubGraph{}, subgraphs...))
}

// RegistrationGraph is one subgraph entry in a schema push request.
type RegistrationGraph struct {
	Name string `json:"name"`
	Host string `json:"host"`
	SDL  string `json:"sdl"`
}

// RegistrationRequest is the body a publisher POSTs to
// /schema/registration.
type RegistrationRequest struct {
	RegistrationGraphs []RegistrationGraph `json:"registration_graphs"`
}

// ServeHTTP dispatches the registry's single HTTP endpoint.
func (r *Registry) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	switch req.URL.Path {
	case "/schema/registration":
		r.RegisterGateway(w, req)
	default:
		http.NotFound(w, req)
	}
}

// RegisterGateway accepts a schema push, parses and stores every
// subgraph it names, then fans the same push out to every peer host
// registered via addHostChan. Unlike the bare goroutines the teacher
// fired and forgot, the fan-out here runs under an errgroup so a failed
// peer actually fails the request instead of silently dropping it. A
// pushed host reaches the bookkeeping loop only while Start's loop is
// running; on a registry that was never started it is not recorded.
func (r *Registry) RegisterGateway(w http.ResponseWriter, req *http.Request) {
	var body RegistrationRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, "failed to decode request body", http.StatusBadRequest)
		return
	}

	registered := r.registered.Load().([]*federation.SubGraph)
	for _, rg := range body.RegistrationGraphs {
		subGraph, err := federation.NewSubGraph(federation.ServiceName(rg.Name), []byte(rg.SDL), rg.Host)
		if err != nil {
			http.Error(w, "failed to create subgraph", http.StatusBadRequest)
			return
		}

		select {
		case r.addHostChan <- rg.Host:
		default:
		}
		registered = append(registered, subGraph)
	}
	r.registered.Store(registered)

	reqBody, err := json.Marshal(body)
	if err != nil {
		http.Error(w, "failed to marshal fan-out request", http.StatusInternalServerError)
		return
	}

	gatewayHosts := r.gatewayHosts.Load().(map[string]struct{})
	g, ctx := errgroup.WithContext(req.Context())
	for sgHost := range gatewayHosts {
		sgHost := sgHost
		g.Go(func() error {
			fanoutReq, err := http.NewRequestWithContext(ctx, http.MethodPost, sgHost+"/schema/registration", bytes.NewReader(reqBody))
			if err != nil {
				return err
			}
			resp, err := r.client.Do(fanoutReq)
			if err != nil {
				return err
			}
			return resp.Body.Close()
		})
	}
	if err := g.Wait(); err != nil {
		http.Error(w, "failed to fan out registration to peer hosts", http.StatusBadGateway)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
