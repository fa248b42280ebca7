package clusterv1

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"
)

const (
	// ReloadServiceName is the fully-qualified name of the ReloadService.
	ReloadServiceName = "tlsmesh.cluster.v1.ReloadService"

	// ReloadServiceReloadProcedure is the path of the Reload RPC.
	ReloadServiceReloadProcedure = "/tlsmesh.cluster.v1.ReloadService/Reload"
)

// ReloadServiceClient is a client for the ReloadService.
type ReloadServiceClient interface {
	Reload(context.Context, *connect.Request[ReloadRequest]) (*connect.Response[ReloadResponse], error)
}

// NewReloadServiceClient constructs a client for the ReloadService.
// baseURL is the node's cluster endpoint, e.g. https://10.0.0.5:5343.
func NewReloadServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) ReloadServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	return &reloadServiceClient{
		reload: connect.NewClient[ReloadRequest, ReloadResponse](
			httpClient,
			baseURL+ReloadServiceReloadProcedure,
			append([]connect.ClientOption{connect.WithCodec(JSONCodec{})}, opts...)...,
		),
	}
}

type reloadServiceClient struct {
	reload *connect.Client[ReloadRequest, ReloadResponse]
}

// Reload calls tlsmesh.cluster.v1.ReloadService.Reload.
func (c *reloadServiceClient) Reload(ctx context.Context, req *connect.Request[ReloadRequest]) (*connect.Response[ReloadResponse], error) {
	return c.reload.CallUnary(ctx, req)
}

// ReloadServiceHandler is implemented by servers of the ReloadService.
type ReloadServiceHandler interface {
	Reload(context.Context, *connect.Request[ReloadRequest]) (*connect.Response[ReloadResponse], error)
}

// NewReloadServiceHandler builds an HTTP handler for the ReloadService and
// returns the path to mount it on.
func NewReloadServiceHandler(svc ReloadServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	reloadHandler := connect.NewUnaryHandler(
		ReloadServiceReloadProcedure,
		svc.Reload,
		append([]connect.HandlerOption{connect.WithCodec(JSONCodec{})}, opts...)...,
	)
	return "/" + ReloadServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case ReloadServiceReloadProcedure:
			reloadHandler.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}
