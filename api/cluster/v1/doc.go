// Package clusterv1 defines the TLSMesh cluster RPC surface.
//
// The cluster protocol is served with Connect over mutually authenticated
// HTTPS between nodes. Messages are plain Go structs encoded with
// JSONCodec, so both ends must register it:
//
//	path, handler := clusterv1.NewReloadServiceHandler(svc,
//		connect.WithCodec(clusterv1.JSONCodec{}))
//	client := clusterv1.NewReloadServiceClient(httpClient, baseURL,
//		connect.WithCodec(clusterv1.JSONCodec{}))
package clusterv1
