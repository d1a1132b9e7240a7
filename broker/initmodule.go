package broker

import (
	"context"
	"fmt"
)

// InitModule is the one-call module bootstrap: it constructs a client
// for opts.ModuleName, connects to the hub, waits for readiness, and —
// when opts.ServerURL is set — registers the serving URL with hub.core
// so the hub can proxy the module's static assets.
//
// A failed first dial is tolerated: the client keeps retrying in the
// background and InitModule blocks on readiness until ctx is done.
func InitModule(ctx context.Context, opts ModuleOptions, clientOpts ...Option) (*Client, error) {
	if opts.Hub.Host == "" {
		return nil, ErrMissingAddress
	}

	client, err := NewClient(opts.ModuleName, opts.WebSocketPath, clientOpts...)
	if err != nil {
		return nil, err
	}

	if err := client.Connect(ctx, ConnectOptions{
		Host: opts.Hub.Host,
		Port: opts.Hub.Port,
		TLS:  opts.Hub.TLS,
	}); err != nil {
		client.logger.Warn("initial hub connection failed, retrying", "error", err)
	}

	if err := client.AwaitConnect(ctx); err != nil {
		client.Destroy()
		return nil, fmt.Errorf("wait for hub connection: %w", err)
	}

	if opts.ServerURL != "" {
		_, err := client.API("hub", "core").Call(ctx, "registerProxyURL", map[string]any{
			"moduleName": opts.ModuleName,
			"serverURL":  opts.ServerURL,
		})
		if err != nil {
			client.Destroy()
			return nil, fmt.Errorf("register proxy URL: %w", err)
		}
	}

	return client, nil
}
