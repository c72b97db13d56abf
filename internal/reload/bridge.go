// Package reload implements the browser reload bridge: a small HTTP server
// that proxies the app server, adds a client script to every HTML page and
// pushes reload, style-inject and notification messages over a websocket.
package reload

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/conneroisu/forge/internal/config"
	"github.com/conneroisu/forge/internal/logging"
)

// Options configures a Bridge.
type Options struct {
	// Host to bind; empty listens on every interface.
	Host string
	// Port the bridge listens on. Zero picks a free port.
	Port int
	// Target is the app server URL everything else is proxied to.
	Target        string
	InjectChanges bool
	Notify        bool
	Logger        logging.Logger
}

// OptionsFromConfig derives bridge options from the loaded configuration.
func OptionsFromConfig(cfg *config.Config, logger logging.Logger) Options {
	return Options{
		Port:          cfg.Reload.Port,
		Target:        cfg.ProxyTarget(),
		InjectChanges: cfg.Reload.InjectChanges,
		Notify:        cfg.Reload.Notify,
		Logger:        logger,
	}
}

// Bridge is started at most once per process. All methods are safe for
// concurrent use; broadcasting before Start is a no-op for browsers since
// none can be connected.
type Bridge struct {
	opts   Options
	logger logging.Logger
	hub    *Hub

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	done     chan struct{}
	closed   bool
}

// New creates an inactive bridge.
func New(opts Options) *Bridge {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	logger = logger.WithComponent("reload")

	return &Bridge{
		opts:   opts,
		logger: logger,
		hub:    NewHub(logger),
	}
}

// Handler returns the bridge's routes: the websocket, the client script and
// the proxy for everything else.
func (b *Bridge) Handler() (http.Handler, error) {
	proxy, err := newProxy(b.opts.Target, b.logger)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle(SocketPath, b.hub)
	mux.Handle(ClientPath, noStore(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		_, _ = w.Write([]byte(ClientScript()))
	})))
	mux.Handle("/", chain(proxy, logRequests(b.logger)))
	return mux, nil
}

// Start begins listening. Calling Start on an active bridge does nothing.
// The bridge shuts down when ctx is cancelled.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errors.New("reload bridge already shut down")
	}
	if b.server != nil {
		return nil
	}

	handler, err := b.Handler()
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", net.JoinHostPort(b.opts.Host, strconv.Itoa(b.opts.Port)))
	if err != nil {
		return fmt.Errorf("reload bridge listen: %w", err)
	}

	b.listener = ln
	b.done = make(chan struct{})
	b.server = &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	server, done := b.server, b.done
	go func() {
		defer close(done)
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			b.logger.Error(ctx, err, "Reload bridge stopped")
		}
	}()
	go func() {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = b.Shutdown(shutdownCtx)
		case <-done:
		}
	}()

	b.logger.Info(ctx, "Reload bridge listening", "addr", ln.Addr().String(), "proxy", b.opts.Target)
	return nil
}

// Active reports whether the bridge is serving.
func (b *Bridge) Active() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.server != nil && !b.closed
}

// Addr returns the listening address, or "" when inactive.
func (b *Bridge) Addr() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listener == nil {
		return ""
	}
	return b.listener.Addr().String()
}

// Clients returns the number of connected browsers.
func (b *Bridge) Clients() int {
	return b.hub.Clients()
}

// Notify shows text in every browser when notifications are enabled.
func (b *Bridge) Notify(text string) {
	if !b.opts.Notify {
		return
	}
	b.hub.Broadcast(Message{Type: MessageNotify, Content: text})
}

// Reload makes every browser reload the page.
func (b *Bridge) Reload() {
	b.hub.Broadcast(Message{Type: MessageReload})
}

// Inject asks browsers to refresh the named stylesheets in place.
func (b *Bridge) Inject(paths ...string) {
	for _, p := range paths {
		b.hub.Broadcast(Message{Type: MessageInject, Target: path.Clean("/" + p)})
	}
}

// Changed reacts to changed project files: when every file is a stylesheet
// and injection is enabled the styles are swapped in place, otherwise the
// page reloads.
func (b *Bridge) Changed(paths []string) {
	if len(paths) == 0 {
		return
	}
	if b.opts.InjectChanges && allCSS(paths) {
		b.Inject(paths...)
		return
	}
	b.Reload()
}

func allCSS(paths []string) bool {
	for _, p := range paths {
		if !strings.EqualFold(path.Ext(p), ".css") {
			return false
		}
	}
	return true
}

// Shutdown stops the server and disconnects browsers. The bridge cannot be
// restarted afterwards.
func (b *Bridge) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	server, done := b.server, b.done
	b.closed = true
	b.mu.Unlock()

	b.hub.Shutdown()
	if server == nil {
		return nil
	}

	err := server.Shutdown(ctx)
	select {
	case <-done:
	case <-ctx.Done():
	}
	return err
}
