package host

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/mpapenbr/racesim-engine/log"
	"github.com/mpapenbr/racesim-engine/pkg/config"
)

type certs struct {
	ctx       context.Context
	tlsconfig *tls.Config
	log       *log.Logger
	cert      *tls.Certificate
	mu        sync.RWMutex
}

// NewTLSConfigProvider returns a TLS config whose certificate is reloaded when the cert or
// key file changes. Returns nil if no certificate is configured.
func NewTLSConfigProvider(ctx context.Context) *tls.Config {
	c := &certs{
		ctx: ctx,
		log: log.GetFromContext(ctx).Named("api.certs"),
	}
	c.loadCert()
	if c.cert == nil {
		return nil
	}
	c.tlsconfig = &tls.Config{
		GetCertificate: func(chi *tls.ClientHelloInfo) (*tls.Certificate, error) {
			c.mu.RLock()
			defer c.mu.RUnlock()
			return c.cert, nil
		},
		MinVersion: tls.VersionTLS13,
	}
	if config.TLSCAFile != "" {
		c.log.Info("Loading ca cert", log.String("file", config.TLSCAFile))
		caCert, err := os.ReadFile(config.TLSCAFile)
		if err != nil {
			c.log.Error("could not read TLS root CA", log.ErrorField(err))
		}
		caCertPool := x509.NewCertPool()
		if ok := caCertPool.AppendCertsFromPEM(caCert); !ok {
			c.log.Error("could not append cert to pool")
		}
		c.tlsconfig.ClientCAs = caCertPool
		c.tlsconfig.ClientAuth = tls.VerifyClientCertIfGiven
	}
	go c.watchAndReloadCerts()
	return c.tlsconfig
}

func (c *certs) watchAndReloadCerts() {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		c.log.Error("could not create fsnotify watcher", log.ErrorField(err))
		return
	}
	defer watcher.Close()
	for _, f := range []string{config.TLSCertFile, config.TLSKeyFile} {
		if err := watcher.Add(f); err != nil {
			c.log.Error("could not watch file", log.String("file", f), log.ErrorField(err))
		}
	}
	for {
		select {
		case <-c.ctx.Done():
			c.log.Info("context done, stopping cert reload")
			return
		case event, ok := <-watcher.Events:
			if !ok {
				c.log.Info("watcher events channel closed, stopping cert reload")
				return
			}
			c.log.Debug("change detected",
				log.String("file", event.Name), log.Any("event", event))
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Chmod) {
				c.log.Info("cert file changed, reloading cert", log.String("file", event.Name))
				c.loadCert()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				c.log.Info("watcher errors channel closed, stopping cert reload")
				return
			}
			c.log.Error("watcher error", log.ErrorField(err))
		}
	}
}

func (c *certs) loadCert() {
	if config.TLSCertFile == "" || config.TLSKeyFile == "" {
		return
	}
	c.log.Info("Loading cert",
		log.String("key", config.TLSKeyFile),
		log.String("cert", config.TLSCertFile))
	cert, err := tls.LoadX509KeyPair(config.TLSCertFile, config.TLSKeyFile)
	if err != nil {
		c.log.Error("could not load TLS key pair", log.ErrorField(err))
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cert = &cert
}
