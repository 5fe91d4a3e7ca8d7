// Package signing resolves the process-wide HMAC root secret and derives
// purpose-bound subkeys from it.
//
// Production deployments must configure a strong secret; startup fails
// otherwise. Non-production deployments may run without one: a random
// in-memory secret is generated and a warning is logged once per process.
//
//	secret, err := signing.Resolve(cfg, environment.Production, log)
//	if err != nil {
//		log.Error("cannot start", logger.Error(err))
//		os.Exit(1)
//	}
//	sessionKey := secret.Derive("session-token")
package signing
