// Package keyring owns the seed to master key to derived keys lifecycle.
//
// The Controller is the session entry point. It opens or creates the
// encrypted record store, loads or establishes the master key and, through
// the Deriver, makes sure every mail account and every reserved role has a
// keypair in the PGP engine.
//
// A fresh master key comes from CreateSeedPhrase or RestoreSeedPhrase and is
// only held in memory until Start (or FinalizeSeedInitialization) persists
// it. Derivation is idempotent: a keypair is derived only when the engine has
// no secret key for the identity, so every start can safely re-run it.
//
// Typical usage:
//
//	ctrl := keyring.NewController(store, engine, source, exporter, log)
//	if err := ctrl.SetKeyDerivationConfiguration(cfg); err != nil { ... }
//	if err := ctrl.Start(ctx, password); err != nil { ... }
//	if ctrl.State() == keyring.StateAwaitingSeed {
//	    words, err := ctrl.CreateSeedPhrase(ctx)
//	    ...
//	    err = ctrl.Start(ctx, password)
//	}
package keyring
