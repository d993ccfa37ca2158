/*
Package testutil provides testing utilities for the trial protocol
implementation.

# Key Components

## Configuration Generators

Functions for creating customizable TrialConfig instances:

	// Create default test config
	config := testutil.NewTestConfig()

	// Create custom config with specific options
	customConfig := testutil.NewTestConfig(
	    testutil.WithPhaseDuration(time.Hour),
	    testutil.WithSignificanceThreshold(5),
	)

## Manual Clock

A mutable time source for driving the phase state machine in tests
without sleeping:

	clock := testutil.NewClock(time.Unix(1700000000, 0))
	trial, _ := trial.New(trial.Config{Clock: clock.Now, ...})
	clock.Tick(time.Hour) // phase transition becomes legal

## Cryptographic Generators

Utilities for generating keys and opaque handles:

	pubKey, privKey, _ := testutil.GenerateTestKeyPair()
	publicKeys, _ := testutil.GenerateTestPublicKeys(3)
	handle, _ := testutil.RandomHandle(crypto.Width32)
*/
package testutil
