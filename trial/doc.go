/*
# Trial Package

The trial package implements the confidential clinical trial core: opaque
value custody, the append-only capability ledger, the participant registry,
the decryption oracle protocol and the aggregation engine, all gated by the
protocol package's phase clock.

## Components

 1. **Vault** (`vault.go`)
    Opaque value store. Creates handles deterministically from plaintext or
    from secure randomness and keeps plaintext custody for off-ledger
    resolution by the decryption oracle.

 2. **CapabilityLedger** (`ledger.go`)
    Append-only grant table mapping each handle to a processor capability
    and a set of viewer identities. No revoke operation exists; capability
    is strictly monotonic over a handle's lifetime. The ledger also holds
    the registered oracle verification keys and provides the verification
    primitive used by ProcessResults.

 3. **Registry** (`registry.go`)
    Per-identity participant records and per-(identity, week) measurement
    records, both immutable once created, plus the enrollment order the
    group partition is derived from.

 4. **Oracle protocol** (`oracle.go`)
    Pending → Verified request lifecycle for the decryption batch issued on
    entry into Analysis. No timeout path exists.

 5. **Aggregation engine** (`aggregate.go`)
    Partitions the verified plaintext batch by index parity into treatment
    and placebo groups, computes truncating averages, re-encrypts the
    results and publishes the TrialResult.

 6. **Trial** (`trial.go`)
    The coordinator facade. Serializes every public operation behind a
    single mutex so each call commits fully or not at all, and emits the
    append-only event log external collaborators consume.

## Concurrency

Public operations never block their caller: each call is a synchronous
accept or reject against the serialized trial state. Phase transitions and
the decryption callback are externally triggered with unbounded latency
between request and callback.
*/
package trial
