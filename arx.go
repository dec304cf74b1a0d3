// Package arx is a multi-tenant identity backend for Go services.
//
// Arx authenticates principals, issues and rotates credentials, and
// authorizes every subsequent request against role and ownership policy,
// all scoped by tenant. It is built from small composable packages and a
// storage contract you can back with any database.
//
// # Key Features
//
//   - Password authentication with enumeration-safe, constant-time checks
//   - Short-lived JWT access tokens and single-use opaque refresh tokens
//   - Multi-device session ledger with rotation and oldest-first eviction
//   - Email verification with time-boxed numeric codes
//   - Role-based policy engine with role and resource inheritance
//   - Per-request guard pipeline with ANY / OWN_ANY possession checks
//   - Full tenant isolation for users, sessions, and policy
//
// # Subpackages
//
//   - credential: password hashing and verification codes
//   - token: access/refresh token issuance and verification
//   - ledger: refresh-token session bookkeeping
//   - auth: signup, login, refresh, logout, verification orchestration
//   - policy: permit/deny decisions from role inheritance and permissions
//   - guard: per-request authentication and authorization pipeline
//   - tenant: tenant lifecycle, resolution strategies, context propagation
//   - arxgorm: GORM-backed implementations of the storage contracts
//
// # Quick Start
//
//	repo, _ := arxgorm.Open("sqlite", "arx.db", nil)
//	issuer := token.NewIssuer(token.Config{AccessSecret: secret, AccessTTL: 15 * time.Minute})
//	hasher := credential.NewBcryptHasher(12)
//	sessions := ledger.New(repo, hasher, 5)
//	svc := auth.NewService(repo, sessions, issuer, hasher)
//
// See https://github.com/getarx/arx for full documentation.
package arx
