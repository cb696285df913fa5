// Package api provides the read-only client for the blocks API headers
// endpoints.
//
// Endpoints:
//   - GET /v0/last_block/{final|optimistic}/headers
//   - GET /v0/block/{height}/headers (final view)
//   - GET /v0/block_opt/{height}/headers (optimistic view)
//
// Default roots: https://mainnet.neardata.xyz and
// https://testnet.neardata.xyz. Heights the chain skipped are served as a
// JSON null body.
package api
