// Package core holds the integration domain: credential records, provider
// contracts, the token storage policy and the Service that runs OAuth grants
// and record updates. Adapters depend on core; core never imports them.
package core
