// Package cmd provides the hchat commands.
//
// # Commands
//
// gateway: Runs the gateway. Serves the handshake API under /api, the hub's
// subscriber streams under /hub, health and drain endpoints, and metrics on a
// separate address.
//
//	go run ./cmd/gateway --config=gateway.yaml
//	SYSTEM_PRIVATE_KEY=... PUBNUB_SUBSCRIBE_KEY=sub-c-local PUBNUB_SECRET_KEY=... go run ./cmd/gateway
//
// hchat: CLI for publishing and subscribing through a gateway.
//
//	go run ./cmd/hchat keygen --out=id.key
//	go run ./cmd/hchat publish --key=id.key --channel=room1 '{"text":"hello"}'
//	go run ./cmd/hchat subscribe room1 room2
//
// # Configuration
//
// The gateway reads a YAML file (--config), then environment variables, then
// flags. Example:
//
//	http_addr: ":8080"
//	metrics_addr: ":9090"
//	keys:
//	  system_private_key: ""
//	hub:
//	  subscribe_key: "sub-c-local"
//	  secret_key: "change-me"
//	policy:
//	  publish_difficulty: 13
//	  publish_delay: 500ms
//	redemption:
//	  backend: "postgres"
//	  postgres:
//	    host: "localhost"
//	    port: 5432
//	    user: "hchat"
//	    database: "hchat"
//
// Environment variables use the HCHAT_ prefix. SYSTEM_PRIVATE_KEY,
// SYSTEM_PUBLIC_KEY, PUBNUB_SUBSCRIBE_KEY, PUBNUB_PUBLISH_KEY and
// PUBNUB_SECRET_KEY are also accepted.
package cmd
