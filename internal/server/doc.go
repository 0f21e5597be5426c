// Package server implements the HTTP side of roomrelay.
//
// It loads configuration, builds the logger, upgrades websocket requests into
// relay sessions and serves the room listing, health, metrics and chat pages.
// The room registry, fan-out engine and session runner live in package relay;
// a Server owns one of each.
package server
