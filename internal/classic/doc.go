// Package classic builds the tabs of the classic-api mode.
//
// A ManagerTab lists every adapter known to the hub. Playing an adapter's
// block opens an AdapterTab holding four blocks: power, discoverability,
// local name and a timed LE discovery. Every block follows the adapter's
// attribute-changed events, so the tab reflects changes made elsewhere.
package classic
