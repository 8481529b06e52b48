package widget

import (
	"strconv"
	"sync"
)

var (
	idMu      sync.Mutex
	idCounter = map[string]int{}
)

// UniqueID returns prefix followed by a per-prefix counter ("tab1", "tab2").
// An empty prefix means "id".
func UniqueID(prefix string) string {
	if prefix == "" {
		prefix = "id"
	}
	idMu.Lock()
	defer idMu.Unlock()
	idCounter[prefix]++
	return prefix + strconv.Itoa(idCounter[prefix])
}
