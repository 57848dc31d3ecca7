// Package idgen issues globally unique receipt references. Human-readable
// document numbers come from persisted sequences; these ids exist so a
// receipt can be referenced unambiguously even across reinstalls.
package idgen

import (
	"log"
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	once sync.Once
	node *snowflake.Node
)

func Reference() string {
	once.Do(func() {
		n, err := snowflake.NewNode(1)
		if err != nil {
			log.Fatalf("idgen: failed to init snowflake node: %v", err)
		}
		node = n
	})
	return node.Generate().String()
}
