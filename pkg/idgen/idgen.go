// Package idgen 提供基于雪花算法的业务 ID 生成
package idgen

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// Generator 带前缀的雪花 ID 生成器，例如 RUN-1790000000000000000
type Generator struct {
	node   *snowflake.Node
	prefix string
}

// New 创建生成器，nodeID 取值 0-1023
func New(nodeID int64, prefix string) (*Generator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("create snowflake node %d: %w", nodeID, err)
	}
	return &Generator{node: node, prefix: prefix}, nil
}

// Next 生成下一个 ID
func (g *Generator) Next() string {
	id := g.node.Generate()
	if g.prefix == "" {
		return id.String()
	}
	return g.prefix + "-" + id.String()
}
