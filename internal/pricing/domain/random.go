package domain

import (
	"golang.org/x/exp/rand"
)

// StreamFactory 按 (seed, 路径序号) 派生互不重叠的随机子流
// 同一对 (seed, 序号) 无论由哪种策略、哪个 worker 消费，得到的序列都相同。
type StreamFactory struct {
	seed uint64
}

// NewStreamFactory 创建子流工厂
func NewStreamFactory(seed uint64) StreamFactory {
	return StreamFactory{seed: seed}
}

// Seed 根种子
func (f StreamFactory) Seed() uint64 { return f.seed }

// NewStream 创建一个可复用的路径随机流，每个 worker 持有一个
func (f StreamFactory) NewStream() *PathStream {
	src := &rand.PCGSource{}
	return &PathStream{
		seed: f.seed,
		src:  src,
		rng:  rand.New(src),
	}
}

// PathStream 单 worker 内复用的随机流，Reset 切换到某条路径的子流起点
type PathStream struct {
	seed uint64
	src  *rand.PCGSource
	rng  *rand.Rand
}

// Reset 定位到 pathIndex 对应的子流
func (s *PathStream) Reset(pathIndex uint64) {
	s.src.Seed(SubStreamSeed(s.seed, pathIndex))
}

// Normal 标准正态随机数
func (s *PathStream) Normal() float64 {
	return s.rng.NormFloat64()
}

// SubStreamSeed 计数器式子流种子
func SubStreamSeed(seed, pathIndex uint64) uint64 {
	return splitmix64(seed ^ splitmix64(pathIndex))
}

func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
