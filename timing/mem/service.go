// Package mem provides the opaque data memory service behind the AGU port:
// an L1 data cache modeled with Akita cache components over a flat backing
// storage. The service answers loads and stores with a value and a latency;
// the hierarchy behind the L1 is folded into the miss latency.
package mem

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// Config holds data cache configuration parameters.
type Config struct {
	// Size in bytes
	Size int
	// Associativity (number of ways)
	Associativity int
	// BlockSize in bytes (cache line size)
	BlockSize int
	// HitLatency in cycles
	HitLatency uint64
	// MissLatency in cycles (includes the access to the next level)
	MissLatency uint64
}

// DefaultL1DConfig returns the default L1 data cache configuration.
// Based on Vixen Dio Pro specifications: a small, low-latency L1D
// (8KB, 4-way, 64B lines, 2-cycle load-to-use) backed by a unified L2.
func DefaultL1DConfig() Config {
	return Config{
		Size:          8 * 1024,
		Associativity: 4,
		BlockSize:     64,
		HitLatency:    2,
		MissLatency:   18,
	}
}

// StoreForwardLatency is the extra latency when a load reads an address
// that was just stored: the value comes through the store buffer instead of
// the cache array.
const StoreForwardLatency uint64 = 1

// AccessResult contains the result of one cache access.
type AccessResult struct {
	// Hit indicates whether the access was a cache hit.
	Hit bool
	// Latency is the number of cycles this access takes.
	Latency uint64
	// Data is the data read (for load operations).
	Data uint64
	// Evicted is true if a valid block was evicted.
	Evicted bool
	// EvictedAddr is the address of the evicted block (if Evicted is true).
	EvictedAddr uint64
}

// Statistics holds data cache performance statistics.
type Statistics struct {
	Reads      uint64
	Writes     uint64
	Hits       uint64
	Misses     uint64
	Evictions  uint64
	Writebacks uint64
}

// HitRate returns the percentage of accesses that hit.
func (s Statistics) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100.0
}

// BackingStore is the next level in the memory hierarchy.
type BackingStore interface {
	// Read fetches data from the backing store.
	Read(addr uint64, size int) []byte
	// Write stores data to the backing store.
	Write(addr uint64, data []byte)
}

// Service is the data memory service the AGU port talks to.
type Service struct {
	config Config

	// Akita cache directory for tag/state management
	directory *akitacache.DirectoryImpl

	// Data storage, indexed by setID*associativity+wayID
	dataStore [][]byte

	backing BackingStore

	stats Statistics

	// Store buffer tracking for store-to-load forwarding latency.
	recentStoreAddr  uint64
	recentStoreValid bool
}

// NewService creates a data memory service with the given cache geometry.
func NewService(config Config, backing BackingStore) *Service {
	numSets := config.Size / (config.Associativity * config.BlockSize)
	totalBlocks := numSets * config.Associativity

	dataStore := make([][]byte, totalBlocks)
	for i := range dataStore {
		dataStore[i] = make([]byte, config.BlockSize)
	}

	return &Service{
		config: config,
		directory: akitacache.NewDirectory(
			numSets,
			config.Associativity,
			config.BlockSize,
			akitacache.NewLRUVictimFinder(),
		),
		dataStore: dataStore,
		backing:   backing,
	}
}

// Config returns the cache configuration.
func (s *Service) Config() Config {
	return s.config
}

// Stats returns cache statistics.
func (s *Service) Stats() Statistics {
	return s.stats
}

// ResetStats clears cache statistics.
func (s *Service) ResetStats() {
	s.stats = Statistics{}
}

// blockIndex computes the index into dataStore for a block.
func (s *Service) blockIndex(block *akitacache.Block) int {
	return block.SetID*s.config.Associativity + block.WayID
}

// Read performs a load of size bytes at addr.
func (s *Service) Read(addr uint64, size int) AccessResult {
	s.stats.Reads++

	blockAddr := (addr / uint64(s.config.BlockSize)) * uint64(s.config.BlockSize)
	block := s.directory.Lookup(0, blockAddr)

	if block != nil && block.IsValid {
		s.stats.Hits++
		s.directory.Visit(block)

		offset := addr % uint64(s.config.BlockSize)
		blockData := s.dataStore[s.blockIndex(block)]
		data := extractData(blockData, offset, size)

		latency := s.config.HitLatency
		if s.recentStoreValid && s.recentStoreAddr == addr {
			latency += StoreForwardLatency
			s.recentStoreValid = false
		}

		return AccessResult{
			Hit:     true,
			Latency: latency,
			Data:    data,
		}
	}

	s.stats.Misses++
	return s.handleMiss(addr, size, false, 0)
}

// Write performs a store of size bytes at addr. Write-allocate: on a miss
// the block is fetched first, then written.
func (s *Service) Write(addr uint64, size int, data uint64) AccessResult {
	s.stats.Writes++

	s.recentStoreAddr = addr
	s.recentStoreValid = true

	blockAddr := (addr / uint64(s.config.BlockSize)) * uint64(s.config.BlockSize)
	block := s.directory.Lookup(0, blockAddr)

	if block != nil && block.IsValid {
		s.stats.Hits++
		s.directory.Visit(block)

		offset := addr % uint64(s.config.BlockSize)
		blockData := s.dataStore[s.blockIndex(block)]
		storeData(blockData, offset, size, data)
		block.IsDirty = true

		return AccessResult{
			Hit:     true,
			Latency: s.config.HitLatency,
		}
	}

	s.stats.Misses++
	return s.handleMiss(addr, size, true, data)
}

// handleMiss fetches the block from the backing store, evicting a victim.
func (s *Service) handleMiss(addr uint64, size int, isWrite bool, writeData uint64) AccessResult {
	result := AccessResult{
		Hit:     false,
		Latency: s.config.MissLatency,
	}

	blockAddr := (addr / uint64(s.config.BlockSize)) * uint64(s.config.BlockSize)

	victim := s.directory.FindVictim(blockAddr)
	if victim == nil {
		return result
	}

	victimData := s.dataStore[s.blockIndex(victim)]

	if victim.IsValid {
		s.stats.Evictions++
		result.Evicted = true
		result.EvictedAddr = victim.Tag

		if victim.IsDirty && s.backing != nil {
			s.stats.Writebacks++
			s.backing.Write(victim.Tag, victimData)
		}
	}

	if s.backing != nil {
		newData := s.backing.Read(blockAddr, s.config.BlockSize)
		copy(victimData, newData)
	} else {
		for i := range victimData {
			victimData[i] = 0
		}
	}

	victim.Tag = blockAddr
	victim.IsValid = true
	victim.IsDirty = false

	offset := addr % uint64(s.config.BlockSize)
	if isWrite {
		storeData(victimData, offset, size, writeData)
		victim.IsDirty = true
	} else {
		result.Data = extractData(victimData, offset, size)
	}

	s.directory.Visit(victim)

	return result
}

// Invalidate marks a cache line as invalid without writeback.
func (s *Service) Invalidate(addr uint64) {
	blockAddr := (addr / uint64(s.config.BlockSize)) * uint64(s.config.BlockSize)
	block := s.directory.Lookup(0, blockAddr)
	if block != nil && block.IsValid {
		block.IsValid = false
		block.IsDirty = false
	}
}

// Flush writes back all dirty blocks and invalidates them.
func (s *Service) Flush() {
	sets := s.directory.GetSets()
	for _, set := range sets {
		for _, block := range set.Blocks {
			if block.IsValid && block.IsDirty && s.backing != nil {
				blockData := s.dataStore[s.blockIndex(block)]
				s.backing.Write(block.Tag, blockData)
				s.stats.Writebacks++
			}
			block.IsValid = false
			block.IsDirty = false
		}
	}
}

// Reset invalidates all cache lines without writeback and clears statistics.
func (s *Service) Reset() {
	s.directory.Reset()
	s.stats = Statistics{}
	s.recentStoreValid = false
	s.recentStoreAddr = 0
}

// extractData extracts a little-endian value of the given size.
func extractData(data []byte, offset uint64, size int) uint64 {
	if data == nil || int(offset)+size > len(data) {
		return 0
	}

	var result uint64
	for i := 0; i < size; i++ {
		result |= uint64(data[int(offset)+i]) << (i * 8)
	}
	return result
}

// storeData stores a little-endian value of the given size.
func storeData(data []byte, offset uint64, size int, value uint64) {
	if data == nil || int(offset)+size > len(data) {
		return
	}

	for i := 0; i < size; i++ {
		data[int(offset)+i] = byte(value >> (i * 8))
	}
}
