package mem

import (
	akitamem "github.com/sarchlab/akita/v4/mem/mem"
)

// StorageBacking adapts an Akita storage as the level behind the L1
// service. Addresses wrap at the storage capacity so any 64-bit address
// maps to a valid location.
type StorageBacking struct {
	storage  *akitamem.Storage
	capacity uint64
}

// NewStorageBacking creates a backing over a storage of the given
// capacity. The capacity must be a multiple of the cache block size so
// that wrapped block addresses never straddle the end of the storage.
func NewStorageBacking(capacity uint64) *StorageBacking {
	return &StorageBacking{
		storage:  akitamem.NewStorage(capacity),
		capacity: capacity,
	}
}

// Read fetches size bytes starting at addr.
func (b *StorageBacking) Read(addr uint64, size int) []byte {
	data, err := b.storage.Read(addr%b.capacity, uint64(size))
	if err != nil {
		panic(err)
	}
	return data
}

// Write stores data starting at addr.
func (b *StorageBacking) Write(addr uint64, data []byte) {
	if err := b.storage.Write(addr%b.capacity, data); err != nil {
		panic(err)
	}
}

// Capacity returns the size of the storage in bytes.
func (b *StorageBacking) Capacity() uint64 {
	return b.capacity
}
