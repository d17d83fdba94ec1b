package backend_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/vixensim/timing/backend"
	"github.com/sarchlab/vixensim/uop"
)

var _ = Describe("PhysRegFile", func() {
	var prf *backend.PhysRegFile

	BeforeEach(func() {
		prf = backend.NewPhysRegFile(40)
	})

	It("should start with every register ready and zero", func() {
		Expect(prf.Len()).To(Equal(40))
		for reg := backend.PhysReg(0); reg < 40; reg++ {
			Expect(prf.IsReady(reg)).To(BeTrue())
			Expect(prf.Read(reg)).To(Equal(uint64(0)))
		}
	})

	It("should track the pending-to-ready transition", func() {
		prf.MarkPending(33)
		Expect(prf.IsReady(33)).To(BeFalse())

		prf.Write(33, 0xFEED)
		Expect(prf.IsReady(33)).To(BeTrue())
		Expect(prf.Read(33)).To(Equal(uint64(0xFEED)))
	})

	It("should clear values and readiness on reset", func() {
		prf.MarkPending(35)
		prf.Write(34, 7)
		prf.Reset()

		Expect(prf.Read(34)).To(Equal(uint64(0)))
		Expect(prf.IsReady(35)).To(BeTrue())
	})
})

var _ = Describe("FreeList", func() {
	It("should hand registers back in FIFO order", func() {
		fl := backend.NewFreeList(4)
		fl.Push(35)
		fl.Push(33)
		fl.Push(34)

		reg, ok := fl.Pop()
		Expect(ok).To(BeTrue())
		Expect(reg).To(Equal(backend.PhysReg(35)))

		reg, _ = fl.Pop()
		Expect(reg).To(Equal(backend.PhysReg(33)))
		reg, _ = fl.Pop()
		Expect(reg).To(Equal(backend.PhysReg(34)))

		_, ok = fl.Pop()
		Expect(ok).To(BeFalse())
	})

	It("should panic when a register is freed past capacity", func() {
		fl := backend.NewFreeList(2)
		fl.Push(32)
		fl.Push(33)
		Expect(func() { fl.Push(34) }).To(Panic())
	})
})

var _ = Describe("RenameUnit", func() {
	const numRegs = 40 // 32 fixed + 8 allocatable

	var (
		prf *backend.PhysRegFile
		fl  *backend.FreeList
		ru  *backend.RenameUnit
	)

	BeforeEach(func() {
		prf = backend.NewPhysRegFile(numRegs)
		fl = backend.NewFreeList(numRegs)
		for reg := backend.PhysReg(32); reg < numRegs; reg++ {
			fl.Push(reg)
		}
		ru = backend.NewRenameUnit(fl, prf)
	})

	It("should start with identity mappings per thread", func() {
		Expect(ru.Lookup(0, 0)).To(Equal(backend.PhysReg(0)))
		Expect(ru.Lookup(0, 15)).To(Equal(backend.PhysReg(15)))
		Expect(ru.Lookup(1, 0)).To(Equal(backend.PhysReg(16)))
		Expect(ru.Lookup(1, 15)).To(Equal(backend.PhysReg(31)))
	})

	It("should remap a destination and report the previous mapping", func() {
		newPhys, prevPhys, ok := ru.Rename(0, 5)
		Expect(ok).To(BeTrue())
		Expect(newPhys).To(Equal(backend.PhysReg(32)))
		Expect(prevPhys).To(Equal(backend.PhysReg(5)))
		Expect(ru.Lookup(0, 5)).To(Equal(backend.PhysReg(32)))

		// The fresh register holds no value yet.
		Expect(prf.IsReady(32)).To(BeFalse())
	})

	It("should keep the threads' mappings independent", func() {
		ru.Rename(0, 3)
		Expect(ru.Lookup(0, 3)).To(Equal(backend.PhysReg(32)))
		Expect(ru.Lookup(1, 3)).To(Equal(backend.PhysReg(19)))
	})

	It("should refuse to rename once the free list is empty", func() {
		for i := 0; i < 8; i++ {
			_, _, ok := ru.Rename(0, uint8(i))
			Expect(ok).To(BeTrue())
		}

		before := ru.Lookup(0, 9)
		_, _, ok := ru.Rename(0, 9)
		Expect(ok).To(BeFalse())
		Expect(ru.Lookup(0, 9)).To(Equal(before))
	})

	It("should restore a mapping on squash", func() {
		_, prevPhys, _ := ru.Rename(1, 7)
		ru.Restore(1, 7, prevPhys)
		Expect(ru.Lookup(1, 7)).To(Equal(backend.PhysReg(23)))
	})

	It("should never map two live entries to one physical register", func() {
		for i := 0; i < 4; i++ {
			ru.Rename(0, uint8(i*2))
			ru.Rename(1, uint8(i*3))
		}

		seen := map[backend.PhysReg]bool{}
		for t := uop.ThreadID(0); t < uop.NumThreads; t++ {
			for arch := uint8(0); arch < uop.NumArchRegs; arch++ {
				phys := ru.Lookup(t, arch)
				Expect(seen[phys]).To(BeFalse(),
					"physical register %d mapped twice", phys)
				seen[phys] = true
			}
		}
	})

	It("should classify fixed registers", func() {
		Expect(backend.IsFixed(0)).To(BeTrue())
		Expect(backend.IsFixed(31)).To(BeTrue())
		Expect(backend.IsFixed(32)).To(BeFalse())
	})
})
