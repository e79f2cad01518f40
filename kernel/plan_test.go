package kernel

import (
	"errors"
	"testing"

	"omibyte.io/kestrel/arc/arcv2"
)

func plainCaps() arcv2.Capabilities {
	// No MPU, no userspace: the planner passes the request through.
	return arcv2.Capabilities{
		StackAlign:        4,
		CoopPriorities:    16,
		PreemptPriorities: 15,
	}
}

func pow2Caps() arcv2.Capabilities {
	return arcv2.Capabilities{
		StackAlign:        4,
		Rounding:          arcv2.RoundPow2,
		Granularity:       32,
		GuardSize:         32,
		PrivStackSize:     256,
		Userspace:         true,
		StackChecking:     true,
		CoopPriorities:    16,
		PreemptPriorities: 15,
	}
}

func alignCaps() arcv2.Capabilities {
	c := pow2Caps()
	c.Rounding = arcv2.RoundAlign
	return c
}

func TestPlanStackLayout(t *testing.T) {
	const base arcv2.Addr = 0x1000

	tests := []struct {
		name                 string
		caps                 arcv2.Capabilities
		size                 uint32
		user, protected      bool
		guard, working, priv arcv2.Region
	}{
		{
			// A bare kernel thread on an unfenced core sees exactly
			// what it asked for.
			name:    "unfenced kernel thread",
			caps:    plainCaps(),
			size:    1024,
			working: arcv2.Region{Base: base, Size: 1024},
		},
		{
			// 1024 + 256 + 32 rounds to 2048; the slack goes to the
			// working region.
			name:      "user thread pow2",
			caps:      pow2Caps(),
			size:      1024,
			user:      true,
			protected: true,
			working:   arcv2.Region{Base: base, Size: 1760},
			guard:     arcv2.Region{Base: base + 1760, Size: 32},
			priv:      arcv2.Region{Base: base + 1792, Size: 256},
		},
		{
			// Kernel thread on the same core: allowance merged, guard
			// fencing overflow at the allocation base.
			name:      "kernel thread pow2",
			caps:      pow2Caps(),
			size:      1024,
			protected: true,
			guard:     arcv2.Region{Base: base, Size: 32},
			working:   arcv2.Region{Base: base + 32, Size: 2016},
		},
		{
			name:      "user thread fine-grained",
			caps:      alignCaps(),
			size:      1000,
			user:      true,
			protected: true,
			// 1000 + 32 + 256 = 1288, rounded to 1312.
			working: arcv2.Region{Base: base, Size: 1024},
			guard:   arcv2.Region{Base: base + 1024, Size: 32},
			priv:    arcv2.Region{Base: base + 1056, Size: 256},
		},
		{
			// Unprotected kernel thread on a userspace core still
			// carries the merged allowance and gets rounded, but no
			// guard is carved.
			name:    "unprotected kernel thread",
			caps:    pow2Caps(),
			size:    1024,
			working: arcv2.Region{Base: base, Size: 2048},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PlanStackLayout(base, tt.size, tt.user, tt.protected, tt.caps)
			if err != nil {
				t.Fatal(err)
			}
			if got.Guard != tt.guard {
				t.Errorf("guard = %+v, want %+v", got.Guard, tt.guard)
			}
			if got.Working != tt.working {
				t.Errorf("working = %+v, want %+v", got.Working, tt.working)
			}
			if got.Priv != tt.priv {
				t.Errorf("priv = %+v, want %+v", got.Priv, tt.priv)
			}
		})
	}
}

// Across the size/flag grid the regions must be disjoint, contiguous,
// no larger than the rounded allocation, and a pure function of the
// inputs.
func TestPlanStackLayoutProperties(t *testing.T) {
	const base arcv2.Addr = 0x8000

	for _, caps := range []arcv2.Capabilities{plainCaps(), pow2Caps(), alignCaps()} {
		for _, user := range []bool{false, true} {
			for _, protected := range []bool{false, true} {
				if user && !caps.Userspace {
					continue
				}
				for size := uint32(128); size <= 8192; size *= 2 {
					p, err := PlanStackLayout(base, size, user, protected, caps)
					if err != nil {
						t.Fatalf("size=%d user=%v protected=%v: %v", size, user, protected, err)
					}

					// Layout order from the allocation base:
					// [working][guard][priv] for user threads,
					// [guard][working] for kernel threads.
					regions := []arcv2.Region{p.Working, p.Guard, p.Priv}
					if !user {
						regions = []arcv2.Region{p.Guard, p.Working, p.Priv}
					}
					end := base
					for i, r := range regions {
						if r.Empty() {
							continue
						}
						if r.Base != end {
							t.Fatalf("size=%d user=%v protected=%v: region %d at %#x, previous ends at %#x",
								size, user, protected, i, uintptr(r.Base), uintptr(end))
						}
						end = r.End()
						for _, o := range regions[i+1:] {
							if r.Overlaps(o) {
								t.Fatalf("size=%d: regions overlap: %+v %+v", size, r, o)
							}
						}
					}

					want := size + p.Guard.Size + p.Priv.Size
					if caps.Rounding != arcv2.RoundNone && (user || p.Guard.Size+p.Priv.Size > 0) {
						want = caps.RoundRegion(want)
					}
					if p.Total() != want {
						t.Fatalf("size=%d: total %d, want %d", size, p.Total(), want)
					}

					again, err := PlanStackLayout(base, size, user, protected, caps)
					if err != nil || again != p {
						t.Fatalf("size=%d: planner is not a pure function: %+v vs %+v (%v)", size, p, again, err)
					}
				}
			}
		}
	}
}

func TestPlanStackLayoutTooSmall(t *testing.T) {
	caps := plainCaps()
	min := caps.Frame().Size() + arcv2.CalleeSavedSize

	if _, err := PlanStackLayout(0x1000, min-4, false, false, caps); !errors.Is(err, ErrStackTooSmall) {
		t.Errorf("undersized request: err = %v, want ErrStackTooSmall", err)
	}
	if _, err := PlanStackLayout(0x1000, min, false, false, caps); err != nil {
		t.Errorf("minimum viable request rejected: %v", err)
	}
}

func TestStackObjectSize(t *testing.T) {
	if got, err := StackObjectSize(1024, true, true, pow2Caps()); err != nil || got != 2048 {
		t.Errorf("StackObjectSize = %d, %v; want 2048", got, err)
	}
	if got, err := StackObjectSize(1024, false, false, plainCaps()); err != nil || got != 1024 {
		t.Errorf("StackObjectSize = %d, %v; want 1024", got, err)
	}
}
