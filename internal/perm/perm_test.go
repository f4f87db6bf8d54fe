// If you are AI: This file contains unit tests for the permission bitmask.

package perm

import "testing"

func TestGroupsAreDisjoint(t *testing.T) {
	if AllInputs&AllOperations != 0 {
		t.Error("input and operation groups overlap")
	}
	if AllInputs&AllActions != 0 {
		t.Error("input and action groups overlap")
	}
	if AllOperations&AllActions != 0 {
		t.Error("operation and action groups overlap")
	}
}

func TestDefaultIsSubsetOfAll(t *testing.T) {
	if Default&All != Default {
		t.Error("default mask has bits outside of All")
	}
	if !All.Has(Default) {
		t.Error("All should contain Default")
	}
}

func TestHas(t *testing.T) {
	tests := []struct {
		name string
		mask Mask
		perm Mask
		want bool
	}{
		{"default has view", Default, View, true},
		{"default has list", Default, List, true},
		{"default lacks launch", Default, Launch, false},
		{"default lacks controller", Default, InputController, false},
		{"all has everything", All, AllInputs | AllOperations | AllActions, true},
		{"none has nothing", None, View, false},
		{"partial allow view", View, AllowView, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.mask.Has(tt.perm); got != tt.want {
				t.Errorf("Has(%#x) = %v, want %v", tt.perm, got, tt.want)
			}
		})
	}
}

func TestHasAny(t *testing.T) {
	if !Default.HasAny(AllowView) {
		t.Error("default should satisfy AllowView via the view bit")
	}
	if (List).HasAny(AllowView) {
		t.Error("list alone should not satisfy AllowView")
	}
}

func TestClamp(t *testing.T) {
	dirty := All | Mask(0x80000000)
	if dirty.Clamp() != All {
		t.Errorf("Clamp() = %#x, want %#x", dirty.Clamp(), All)
	}
}
