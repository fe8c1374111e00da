package diskspace

import "testing"

func TestOSVersionTier(t *testing.T) {
	tests := []struct {
		name    string
		version OSVersion
		tier    string
	}{
		{"windows 11", OSVersion{Major: 10, Minor: 0}, "10+"},
		{"future major", OSVersion{Major: 11, Minor: 0}, "10+"},
		{"windows 8.1", OSVersion{Major: 6, Minor: 3}, "8"},
		{"windows 8", OSVersion{Major: 6, Minor: 2}, "8"},
		{"windows 7 sp1", OSVersion{Major: 6, Minor: 1, ServicePackMajor: 1}, "7"},
		{"windows 7", OSVersion{Major: 6, Minor: 1}, "7"},
		{"vista", OSVersion{Major: 6, Minor: 0, ServicePackMajor: 2}, ""},
		{"xp", OSVersion{Major: 5, Minor: 1, ServicePackMajor: 3}, ""},
		{"zero", OSVersion{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.version.Tier(); got != tt.tier {
				t.Errorf("Tier() = %q, want %q", got, tt.tier)
			}
			if got, want := PlatformVersion(tt.version), "Windows "+tt.tier; got != want {
				t.Errorf("PlatformVersion() = %q, want %q", got, want)
			}
		})
	}
}

func TestOSVersionAtLeast(t *testing.T) {
	v := OSVersion{Major: 6, Minor: 1, ServicePackMajor: 1}

	tests := []struct {
		major, minor uint32
		sp           uint16
		want         bool
	}{
		{6, 1, 0, true},
		{6, 1, 1, true},
		{6, 1, 2, false},
		{6, 0, 9, true},
		{6, 2, 0, false},
		{5, 9, 9, true},
		{10, 0, 0, false},
	}

	for _, tt := range tests {
		if got := v.AtLeast(tt.major, tt.minor, tt.sp); got != tt.want {
			t.Errorf("AtLeast(%d, %d, %d) = %v, want %v", tt.major, tt.minor, tt.sp, got, tt.want)
		}
	}
}

// The tiers are checked newest first, so each predicate implies the older ones.
func TestOSVersionPredicatesNest(t *testing.T) {
	versions := []OSVersion{
		{Major: 5, Minor: 1}, {Major: 6, Minor: 0}, {Major: 6, Minor: 1},
		{Major: 6, Minor: 2}, {Major: 6, Minor: 3}, {Major: 10, Minor: 0},
	}

	for _, v := range versions {
		if v.IsWindows10OrGreater() && !v.IsWindows8OrGreater() {
			t.Errorf("%+v: 10+ without 8+", v)
		}
		if v.IsWindows8OrGreater() && !v.IsWindows7OrGreater() {
			t.Errorf("%+v: 8+ without 7+", v)
		}
	}
}
